package server

import (
	"net/http"

	"github.com/openstore/openstore/internal/api"
	"github.com/openstore/openstore/internal/driver/local"
	"github.com/openstore/openstore/internal/middleware"
)

var (
	appsPaths   = []string{"/api/apps", "/api/v1/apps", "/api/v2/apps"}
	managePaths = []string{"/api/apps", "/api/v1/manage/apps", "/api/v2/manage/apps"}
)

// public wraps h with the access log.
func (s *Server) public(h http.Handler) http.Handler {
	return middleware.AccessLog(s.logger)(h)
}

// private additionally requires an api key.
func (s *Server) private(h http.Handler) http.Handler {
	return middleware.AccessLog(s.logger)(middleware.Auth(s.store, s.logger)(h))
}

func (s *Server) registerCatalogHandler() {
	s.mux.Methods(http.MethodGet).Path("/api/apps").Handler(s.public(s.api.ListApps(api.EnvelopeBare)))
	s.mux.Methods(http.MethodGet).Path("/api/v1/apps").Handler(s.public(s.api.ListApps(api.EnvelopePaged)))
	s.mux.Methods(http.MethodGet, http.MethodPost).Path("/api/v2/apps").Handler(s.public(s.api.ListApps(api.EnvelopePaged)))
	s.mux.Methods(http.MethodGet).Path("/repo/repolist.json").Handler(s.public(s.api.ListApps(api.EnvelopeRepo)))

	// Registered before the {id} routes so "stats" is not taken for an id.
	s.mux.Methods(http.MethodGet).Path("/api/v2/apps/stats").Handler(s.public(s.api.Stats()))

	for _, p := range appsPaths {
		s.mux.Methods(http.MethodGet).Path(p + "/{id}").Handler(s.public(s.api.GetApp()))
	}
}

func (s *Server) registerManageHandler() {
	s.mux.Methods(http.MethodGet).Path("/api/v1/manage/apps").Handler(s.private(s.api.ManageApps(api.EnvelopeBare)))
	s.mux.Methods(http.MethodGet).Path("/api/v2/manage/apps").Handler(s.private(s.api.ManageApps(api.EnvelopePaged)))
	s.mux.Methods(http.MethodGet).Path("/api/v1/manage/apps/{id}").Handler(s.private(s.api.ManageApp()))
	s.mux.Methods(http.MethodGet).Path("/api/v2/manage/apps/{id}").Handler(s.private(s.api.ManageApp()))

	for _, p := range managePaths {
		s.mux.Methods(http.MethodPost).Path(p).Handler(s.private(s.api.CreateApp()))
		s.mux.Methods(http.MethodPut).Path(p + "/{id}").Handler(s.private(s.api.UpdateApp()))
	}
}

func (s *Server) registerAssetHandler() {
	s.mux.Methods(http.MethodGet).Path("/api/download/{id}/{file}").Handler(s.public(s.api.Download()))
	s.mux.Methods(http.MethodGet).Path("/api/icon/{version}/{id}").Handler(s.public(s.api.Icon()))
	s.mux.Methods(http.MethodGet).Path("/api/icon/{id}").Handler(s.public(s.api.Icon()))

	if s.assets != "" {
		fs := http.StripPrefix(local.AssetsPath, http.FileServer(http.Dir(s.assets)))
		s.mux.Methods(http.MethodGet, http.MethodHead).PathPrefix(local.AssetsPath).Handler(s.public(fs))
	}
}

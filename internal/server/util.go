package server

import (
	"net/http"

	"github.com/openstore/openstore/internal/handler"
	"github.com/openstore/openstore/internal/middleware"
)

func (s *Server) registerUtilHandler() {
	s.mux.Methods(http.MethodGet).Path("/api/health").Handler(s.api.Health())
	s.mux.Methods(http.MethodGet).Path("/healthz").Handler(s.HealthCheck())

	s.mux.NotFoundHandler = middleware.AccessLog(s.logger)(s.NotFound())
}

func (s *Server) registerMetricsHandler() {
	s.mux.Methods(http.MethodGet).Path("/metrics").Handler(s.metric.Handler())
}

func (s *Server) HealthCheck() http.Handler {
	return handler.NewHandler(s.logger, func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusOK)
		return nil
	})
}

func (s *Server) NotFound() http.Handler {
	return handler.NewHandler(s.logger, func(w http.ResponseWriter, r *http.Request) error {
		msg := "Route not found"
		return handler.JSON(w, r, http.StatusNotFound, &handler.Response{Message: &msg})
	})
}

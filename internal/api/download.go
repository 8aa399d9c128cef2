package api

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/handler"
	"github.com/openstore/openstore/internal/icon"
	"github.com/openstore/openstore/internal/logging"
	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/store"
	"go.uber.org/zap"
)

// Download counts the download and redirects to the package asset. A
// failed counter update never blocks the redirect.
func (h *Handler) Download() http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		pkg, err := h.store.GetPublished(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			return storeError(err)
		}

		if pkg.Package == "" {
			return kerrors.New(kerrors.KindNotFound)
		}

		if err := h.store.IncrementDownloads(r.Context(), pkg.ID, model.DownloadKey(pkg.Version), pkg.Revision); err != nil {
			logging.FromCtxOr(r.Context(), h.logger).Warn("failed to count download",
				zap.String("id", pkg.ID),
				zap.Error(err),
			)
		}
		h.metric.ObserveDownload()

		http.Redirect(w, r, pkg.Package, http.StatusMovedPermanently)
		return nil
	})
}

// Icon serves the cached package icon, or the fallback image with a 404
// when the package or its icon is missing.
func (h *Handler) Icon() http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		logger := logging.FromCtxOr(r.Context(), h.logger)
		id := strings.TrimSuffix(strings.TrimSuffix(mux.Vars(r)["id"], ".png"), ".svg")

		pkg, err := h.store.Get(r.Context(), id)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				logger.Error("failed to load package for icon", zap.String("id", id), zap.Error(err))
			}
			return serveFallback(w)
		}

		p, err := h.icons.Get(r.Context(), pkg)
		if err != nil {
			if !errors.Is(err, icon.ErrNoIcon) {
				logger.Warn("failed to fetch icon", zap.String("id", id), zap.Error(err))
			}
			return serveFallback(w)
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			return err
		}

		w.Header().Set("Content-Type", contentType(p))
		w.Header().Set("Cache-Control", icon.CacheControl)
		http.ServeContent(w, r, filepath.Base(p), stat.ModTime(), f)
		return nil
	})
}

func serveFallback(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusNotFound)
	w.Write(icon.Fallback())
	return nil
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

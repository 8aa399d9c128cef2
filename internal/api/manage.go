package api

import (
	"net/http"

	"github.com/gorilla/mux"
	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/handler"
	"github.com/openstore/openstore/internal/query"
)

// ManageApps lists the packages of the requesting user, every package for
// admins, published or not.
func (h *Handler) ManageApps(envelope Envelope) http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		user, err := currentUser(r)
		if err != nil {
			return err
		}

		params, err := requestParams(r)
		if err != nil {
			return err
		}

		base := query.Query{}
		if !user.IsAdmin() {
			base.Maintainer = user.ID
		}

		return h.list(w, r, envelope, query.Build(params, base))
	})
}

func (h *Handler) ManageApp() http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		user, err := currentUser(r)
		if err != nil {
			return err
		}

		pkg, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			return storeError(err)
		}

		// Packages of other maintainers are reported as missing.
		if !user.CanManage(pkg) {
			return kerrors.New(kerrors.KindNotFound)
		}

		return handler.Success(w, r, h.packageView(h.base(r), pkg))
	})
}

func (h *Handler) CreateApp() http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		user, err := currentUser(r)
		if err != nil {
			return err
		}

		upload, md, err := h.receiveUpload(w, r)
		if err != nil {
			return err
		}

		pkg, err := h.pipeline.Create(r.Context(), user, upload, md)
		if err != nil {
			return kerrors.Wrap(err, kerrors.WithMessage("There was an error creating your app, please try again later"))
		}

		return handler.Success(w, r, h.packageView(h.base(r), pkg))
	})
}

func (h *Handler) UpdateApp() http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		user, err := currentUser(r)
		if err != nil {
			return err
		}

		upload, md, err := h.receiveUpload(w, r)
		if err != nil {
			return err
		}

		pkg, err := h.pipeline.Update(r.Context(), user, mux.Vars(r)["id"], upload, md)
		if err != nil {
			return kerrors.Wrap(err, kerrors.WithMessage("There was an error updating your app, please try again later"))
		}

		return handler.Success(w, r, h.packageView(h.base(r), pkg))
	})
}

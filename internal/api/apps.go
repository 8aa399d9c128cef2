package api

import (
	"net/http"

	"github.com/gorilla/mux"
	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/handler"
	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/query"
	"github.com/openstore/openstore/internal/version"
)

// Envelope selects the response shape of a listing endpoint.
type Envelope int

const (
	// EnvelopeBare wraps the package array in the success envelope.
	EnvelopeBare Envelope = iota
	// EnvelopePaged adds count and pagination links.
	EnvelopePaged
	// EnvelopeRepo is the legacy {success, message, packages} shape.
	EnvelopeRepo
)

// catalogTypes are the types listed by the public catalog.
var catalogTypes = []string{model.TypeApp, model.TypeWebapp, model.TypeScope, model.TypeWebappP}

type PagedResponse struct {
	Count    int                `json:"count"`
	Packages []*PackageResponse `json:"packages"`
	Next     *string            `json:"next"`
	Previous *string            `json:"previous"`
}

type RepoResponse struct {
	Success  bool               `json:"success"`
	Message  *string            `json:"message"`
	Packages []*PackageResponse `json:"packages"`
}

func catalogQuery() query.Query {
	published := true
	return query.Query{
		Published: &published,
		Types:     catalogTypes,
	}
}

func requestParams(r *http.Request) (*query.Params, error) {
	params, err := query.FromRequest(r)
	if err != nil {
		return nil, kerrors.Wrap(err, kerrors.WithBadRequest(), kerrors.WithDetail("Invalid request parameters"))
	}
	return params, nil
}

func (h *Handler) ListApps(envelope Envelope) http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		params, err := requestParams(r)
		if err != nil {
			return err
		}

		return h.list(w, r, envelope, query.Build(params, catalogQuery()))
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, envelope Envelope, q query.Query) error {
	pkgs, count, err := h.store.Find(r.Context(), q)
	if err != nil {
		return kerrors.Wrap(err, kerrors.WithMessage("Could not fetch app list at this time"))
	}

	views := h.packageViews(h.base(r), pkgs)

	switch envelope {
	case EnvelopeRepo:
		return handler.JSON(w, r, http.StatusOK, &RepoResponse{
			Success:  true,
			Packages: views,
		})
	case EnvelopePaged:
		next, previous := query.Links(h.requestURL(r), q.Skip, q.Limit, len(pkgs))
		return handler.Success(w, r, &PagedResponse{
			Count:    count,
			Packages: views,
			Next:     next,
			Previous: previous,
		})
	default:
		return handler.Success(w, r, views)
	}
}

// GetApp returns a published package. The optional frameworks and
// architecture parameters turn a package that does not fit into a 404.
func (h *Handler) GetApp() http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		pkg, err := h.store.GetPublished(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			return storeError(err)
		}

		params, err := requestParams(r)
		if err != nil {
			return err
		}

		built := query.Build(params, query.Query{})
		constraint := query.Query{
			Frameworks:    built.Frameworks,
			Architectures: built.Architectures,
		}
		if !constraint.Matches(pkg) {
			return kerrors.New(kerrors.KindNotFound)
		}

		return handler.Success(w, r, h.packageView(h.base(r), pkg))
	})
}

func (h *Handler) Stats() http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		stats, err := h.store.Stats(r.Context())
		if err != nil {
			return err
		}

		return handler.Success(w, r, stats)
	})
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func (h *Handler) Health() http.Handler {
	return handler.NewHandler(h.logger, func(w http.ResponseWriter, r *http.Request) error {
		return handler.Success(w, r, &HealthResponse{
			Status:  "ok",
			Version: version.Version,
			Commit:  version.Commit,
		})
	})
}

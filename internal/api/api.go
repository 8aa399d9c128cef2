package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/icon"
	"github.com/openstore/openstore/internal/metric"
	"github.com/openstore/openstore/internal/middleware"
	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/store"
	"github.com/openstore/openstore/internal/submission"
	"go.uber.org/zap"
)

const (
	defaultMaxUploadSize = 512 << 20
	maxMemory            = 32 << 20
)

type Config struct {
	Icons     *icon.Cache
	Logger    *zap.Logger
	Metric    *metric.RegistryMetrics
	Pipeline  *submission.Pipeline
	Store     store.Store
	UploadDir string

	// BaseURL is the public address of the server, used for links in
	// responses. The request host is used when empty.
	BaseURL       string
	MaxUploadSize int64
}

// Handler serves the catalog, manage, download and icon endpoints.
type Handler struct {
	baseURL       string
	icons         *icon.Cache
	logger        *zap.Logger
	maxUploadSize int64
	metric        *metric.RegistryMetrics
	pipeline      *submission.Pipeline
	store         store.Store
	uploadDir     string
}

func New(cfg *Config) *Handler {
	maxUploadSize := cfg.MaxUploadSize
	if maxUploadSize <= 0 {
		maxUploadSize = defaultMaxUploadSize
	}

	return &Handler{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		icons:         cfg.Icons,
		logger:        cfg.Logger,
		maxUploadSize: maxUploadSize,
		metric:        cfg.Metric,
		pipeline:      cfg.Pipeline,
		store:         cfg.Store,
		uploadDir:     cfg.UploadDir,
	}
}

func (h *Handler) base(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

func (h *Handler) requestURL(r *http.Request) string {
	return h.base(r) + r.URL.RequestURI()
}

func currentUser(r *http.Request) (*model.User, error) {
	user, ok := middleware.UserFromCtx(r.Context())
	if !ok {
		return nil, kerrors.New(kerrors.KindUnauthorized)
	}
	return user, nil
}

func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return kerrors.Wrap(err, kerrors.WithNotFound())
	}
	return err
}

// receiveUpload reads the submitted form. The package file, if any, is
// copied to the upload directory and owned by the pipeline from then on.
func (h *Handler) receiveUpload(w http.ResponseWriter, r *http.Request) (*submission.Upload, *submission.Metadata, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, kerrors.Wrap(err, kerrors.WithBadRequest(), kerrors.WithDetail("Invalid upload"))
		}
		if err := r.ParseForm(); err != nil {
			return nil, nil, kerrors.Wrap(err, kerrors.WithBadRequest(), kerrors.WithDetail("Invalid form"))
		}
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	md, err := submission.MetadataFromForm(r.PostForm)
	if err != nil {
		return nil, nil, err
	}

	if r.MultipartForm == nil {
		return nil, md, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, md, nil
		}
		return nil, nil, kerrors.Wrap(err, kerrors.WithBadRequest(), kerrors.WithDetail("Invalid upload"))
	}
	defer file.Close()

	tmp, err := os.CreateTemp(h.uploadDir, "upload-*")
	if err != nil {
		return nil, nil, err
	}

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, nil, err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, nil, err
	}

	return &submission.Upload{Filename: header.Filename, Path: tmp.Name()}, md, nil
}

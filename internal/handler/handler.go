package handler

import (
	"encoding/json"
	"net/http"

	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/logging"
	"go.uber.org/zap"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool    `json:"success"`
	Data    any     `json:"data"`
	Message *string `json:"message"`
}

type Handler struct {
	logger     *zap.Logger
	HandleFunc HandlerFunc
}

// HandlerFunc represents the api handler
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ServeHTTP Implements the http.Handler
func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.HandleFunc(w, r)
	if err == nil {
		return
	}

	logger := logging.FromCtxOr(r.Context(), h.logger)
	e := kerrors.Wrap(err)
	if e.Kind == kerrors.KindInternal {
		logger.Error("error handling request", zap.Error(err))
	} else {
		logger.Debug("rejected request", zap.Stringer("kind", e.Kind), zap.Error(err))
	}

	msg := e.ClientMessage()
	WriteJSON(w, logger, e.Kind.Status(), &Response{
		Success: false,
		Message: &msg,
	})
}

func NewHandler(logger *zap.Logger, f HandlerFunc) http.Handler {
	return &Handler{
		logger:     logger,
		HandleFunc: f,
	}
}

// Success writes data in a successful envelope.
func Success(w http.ResponseWriter, r *http.Request, data any) error {
	return JSON(w, r, http.StatusOK, &Response{
		Success: true,
		Data:    data,
	})
}

// JSON writes v as is, for the legacy envelopes.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) error {
	WriteJSON(w, logging.FromCtxOr(r.Context(), zap.NewNop()), status, v)
	return nil
}

func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("error to response", zap.Error(err))
	}
}

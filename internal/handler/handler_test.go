package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	kerrors "github.com/openstore/openstore/internal/errors"
	"go.uber.org/zap/zaptest"
)

func serve(t *testing.T, f HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	NewHandler(zaptest.NewLogger(t), f).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

func TestSuccessEnvelope(t *testing.T) {
	rec, body := serve(t, func(w http.ResponseWriter, r *http.Request) error {
		return Success(w, r, map[string]int{"count": 1})
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if body["success"] != true || body["message"] != nil {
		t.Fatalf("unexpected envelope %v", body)
	}
	if data := body["data"].(map[string]any); data["count"] != float64(1) {
		t.Fatalf("unexpected data %v", body["data"])
	}
}

func TestErrorEnvelope(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{kerrors.New(kerrors.KindNotFound), http.StatusNotFound, "App not found"},
		{kerrors.New(kerrors.KindBadNamespace), http.StatusBadRequest, "You package name is for a domain that you do not have access to"},
		{kerrors.New(kerrors.KindConflict), http.StatusConflict, "The app was modified concurrently, please try again"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "There was an error processing your request, please try again later"},
	}

	for _, tt := range tests {
		rec, body := serve(t, func(w http.ResponseWriter, r *http.Request) error {
			return tt.err
		})

		if rec.Code != tt.status {
			t.Errorf("%v: expected status %d, got %d", tt.err, tt.status, rec.Code)
		}
		if body["success"] != false || body["message"] != tt.message || body["data"] != nil {
			t.Errorf("%v: unexpected envelope %v", tt.err, body)
		}
	}
}

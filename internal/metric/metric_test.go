package metric

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/store"
	"go.uber.org/zap/zaptest"
)

func TestRegistryMetrics(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewBolt(&store.BoltConfig{
		Path:   filepath.Join(t.TempDir(), "metric.db"),
		Logger: zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Create(ctx, &model.Package{ID: "a", Published: true})
	s.Create(ctx, &model.Package{ID: "b", Published: true})
	s.Create(ctx, &model.Package{ID: "c"})

	m := New(&Config{Logger: zaptest.NewLogger(t), Store: s})
	m.RegisterAllMetrics()
	m.Resync(ctx)

	m.ObserveSubmission(OperationCreate, nil)
	m.ObserveSubmission(OperationCreate, kerrors.New(kerrors.KindBadNamespace))
	m.ObserveDownload()
	m.ObserveDownload()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, line := range []string{
		`openstore_packages{published="true"} 2`,
		`openstore_packages{published="false"} 1`,
		`openstore_downloads_total 2`,
		`openstore_submissions_total{operation="create",result="ok"} 1`,
		`openstore_submissions_total{operation="create",result="BadNamespace"} 1`,
	} {
		if !strings.Contains(string(body), line) {
			t.Errorf("expected %q in metrics output", line)
		}
	}
}

func TestNilRegistryMetrics(t *testing.T) {
	var m *RegistryMetrics

	m.RegisterAllMetrics()
	m.Resync(context.Background())
	m.ObserveSubmission(OperationUpdate, nil)
	m.ObserveDownload()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Fatalf("expected 404 without metrics, got %d", rec.Code)
	}
}

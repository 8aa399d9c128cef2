package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openstore/openstore/internal/api"
	"github.com/openstore/openstore/internal/driver/local"
	"github.com/openstore/openstore/internal/icon"
	"github.com/openstore/openstore/internal/manifest"
	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/review"
	"github.com/openstore/openstore/internal/store"
	"github.com/openstore/openstore/internal/submission"
	"go.uber.org/zap/zaptest"
)

const baseURL = "http://openstore.test"

type jsonParser struct{}

func (jsonParser) Parse(ctx context.Context, path string) (*manifest.Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m manifest.Manifest
	return &m, json.Unmarshal(b, &m)
}

type passReviewer struct{}

func (passReviewer) Review(ctx context.Context, path string) (*review.Result, error) {
	return &review.Result{Passed: true}, nil
}

type testServer struct {
	handler   http.Handler
	store     store.Store
	uploadDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	s, err := store.NewBolt(&store.BoltConfig{Path: filepath.Join(dir, "openstore.db"), Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	s.PutUser(ctx, &model.User{ID: "alice", Name: "Alice", APIKey: "alice-key", Role: model.RoleCommunity})
	s.PutUser(ctx, &model.User{ID: "bob", Name: "Bob", APIKey: "bob-key", Role: model.RoleCommunity})

	assetsDir := filepath.Join(dir, "assets")
	uploadDir := filepath.Join(dir, "uploads")
	os.MkdirAll(uploadDir, 0755)

	icons, err := icon.New(&icon.Config{Dir: filepath.Join(dir, "icons"), Logger: logger})
	if err != nil {
		t.Fatal(err)
	}

	pipeline := submission.New(&submission.Config{
		Driver:   local.NewDriver(&local.DriverConfig{RootPath: assetsDir, BaseURL: baseURL, Logger: logger}),
		Logger:   logger,
		Parser:   jsonParser{},
		Reviewer: passReviewer{},
		Store:    s,
	})

	svr := NewServer(&ServerConfig{
		API: api.New(&api.Config{
			BaseURL:   baseURL,
			Icons:     icons,
			Logger:    logger,
			Pipeline:  pipeline,
			Store:     s,
			UploadDir: uploadDir,
		}),
		AssetsDir: assetsDir,
		Logger:    logger,
		Store:     s,
	})

	return &testServer{handler: svr.Handler(), store: s, uploadDir: uploadDir}
}

func (ts *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func (ts *testServer) get(t *testing.T, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return ts.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func uploadRequest(t *testing.T, method, target, filename, manifest string, fields map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(manifest))
	}
	mw.Close()

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func fooManifest(version string) string {
	return fmt.Sprintf(`{"name": "foo.bar", "version": %q, "architecture": "all", "types": ["app"]}`, version)
}

func TestSubmitListDownload(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, uploadRequest(t, http.MethodPost, "/api/v2/manage/apps?apikey=alice-key", "foo.bar_1.0_all.click", fooManifest("1.0"),
		map[string]string{"published": "true", "name": "Foo Bar", "category": "Games"}))
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("create failed: %d %s", rec.Code, rec.Body.String())
	}

	data := body["data"].(map[string]any)
	if data["id"] != "foo.bar" || data["maintainer"] != "alice" {
		t.Fatalf("unexpected package %v", data)
	}
	if data["download"] != baseURL+"/api/download/foo.bar/foo.bar_1.0_all.click" {
		t.Errorf("unexpected download link %v", data["download"])
	}

	entries, _ := os.ReadDir(ts.uploadDir)
	if len(entries) != 0 {
		t.Errorf("upload directory not cleaned: %v", entries)
	}

	t.Run("paged", func(t *testing.T) {
		rec, body := ts.get(t, "/api/v2/apps")
		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %d", rec.Code)
		}
		data := body["data"].(map[string]any)
		if data["count"] != float64(1) || data["next"] != nil || data["previous"] != nil {
			t.Fatalf("unexpected page %v", data)
		}
	})

	t.Run("bare", func(t *testing.T) {
		_, body := ts.get(t, "/api/apps")
		if pkgs := body["data"].([]any); len(pkgs) != 1 {
			t.Fatalf("unexpected packages %v", pkgs)
		}
	})

	t.Run("repolist", func(t *testing.T) {
		_, body := ts.get(t, "/repo/repolist.json")
		if body["success"] != true || body["message"] != nil || len(body["packages"].([]any)) != 1 {
			t.Fatalf("unexpected repolist %v", body)
		}
	})

	t.Run("get with constraints", func(t *testing.T) {
		if rec, _ := ts.get(t, "/api/v2/apps/foo.bar?architecture=armhf"); rec.Code != http.StatusOK {
			t.Errorf("an all package fits every architecture, got %d", rec.Code)
		}
		rec, body := ts.get(t, "/api/v1/apps/foo.bar?frameworks=ubuntu-sdk-15.04")
		if rec.Code != http.StatusNotFound || body["message"] != "App not found" {
			t.Errorf("expected 404 for a framework mismatch, got %d %v", rec.Code, body)
		}
	})

	t.Run("stats", func(t *testing.T) {
		_, body := ts.get(t, "/api/v2/apps/stats")
		data := body["data"].(map[string]any)
		if data["categories"].(map[string]any)["Games"] != float64(1) {
			t.Errorf("unexpected stats %v", data)
		}
	})

	t.Run("download", func(t *testing.T) {
		rec, _ := ts.get(t, "/api/download/foo.bar/foo.bar_1.0_all.click")
		if rec.Code != http.StatusMovedPermanently {
			t.Fatalf("expected a redirect, got %d", rec.Code)
		}

		location := rec.Header().Get("Location")
		if location != baseURL+"/assets/packages/foo.bar/foo.bar_1.0_all.click" {
			t.Fatalf("unexpected location %s", location)
		}

		pkg, err := ts.store.Get(context.Background(), "foo.bar")
		if err != nil {
			t.Fatal(err)
		}
		if pkg.Downloads["v1__0"] != 1 || pkg.Revisions[0].Downloads != 1 {
			t.Errorf("expected both counters at 1, got %v / %d", pkg.Downloads, pkg.Revisions[0].Downloads)
		}

		asset, _ := ts.get(t, strings.TrimPrefix(location, baseURL))
		if asset.Code != http.StatusOK || asset.Body.String() != fooManifest("1.0") {
			t.Errorf("local asset not served: %d", asset.Code)
		}
	})

	t.Run("update", func(t *testing.T) {
		rec, _ := ts.do(t, uploadRequest(t, http.MethodPut, "/api/v2/manage/apps/foo.bar?apikey=bob-key", "foo.click", fooManifest("2.0"), nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected bob to be denied, got %d", rec.Code)
		}

		req := uploadRequest(t, http.MethodPut, "/api/apps/foo.bar", "foo.click", fooManifest("2.0"), nil)
		req.Header.Set("X-API-Key", "alice-key")
		rec, body := ts.do(t, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("update failed: %d %s", rec.Code, rec.Body.String())
		}
		if data := body["data"].(map[string]any); data["version"] != "2.0" || len(data["revisions"].([]any)) != 2 {
			t.Fatalf("unexpected package %v", data)
		}

		rec, body = ts.do(t, uploadRequest(t, http.MethodPut, "/api/v1/manage/apps/foo.bar?apikey=alice-key", "foo.click", fooManifest("2.0"), nil))
		if rec.Code != http.StatusBadRequest || body["message"] != "A revision already exists with this version" {
			t.Fatalf("expected ExistingVersion, got %d %v", rec.Code, body)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		rec, body := ts.do(t, uploadRequest(t, http.MethodPost, "/api/apps?apikey=alice-key", "foo.click", fooManifest("3.0"), nil))
		if rec.Code != http.StatusBadRequest || body["message"] != "A package with the same name already exists" {
			t.Fatalf("expected DuplicatePackage, got %d %v", rec.Code, body)
		}
	})
}

func TestSubmitErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		req     *http.Request
		status  int
		message string
	}{
		{
			name:    "no api key",
			req:     uploadRequest(t, http.MethodPost, "/api/v2/manage/apps", "foo.click", fooManifest("1.0"), nil),
			status:  http.StatusUnauthorized,
			message: "Unauthorized",
		},
		{
			name:    "no file",
			req:     uploadRequest(t, http.MethodPost, "/api/v2/manage/apps?apikey=alice-key", "", "", map[string]string{"name": "x"}),
			status:  http.StatusBadRequest,
			message: "No file upload specified",
		},
		{
			name:    "bad file",
			req:     uploadRequest(t, http.MethodPost, "/api/v2/manage/apps?apikey=alice-key", "foo.deb", fooManifest("1.0"), nil),
			status:  http.StatusBadRequest,
			message: "The file must be a click or snap package",
		},
		{
			name:    "bad namespace",
			req:     uploadRequest(t, http.MethodPost, "/api/v2/manage/apps?apikey=alice-key", "a.click", `{"name": "com.ubports.x", "version": "1", "architecture": "all"}`, nil),
			status:  http.StatusBadRequest,
			message: "You package name is for a domain that you do not have access to",
		},
		{
			name:    "unknown package",
			req:     uploadRequest(t, http.MethodPut, "/api/v2/manage/apps/nope?apikey=alice-key", "", "", map[string]string{"name": "x"}),
			status:  http.StatusNotFound,
			message: "App not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := ts.do(t, tt.req)
			if rec.Code != tt.status || body["message"] != tt.message {
				t.Fatalf("expected %d %q, got %d %v", tt.status, tt.message, rec.Code, body)
			}
		})
	}

	entries, _ := os.ReadDir(ts.uploadDir)
	if len(entries) != 0 {
		t.Errorf("upload directory not cleaned: %v", entries)
	}
}

func TestManageListing(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	ts.store.Create(ctx, &model.Package{ID: "alice.app", Maintainer: "alice"})
	ts.store.Create(ctx, &model.Package{ID: "bob.app", Maintainer: "bob", Published: true})

	_, body := ts.get(t, "/api/v1/manage/apps?apikey=alice-key")
	pkgs := body["data"].([]any)
	if len(pkgs) != 1 || pkgs[0].(map[string]any)["id"] != "alice.app" {
		t.Fatalf("alice must only see her packages, got %v", pkgs)
	}

	_, body = ts.get(t, "/api/v2/manage/apps?apikey=alice-key")
	if body["data"].(map[string]any)["count"] != float64(1) {
		t.Fatalf("unexpected paged listing %v", body)
	}

	if rec, _ := ts.get(t, "/api/v2/manage/apps/bob.app?apikey=alice-key"); rec.Code != http.StatusNotFound {
		t.Fatalf("other maintainers' packages are hidden, got %d", rec.Code)
	}
	if rec, _ := ts.get(t, "/api/v2/manage/apps/alice.app?apikey=alice-key"); rec.Code != http.StatusOK {
		t.Fatalf("expected own unpublished package, got %d", rec.Code)
	}
	if rec, _ := ts.get(t, "/api/v2/apps/alice.app"); rec.Code != http.StatusNotFound {
		t.Fatalf("unpublished packages are not public, got %d", rec.Code)
	}
}

func TestPagination(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.store.Create(context.Background(), &model.Package{
			ID:        fmt.Sprintf("app.%d", i),
			Name:      fmt.Sprintf("App %d", i),
			Published: true,
			Types:     []string{"app"},
		})
	}

	_, body := ts.get(t, "/api/v2/apps?limit=2&sort=name")
	data := body["data"].(map[string]any)
	if data["count"] != float64(3) || len(data["packages"].([]any)) != 2 {
		t.Fatalf("unexpected page %v", data)
	}
	if data["next"] != baseURL+"/api/v2/apps?limit=2&sort=name&skip=2" || data["previous"] != nil {
		t.Fatalf("unexpected links %v / %v", data["next"], data["previous"])
	}

	_, body = ts.get(t, "/api/v2/apps?limit=2&sort=name&skip=2")
	data = body["data"].(map[string]any)
	if data["next"] != nil || data["previous"] != baseURL+"/api/v2/apps?limit=2&sort=name&skip=0" {
		t.Fatalf("unexpected links %v / %v", data["next"], data["previous"])
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v2/apps", strings.NewReader(`{"apps": ["app.1", "app.2"], "types": "app"}`))
	req.Header.Set("Content-Type", "application/json")
	_, body = ts.do(t, req)
	if data := body["data"].(map[string]any); data["count"] != float64(2) {
		t.Fatalf("body filters must apply, got %v", data)
	}
}

func TestIcon(t *testing.T) {
	ts := newTestServer(t)

	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<svg/>"))
	}))
	defer src.Close()

	ts.store.Create(context.Background(), &model.Package{ID: "foo.bar", Version: "1.0", Icon: src.URL + "/foo.svg"})
	ts.store.Create(context.Background(), &model.Package{ID: "no.icon", Version: "1.0"})

	rec, _ := ts.get(t, "/api/icon/1.0/foo.bar.svg")
	if rec.Code != http.StatusOK || rec.Body.String() != "<svg/>" {
		t.Fatalf("unexpected icon response %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") != icon.CacheControl || rec.Header().Get("Content-Type") != "image/svg+xml" {
		t.Errorf("unexpected headers %v", rec.Header())
	}

	for _, target := range []string{"/api/icon/missing.png", "/api/icon/no.icon.png"} {
		rec, _ := ts.get(t, target)
		if rec.Code != http.StatusNotFound || rec.Header().Get("Content-Type") != "image/png" {
			t.Errorf("%s: expected the fallback icon, got %d", target, rec.Code)
		}
		if !bytes.Equal(rec.Body.Bytes(), icon.Fallback()) {
			t.Errorf("%s: unexpected body", target)
		}
	}
}

func TestUtilRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.get(t, "/api/health")
	if rec.Code != http.StatusOK || body["data"].(map[string]any)["status"] != "ok" {
		t.Fatalf("unexpected health %d %v", rec.Code, body)
	}

	if rec, _ := ts.get(t, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("unexpected healthz %d", rec.Code)
	}

	rec, body = ts.get(t, "/nope")
	if rec.Code != http.StatusNotFound || body["success"] != false {
		t.Fatalf("unexpected not found response %d %v", rec.Code, body)
	}
}

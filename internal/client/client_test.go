package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	return New(u, WithAPIKey("secret"), WithUserAgent("openstore-cli/test"))
}

func TestList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/apps" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q := r.URL.Query(); q.Get("limit") != "2" || q.Get("search") != "foo" || len(q["types[]"]) != 2 {
			t.Errorf("unexpected query %v", q)
		}
		if r.Header.Get("X-API-Key") != "secret" || r.Header.Get("User-Agent") != "openstore-cli/test" {
			t.Errorf("unexpected headers %v", r.Header)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success": true, "data": {"count": 3, "packages": [{"id": "foo.bar"}], "next": "http://x/api/v2/apps?skip=2", "previous": null}, "message": null}`)
	})

	page, err := c.Apps.List(context.Background(), &ListOptions{Limit: 2, Search: "foo", Types: []string{"app", "webapp"}})
	if err != nil {
		t.Fatal(err)
	}
	if page.Count != 3 || len(page.Packages) != 1 || page.Packages[0].ID != "foo.bar" {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Next == nil || page.Previous != nil {
		t.Fatalf("unexpected links %v %v", page.Next, page.Previous)
	}
}

func TestErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"success": false, "data": null, "message": "App not found"}`)
	})

	_, err := c.Apps.Get(context.Background(), "missing")

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected an api error, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "App not found" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestCreate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v2/manage/apps" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		if r.FormValue("name") != "Foo" {
			t.Errorf("unexpected fields %v", r.PostForm)
		}

		f, header, err := r.FormFile("file")
		if err != nil {
			t.Error(err)
			return
		}
		defer f.Close()

		b, _ := io.ReadAll(f)
		if header.Filename != "foo.click" || string(b) != "package" {
			t.Errorf("unexpected file %s %q", header.Filename, b)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success": true, "data": {"id": "foo.bar", "version": "1.0"}, "message": null}`)
	})

	path := filepath.Join(t.TempDir(), "foo.click")
	if err := os.WriteFile(path, []byte("package"), 0644); err != nil {
		t.Fatal(err)
	}

	pkg, err := c.Apps.Create(context.Background(), path, map[string]string{"name": "Foo"})
	if err != nil {
		t.Fatal(err)
	}
	if pkg.ID != "foo.bar" || pkg.Version != "1.0" {
		t.Fatalf("unexpected package %+v", pkg)
	}

	if _, err := c.Apps.Create(context.Background(), "", nil); err == nil {
		t.Fatal("expected an error without a file")
	}
}

func TestUpdateMetadataOnly(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/v2/manage/apps/foo.bar" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}

		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		if _, _, err := r.FormFile("file"); !errors.Is(err, http.ErrMissingFile) {
			t.Errorf("expected no file, got %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success": true, "data": {"id": "foo.bar", "published": true}, "message": null}`)
	})

	pkg, err := c.Apps.Update(context.Background(), "foo.bar", "", map[string]string{"published": "true"})
	if err != nil {
		t.Fatal(err)
	}
	if !pkg.Published {
		t.Fatalf("unexpected package %+v", pkg)
	}
}

package local

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/openstore/openstore/internal/driver"
	"go.uber.org/zap/zaptest"
)

func TestPutDelete(t *testing.T) {
	root := t.TempDir()
	d := NewDriver(&DriverConfig{
		RootPath: root,
		BaseURL:  "https://open-store.io/",
		Logger:   zaptest.NewLogger(t),
	})
	ctx := context.Background()

	key := driver.PackageKey("foo.bar", "1.0", "armhf", ".click")
	url, err := d.Put(ctx, key, bytes.NewBufferString("click"), "application/octet-stream")
	if err != nil {
		t.Fatal(err)
	}

	if expected := "https://open-store.io/assets/packages/foo.bar/foo.bar_1.0_armhf.click"; url != expected {
		t.Fatalf("expected url %s, got %s", expected, url)
	}

	b, err := os.ReadFile(filepath.Join(root, "packages", "foo.bar", "foo.bar_1.0_armhf.click"))
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "click" {
		t.Fatalf("unexpected content %q", b)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "packages", "foo.bar"))
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}

	if err := d.Delete(ctx, key); err != nil {
		t.Fatal(err)
	}
	if err := d.Delete(ctx, key); !errors.Is(err, driver.ErrObjectNotExist) {
		t.Fatalf("expected ErrObjectNotExist, got %v", err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	d := NewDriver(&DriverConfig{RootPath: t.TempDir(), Logger: zaptest.NewLogger(t)})

	for _, key := range []string{"../outside", "packages/../../outside", ""} {
		if _, err := d.Put(context.Background(), key, bytes.NewBufferString("x"), ""); err == nil {
			t.Errorf("expected key %q to be rejected", key)
		}
	}
}

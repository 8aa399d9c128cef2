package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/openstore/openstore/internal/driver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// AssetsPath is where the server exposes the local root directory.
const AssetsPath = "/assets/"

type DriverConfig struct {
	RootPath string

	// BaseURL is the public address of the server, assets are served
	// under BaseURL/assets.
	BaseURL string
	Logger  *zap.Logger
	Tracer  trace.Tracer
}

type local struct {
	baseURL  string
	logger   *zap.Logger
	rootPath string
	tracer   trace.Tracer
}

var _ driver.Driver = (*local)(nil)

func NewDriver(cfg *DriverConfig) driver.Driver {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("driver.local")
	}

	return &local{
		baseURL:  driver.JoinURL(cfg.BaseURL, AssetsPath),
		logger:   cfg.Logger,
		rootPath: cfg.RootPath,
		tracer:   tracer,
	}
}

func (d *local) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	_, span := d.tracer.Start(ctx, "Put")
	defer span.End()

	p, err := d.path(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", err
	}

	// Write next to the destination first so readers never see a partial file.
	f, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", err
	}

	if err := f.Close(); err != nil {
		return "", err
	}

	if err := os.Chmod(f.Name(), 0644); err != nil {
		return "", err
	}

	if err := os.Rename(f.Name(), p); err != nil {
		return "", err
	}

	d.logger.Debug("saved object", zap.String("path", p))
	return d.URL(key), nil
}

func (d *local) Delete(ctx context.Context, key string) error {
	_, span := d.tracer.Start(ctx, "Delete")
	defer span.End()

	p, err := d.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return driver.ErrObjectNotExist
		}
		return err
	}

	d.logger.Debug("deleted object", zap.String("path", p))
	return nil
}

func (d *local) URL(key string) string {
	return driver.JoinURL(d.baseURL, key)
}

func (d *local) path(key string) (string, error) {
	p := filepath.Join(d.rootPath, filepath.FromSlash(key))
	rel, err := filepath.Rel(d.rootPath, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return p, nil
}

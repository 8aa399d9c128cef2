package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/validator"
	"go.uber.org/zap"
)

const (
	ExtClick = ".click"
	ExtSnap  = ".snap"
)

var ErrUnsupportedFormat = errors.New("unsupported package format")

// Manifest is the metadata embedded in an uploaded package.
type Manifest struct {
	Name          string   `json:"name" validate:"required"`
	Version       string   `json:"version" validate:"required"`
	Architecture  string   `json:"architecture" validate:"required"`
	Architectures []string `json:"architectures"`

	Title       string   `json:"title"`
	Description string   `json:"description"`
	Maintainer  string   `json:"maintainer"`
	Framework   string   `json:"framework"`
	Types       []string `json:"types"`

	// IconPath is a local file extracted from the package, owned by the
	// caller until Cleanup.
	IconPath string `json:"-"`

	Raw map[string]any `json:"-"`
}

// Validate fails with MalformedManifest when a required field is empty.
func (m *Manifest) Validate() error {
	if err := validator.Validate.Struct(m); err != nil {
		return kerrors.Wrap(err, kerrors.WithKind(kerrors.KindMalformedManifest))
	}
	return nil
}

// Cleanup removes files extracted while parsing.
func (m *Manifest) Cleanup() {
	if m != nil && m.IconPath != "" {
		os.Remove(m.IconPath)
	}
}

type Parser interface {
	Parse(ctx context.Context, path string) (*Manifest, error)
}

// Extension returns the recognized package extension of filename.
func Extension(filename string) (string, bool) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ExtClick, ExtSnap:
		return ext, true
	}
	return "", false
}

type Reader struct {
	click Parser
	snap  Parser
}

var _ Parser = (*Reader)(nil)

type ReaderConfig struct {
	Logger     *zap.Logger
	Unsquashfs string
}

// NewReader returns a Parser dispatching on the file extension.
func NewReader(cfg *ReaderConfig) *Reader {
	return &Reader{
		click: NewClickReader(cfg.Logger.Named("click")),
		snap:  NewSnapReader(cfg.Logger.Named("snap"), cfg.Unsquashfs),
	}
}

func (r *Reader) Parse(ctx context.Context, path string) (*Manifest, error) {
	ext, ok := Extension(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}

	if ext == ExtSnap {
		return r.snap.Parse(ctx, path)
	}
	return r.click.Parse(ctx, path)
}

// normalizeArchitectures maps the declared architecture list to the single
// value and list stored on packages.
func normalizeArchitectures(archs []string) (string, []string) {
	var out []string
	for _, a := range archs {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}

	switch len(out) {
	case 0:
		return "", nil
	case 1:
		return out[0], out
	default:
		for _, a := range out {
			if a == "all" {
				return "all", []string{"all"}
			}
		}
		return "multi", out
	}
}

// saveIcon writes the icon next to the package file.
func saveIcon(pkgPath, iconName string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(iconName))
	if ext == "" {
		ext = ".png"
	}

	p := pkgPath + ".icon" + ext
	if err := os.WriteFile(p, data, 0600); err != nil {
		return "", err
	}
	return p, nil
}

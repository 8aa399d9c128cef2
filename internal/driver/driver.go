package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrObjectNotExist = errors.New("object not exist")
)

const (
	packageRootPath = "packages"
	iconRootPath    = "icons"
)

type DriverType string

const (
	DriverTypeLocal DriverType = "local"
	DriverTypeS3    DriverType = "s3"
	DriverTypeGCS   DriverType = "gcs"
)

func (t DriverType) Valid() error {
	switch t {
	case DriverTypeLocal, DriverTypeS3, DriverTypeGCS:
		return nil
	default:
		return fmt.Errorf("no valid driver specified, got: %s", t)
	}
}

// Driver stores package assets and serves them from a public URL.
type Driver interface {
	// Put stores body under key and returns the public URL of the object.
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// PackageKey is the object key of a package file,
// e.g. packages/foo.bar/foo.bar_1.0_armhf.click.
func PackageKey(id, version, arch, ext string) string {
	return fmt.Sprintf("%s/%s/%s_%s_%s%s", packageRootPath, id, id, version, arch, ext)
}

// IconKey is the object key of a package icon, e.g. icons/foo.bar/foo.bar-1.0.png.
func IconKey(id, version, ext string) string {
	return fmt.Sprintf("%s/%s/%s-%s%s", iconRootPath, id, id, version, ext)
}

// JoinURL appends key to a base URL.
func JoinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

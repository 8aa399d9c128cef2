package icon

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/openstore/openstore/internal/driver"
	"github.com/openstore/openstore/internal/model"
	"go.uber.org/zap"
	"gopkg.in/retry.v1"
)

// CacheControl is sent with every served icon.
const CacheControl = "public, max-age=2592000"

const maxIconSize = 4 << 20

var (
	ErrNoIcon   = errors.New("package has no icon")
	ErrTooLarge = fmt.Errorf("icon exceeds %d bytes", maxIconSize)

	//go:embed 404.png
	fallback []byte

	fetchRetryStrategy = retry.LimitCount(4, retry.LimitTime(20*time.Second,
		retry.Exponential{
			Initial: 200 * time.Millisecond,
			Factor:  2.5,
		},
	))
)

// FetchError is a non successful response from the icon source.
type FetchError struct {
	Code int
	URL  string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.Code)
}

// Fallback is the image served for missing icons.
func Fallback() []byte {
	return fallback
}

type Config struct {
	Dir    string
	Client *http.Client
	Logger *zap.Logger

	// BaseURL resolves icon references that are not absolute URLs.
	BaseURL string
}

// Cache keeps local copies of package icons in Dir.
type Cache struct {
	baseURL string
	client  *http.Client
	dir     string
	logger  *zap.Logger
}

func New(cfg *Config) (*Cache, error) {
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, err
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Cache{
		baseURL: cfg.BaseURL,
		client:  client,
		dir:     cfg.Dir,
		logger:  cfg.Logger,
	}, nil
}

// Ext is the extension of the icon reference, .png when it has none.
func Ext(icon string) string {
	p := icon
	if u, err := url.Parse(icon); err == nil {
		p = u.Path
	}

	if ext := strings.ToLower(path.Ext(p)); ext != "" {
		return ext
	}
	return ".png"
}

// Path is the cache file of a package icon: {version}-{id}{ext}.
func (c *Cache) Path(version, id, ext string) string {
	return filepath.Join(c.dir, filepath.Base(fmt.Sprintf("%s-%s%s", version, id, ext)))
}

// Get returns the cached icon of pkg, downloading it on a miss.
func (c *Cache) Get(ctx context.Context, pkg *model.Package) (string, error) {
	if pkg.Icon == "" {
		return "", ErrNoIcon
	}

	p := c.Path(pkg.Version, pkg.ID, Ext(pkg.Icon))
	if _, err := os.Stat(p); err == nil {
		return p, nil
	}

	src := c.resolve(pkg.Icon)

	var err error
	for attempt := retry.Start(fetchRetryStrategy, nil); attempt.Next(); {
		err = c.fetch(ctx, src, p)
		if err == nil || !shouldRetry(ctx, err) {
			break
		}
		c.logger.Debug("retrying icon fetch", zap.String("url", src), zap.Error(err))
	}
	if err != nil {
		return "", err
	}

	return p, nil
}

func (c *Cache) resolve(icon string) string {
	if strings.HasPrefix(icon, "http://") || strings.HasPrefix(icon, "https://") {
		return icon
	}
	return driver.JoinURL(c.baseURL, icon)
}

// fetch downloads src into a temporary file next to dest and renames it,
// so a failed download never leaves a partial cache entry.
func (c *Cache) fetch(ctx context.Context, src, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{Code: resp.StatusCode, URL: src}
	}

	if resp.ContentLength > maxIconSize {
		return ErrTooLarge
	}

	f, err := os.CreateTemp(c.dir, ".icon-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxIconSize+1))
	if err != nil {
		f.Close()
		return err
	}
	if n > maxIconSize {
		f.Close()
		return ErrTooLarge
	}

	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Rename(f.Name(), dest); err != nil {
		return err
	}

	c.logger.Debug("cached icon", zap.String("url", src), zap.String("path", dest))
	return nil
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, ErrTooLarge) {
		return false
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code >= 500
	}
	return true
}

package submission

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openstore/openstore/internal/checksum"
	"github.com/openstore/openstore/internal/driver"
	kerrors "github.com/openstore/openstore/internal/errors"
	"github.com/openstore/openstore/internal/manifest"
	"github.com/openstore/openstore/internal/metric"
	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/review"
	"github.com/openstore/openstore/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	reservedPrefix  = "com.ubuntu."
	developerPrefix = "com.ubuntu.developer."
	ubportsPrefix   = "com.ubports."

	cleanupTimeout = 30 * time.Second
)

// Upload is a package file received from a client, stored at Path.
type Upload struct {
	Filename string
	Path     string
}

type Config struct {
	Driver   driver.Driver
	Logger   *zap.Logger
	Metric   *metric.RegistryMetrics
	Parser   manifest.Parser
	Reviewer review.Reviewer
	Store    store.Store
	Tracer   trace.Tracer

	ReviewTimeout time.Duration
	UploadTimeout time.Duration
}

// Pipeline validates uploaded packages and turns them into catalog
// entries and revisions.
type Pipeline struct {
	driver   driver.Driver
	logger   *zap.Logger
	metric   *metric.RegistryMetrics
	parser   manifest.Parser
	reviewer review.Reviewer
	store    store.Store
	tracer   trace.Tracer

	reviewTimeout time.Duration
	uploadTimeout time.Duration
}

func New(cfg *Config) *Pipeline {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("submission")
	}

	return &Pipeline{
		driver:        cfg.Driver,
		logger:        cfg.Logger,
		metric:        cfg.Metric,
		parser:        cfg.Parser,
		reviewer:      cfg.Reviewer,
		store:         cfg.Store,
		tracer:        tracer,
		reviewTimeout: cfg.ReviewTimeout,
		uploadTimeout: cfg.UploadTimeout,
	}
}

// Create submits a new package. No catalog entry exists unless every step,
// including the asset upload, succeeded.
func (p *Pipeline) Create(ctx context.Context, user *model.User, upload *Upload, md *Metadata) (pkg *model.Package, err error) {
	ctx, span := p.tracer.Start(ctx, "Create")
	defer span.End()

	defer func() {
		p.metric.ObserveSubmission(metric.OperationCreate, err)
	}()

	if upload == nil {
		return nil, kerrors.New(kerrors.KindNoFile)
	}
	defer os.Remove(upload.Path)

	if user == nil {
		return nil, kerrors.New(kerrors.KindUnauthorized)
	}

	path, ext, err := p.prepare(ctx, user, upload)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	m, sum, err := p.inspect(ctx, path, func(ctx context.Context, m *manifest.Manifest) error {
		if err := checkNamespace(user, m.Name); err != nil {
			return err
		}

		if _, err := p.store.Get(ctx, m.Name); err == nil {
			return kerrors.New(kerrors.KindDuplicatePackage)
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to look up %s: %w", m.Name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer m.Cleanup()

	pkg = model.NewPackage(m.Name)
	pkg.PublishedDate = time.Now().UTC()
	applyMetadata(pkg, user, md)
	applyManifest(pkg, m, md != nil && len(md.Types) > 0 && user.IsAdmin())

	keys, err := p.addRevision(ctx, pkg, m, sum, path, ext)
	if err != nil {
		return nil, err
	}

	if err := p.store.Create(ctx, pkg); err != nil {
		p.discard(ctx, keys)
		return nil, storeError(err)
	}

	p.logger.Info("created package",
		zap.String("id", pkg.ID),
		zap.String("version", pkg.Version),
		zap.String("maintainer", pkg.Maintainer),
	)

	p.metric.Resync(ctx)
	return pkg, nil
}

// Update edits the metadata of a package and, when a file is attached,
// appends a new revision.
func (p *Pipeline) Update(ctx context.Context, user *model.User, id string, upload *Upload, md *Metadata) (pkg *model.Package, err error) {
	ctx, span := p.tracer.Start(ctx, "Update")
	defer span.End()

	defer func() {
		p.metric.ObserveSubmission(metric.OperationUpdate, err)
	}()

	if upload != nil {
		defer os.Remove(upload.Path)
	}

	if user == nil {
		return nil, kerrors.New(kerrors.KindUnauthorized)
	}

	pkg, err = p.store.Get(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	if !user.CanManage(pkg) {
		return nil, kerrors.New(kerrors.KindPermissionDenied)
	}

	if upload == nil {
		applyMetadata(pkg, user, md)
		pkg.UpdatedDate = time.Now().UTC()

		if err := p.store.Update(ctx, pkg); err != nil {
			return nil, storeError(err)
		}
		return pkg, nil
	}

	path, ext, err := p.prepare(ctx, user, upload)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	m, sum, err := p.inspect(ctx, path, func(_ context.Context, m *manifest.Manifest) error {
		if m.Name != pkg.ID {
			return kerrors.New(kerrors.KindWrongPackage)
		}

		return pkg.CheckVersion(m.Version)
	})
	if err != nil {
		return nil, err
	}
	defer m.Cleanup()

	applyMetadata(pkg, user, md)
	applyManifest(pkg, m, md != nil && len(md.Types) > 0 && user.IsAdmin())

	keys, err := p.addRevision(ctx, pkg, m, sum, path, ext)
	if err != nil {
		return nil, err
	}

	if err := p.store.Update(ctx, pkg); err != nil {
		p.discard(ctx, keys)
		return nil, storeError(err)
	}

	p.logger.Info("added revision",
		zap.String("id", pkg.ID),
		zap.String("version", pkg.Version),
		zap.Int("revision", pkg.Revision),
	)

	return pkg, nil
}

// prepare checks the extension, moves the upload to a name carrying it and
// runs the review gate for non elevated users.
func (p *Pipeline) prepare(ctx context.Context, user *model.User, upload *Upload) (string, string, error) {
	ext, ok := manifest.Extension(upload.Filename)
	if !ok {
		return "", "", kerrors.New(kerrors.KindBadFile)
	}

	path := upload.Path + ext
	if err := os.Rename(upload.Path, path); err != nil {
		return "", "", fmt.Errorf("failed to rename upload: %w", err)
	}

	if user.IsElevated() {
		return path, ext, nil
	}

	if err := p.review(ctx, path); err != nil {
		os.Remove(path)
		return "", "", err
	}

	return path, ext, nil
}

func (p *Pipeline) review(ctx context.Context, path string) error {
	ctx, span := p.tracer.Start(ctx, "Review")
	defer span.End()

	if p.reviewTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.reviewTimeout)
		defer cancel()
	}

	res, err := p.reviewer.Review(ctx, path)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("review did not finish: %w", err)
		}
		return fmt.Errorf("review failed: %w", err)
	}

	if !res.Passed {
		return kerrors.New(kerrors.KindNeedsManualReview, kerrors.WithDetail(res.Reason))
	}
	return nil
}

// inspect parses and checksums the package concurrently. check runs on the
// validated manifest.
func (p *Pipeline) inspect(ctx context.Context, path string, check func(context.Context, *manifest.Manifest) error) (*manifest.Manifest, *checksum.Sum, error) {
	ctx, span := p.tracer.Start(ctx, "Inspect")
	defer span.End()

	var (
		m   *manifest.Manifest
		sum *checksum.Sum
	)

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		parsed, err := p.parser.Parse(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to parse package: %w", err)
		}
		m = parsed

		if err := m.Validate(); err != nil {
			return err
		}
		return check(ctx, m)
	})

	wg.Go(func() error {
		var err error
		sum, err = checksum.File(ctx, path)
		return err
	})

	if err := wg.Wait(); err != nil {
		m.Cleanup()
		return nil, nil, err
	}

	return m, sum, nil
}

// addRevision appends the revision for m and uploads its assets. It returns
// the uploaded object keys.
func (p *Pipeline) addRevision(ctx context.Context, pkg *model.Package, m *manifest.Manifest, sum *checksum.Sum, path, ext string) ([]string, error) {
	rev, err := pkg.AppendRevision(model.Revision{
		Version:         m.Version,
		Architecture:    m.Architecture,
		Framework:       m.Framework,
		Filesize:        sum.Size,
		DownloadSHA512:  sum.SHA512,
		DownloadSHA3384: sum.SHA3384,
	})
	if err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "Upload")
	defer span.End()

	if p.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.uploadTimeout)
		defer cancel()
	}

	var keys []string
	fail := func(err error) ([]string, error) {
		p.discard(ctx, keys)
		return nil, fmt.Errorf("failed to upload package assets: %w", err)
	}

	pkgKey := driver.PackageKey(pkg.ID, rev.Version, rev.Architecture, ext)
	url, err := p.put(ctx, pkgKey, path, "application/octet-stream")
	if err != nil {
		return fail(err)
	}
	keys = append(keys, pkgKey)

	rev.DownloadURL = url
	pkg.Package = url
	pkg.Filesize = sum.Size
	pkg.DownloadSHA512 = sum.SHA512
	pkg.UpdatedDate = time.Now().UTC()

	if m.IconPath != "" {
		iconExt := strings.ToLower(filepath.Ext(m.IconPath))
		iconKey := driver.IconKey(pkg.ID, rev.Version, iconExt)
		url, err := p.put(ctx, iconKey, m.IconPath, mime.TypeByExtension(iconExt))
		if err != nil {
			return fail(err)
		}
		keys = append(keys, iconKey)
		pkg.Icon = url
	}

	return keys, nil
}

func (p *Pipeline) put(ctx context.Context, key, path, contentType string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return p.driver.Put(ctx, key, f, contentType)
}

// discard removes uploaded objects of a failed submission.
func (p *Pipeline) discard(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if err := p.driver.Delete(ctx, key); err != nil && !errors.Is(err, driver.ErrObjectNotExist) {
			p.logger.Warn("failed to delete orphaned asset", zap.String("key", key), zap.Error(err))
		}
	}
}

// checkNamespace rejects reserved vendor names for non elevated users.
func checkNamespace(user *model.User, name string) error {
	if user.IsElevated() {
		return nil
	}

	if strings.HasPrefix(name, reservedPrefix) && !strings.HasPrefix(name, developerPrefix) {
		return kerrors.New(kerrors.KindBadNamespace)
	}

	if strings.HasPrefix(name, ubportsPrefix) {
		return kerrors.New(kerrors.KindBadNamespace)
	}

	return nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return kerrors.Wrap(err, kerrors.WithNotFound())
	case errors.Is(err, store.ErrDuplicate):
		return kerrors.Wrap(err, kerrors.WithKind(kerrors.KindDuplicatePackage))
	case errors.Is(err, store.ErrConflict):
		return kerrors.Wrap(err, kerrors.WithKind(kerrors.KindConflict))
	default:
		return err
	}
}

package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/openstore/openstore/internal/driver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	gOption "google.golang.org/api/option"
)

const publicHost = "https://storage.googleapis.com"

type DriverOpts struct {
	Bucket            string
	ServiceAccountKey string
}

type gcs struct {
	bucket string
	logger *zap.Logger
	gcs    *storage.Client
	tracer trace.Tracer
}

var _ driver.Driver = (*gcs)(nil)

func NewDriver(ctx context.Context, logger *zap.Logger, opts *DriverOpts) (driver.Driver, error) {
	if opts == nil || opts.Bucket == "" {
		return nil, fmt.Errorf("invalid gcs bucket")
	}

	gOptions := []gOption.ClientOption{}

	if key := opts.ServiceAccountKey; key != "" {
		gOptions = append(gOptions, gOption.WithCredentialsFile(key))
	}

	c, err := storage.NewClient(ctx, gOptions...)
	if err != nil {
		return nil, err
	}

	return &gcs{
		bucket: opts.Bucket,
		logger: logger,
		gcs:    c,
		tracer: otel.Tracer("driver.gcs"),
	}, nil
}

func (d *gcs) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	ctx, span := d.tracer.Start(ctx, "Put")
	defer span.End()

	w := d.Bucket().Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return "", err
	}

	// The object only exists once the writer is closed.
	if err := w.Close(); err != nil {
		return "", err
	}

	d.logger.Debug("saved object to gcs", zap.String("key", key))
	return d.URL(key), nil
}

func (d *gcs) Delete(ctx context.Context, key string) error {
	ctx, span := d.tracer.Start(ctx, "Delete")
	defer span.End()

	if err := d.Bucket().Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return driver.ErrObjectNotExist
		}
		return err
	}

	d.logger.Debug("deleted object from gcs", zap.String("key", key))
	return nil
}

func (d *gcs) URL(key string) string {
	return driver.JoinURL(fmt.Sprintf("%s/%s", publicHost, d.bucket), key)
}

func (d *gcs) Bucket() *storage.BucketHandle {
	return d.gcs.Bucket(d.bucket)
}

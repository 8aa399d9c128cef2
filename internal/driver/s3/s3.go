package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/openstore/openstore/internal/driver"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type DriverOpts struct {
	AccessKey    string
	Bucket       string
	Endpoint     string
	SecretKey    string
	Region       string
	UsePathStyle bool

	// PublicURL is the address objects are downloaded from, defaults to
	// the virtual hosted bucket address.
	PublicURL string
}

type s3Driver struct {
	bucket    string
	logger    *zap.Logger
	publicURL string
	s3        *s3.Client
	tracer    trace.Tracer
	uploader  *manager.Uploader
}

var _ driver.Driver = (*s3Driver)(nil)

type endpointResolver struct {
	URL string
}

func (r *endpointResolver) ResolveEndpoint(service, region string, options ...interface{}) (aws.Endpoint, error) {
	return aws.Endpoint{
		URL: r.URL,
	}, nil
}

func NewDriver(logger *zap.Logger, opts *DriverOpts) (driver.Driver, error) {
	if opts == nil || opts.Bucket == "" {
		return nil, fmt.Errorf("invalid s3 credentials")
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if opts.AccessKey != "" {
		cred := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""))
		loadOpts = append(loadOpts, config.WithCredentialsProvider(cred))
	}

	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}

	if opts.Endpoint != "" {
		endpointResolver := &endpointResolver{
			URL: opts.Endpoint,
		}
		loadOpts = append(loadOpts, config.WithEndpointResolverWithOptions(endpointResolver))
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, err
	}

	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.UsePathStyle
	})

	return &s3Driver{
		bucket:    opts.Bucket,
		logger:    logger,
		publicURL: publicURL(opts, cfg.Region),
		s3:        s3Client,
		tracer:    otel.Tracer("driver.s3"),
		uploader:  manager.NewUploader(s3Client),
	}, nil
}

func publicURL(opts *DriverOpts, region string) string {
	switch {
	case opts.PublicURL != "":
		return opts.PublicURL
	case opts.Endpoint != "":
		return driver.JoinURL(opts.Endpoint, opts.Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, region)
	}
}

func (d *s3Driver) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	ctx, span := d.tracer.Start(ctx, "Put")
	defer span.End()

	input := &s3.PutObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	res, err := d.uploader.Upload(ctx, input)
	if err != nil {
		return "", err
	}

	d.logger.Debug("saved object to amazon s3",
		zap.String("location", res.Location),
	)
	return d.URL(key), nil
}

func (d *s3Driver) Delete(ctx context.Context, key string) error {
	ctx, span := d.tracer.Start(ctx, "Delete")
	defer span.End()

	_, err := d.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return handleError(err, driver.ErrObjectNotExist)
	}

	d.logger.Debug("deleted object from amazon s3", zap.String("key", key))
	return nil
}

func (d *s3Driver) URL(key string) string {
	return driver.JoinURL(d.publicURL, key)
}

func handleError(err error, rerr error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.(type) {
		case *types.NotFound, *types.NoSuchKey:
			return rerr
		}
	}

	return err
}

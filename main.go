package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/openstore/openstore/internal/api"
	"github.com/openstore/openstore/internal/config"
	"github.com/openstore/openstore/internal/driver"
	"github.com/openstore/openstore/internal/driver/gcs"
	"github.com/openstore/openstore/internal/driver/local"
	"github.com/openstore/openstore/internal/driver/s3"
	"github.com/openstore/openstore/internal/icon"
	"github.com/openstore/openstore/internal/logging"
	"github.com/openstore/openstore/internal/manifest"
	"github.com/openstore/openstore/internal/metric"
	"github.com/openstore/openstore/internal/model"
	"github.com/openstore/openstore/internal/review"
	"github.com/openstore/openstore/internal/server"
	"github.com/openstore/openstore/internal/store"
	"github.com/openstore/openstore/internal/submission"
	"github.com/openstore/openstore/internal/trace"
	"github.com/openstore/openstore/internal/version"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	exitOk = iota
	exitError
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprint(os.Stderr, err.Error())
		os.Exit(exitError)
	}

	os.Exit(exitOk)
}

func run(args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(os.Stdout, logging.Level(cfg.Log.Level), logging.Format(cfg.Log.Format))
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger = logger.With(
		zap.String("version", version.Version),
		zap.String("revision", version.Commit),
	)
	logger.Info("loaded config", zap.Object("config", cfg))

	if cfg.Trace.Enable {
		exp, err := trace.NewExporter(trace.ExporterType(cfg.Trace.Type), os.Stderr)
		if err != nil {
			return err
		}

		shutdownTracer := trace.Setup(exp)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracer(ctx); err != nil {
				logger.Error("failed to flush traces", zap.Error(err))
			}
		}()
	}

	st, err := store.NewBolt(&store.BoltConfig{
		Path:   cfg.DBPath,
		Logger: logger.Named("store"),
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := bootstrapAdmin(ctx, st, cfg.AdminAPIKey); err != nil {
		return err
	}

	logger.Info("setup backend", zap.Object("backend", cfg.Backend))
	drv, assetsDir, err := newDriver(ctx, cfg, logger.Named("driver"))
	if err != nil {
		return err
	}

	uploadDir := cfg.UploadPath()
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return err
	}

	icons, err := icon.New(&icon.Config{
		BaseURL: cfg.BaseURL,
		Dir:     cfg.IconDir(),
		Logger:  logger.Named("icon"),
	})
	if err != nil {
		return err
	}

	m := metric.New(&metric.Config{
		Logger: logger.Named("metric"),
		Store:  st,
	})

	pipeline := submission.New(&submission.Config{
		Driver: drv,
		Logger: logger.Named("submission"),
		Metric: m,
		Parser: manifest.NewReader(&manifest.ReaderConfig{
			Logger:     logger.Named("manifest"),
			Unsquashfs: cfg.Unsquashfs,
		}),
		Reviewer: review.New(&review.Config{
			Command: cfg.Review.Command,
			Logger:  logger.Named("review"),
		}),
		Store:         st,
		ReviewTimeout: cfg.Review.Timeout,
		UploadTimeout: cfg.UploadTimeout,
	})

	svr := server.NewServer(&server.ServerConfig{
		API: api.New(&api.Config{
			BaseURL:       cfg.BaseURL,
			Icons:         icons,
			Logger:        logger.Named("api"),
			MaxUploadSize: cfg.MaxUploadSize,
			Metric:        m,
			Pipeline:      pipeline,
			Store:         st,
			UploadDir:     uploadDir,
		}),
		AssetsDir: assetsDir,
		Logger:    logger,
		Metric:    m,
		Store:     st,
	})

	wg, ctx := errgroup.WithContext(ctx)

	conn, err := net.Listen("tcp", cfg.Address())
	if err != nil {
		return err
	}

	logger.Info("server started", zap.String("address", cfg.Address()))
	wg.Go(func() error {
		return svr.Serve(ctx, conn)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	select {
	case v := <-sigCh:
		logger.Info("received signal", zap.String("signal", v.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := svr.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to graceful shutdown server", zap.Error(err))
		return err
	}

	if err := wg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newDriver returns the configured storage driver, and the directory the
// server exposes under /assets/ for the local driver.
func newDriver(ctx context.Context, cfg *config.Config, logger *zap.Logger) (driver.Driver, string, error) {
	switch driver.DriverType(cfg.Backend.Type) {
	case driver.DriverTypeS3:
		d, err := s3.NewDriver(logger, &s3.DriverOpts{
			AccessKey:    cfg.Backend.S3.AccessKey,
			Bucket:       cfg.Backend.S3.Bucket,
			Endpoint:     cfg.Backend.S3.Endpoint,
			SecretKey:    cfg.Backend.S3.SecretKey,
			Region:       cfg.Backend.S3.Region,
			UsePathStyle: cfg.Backend.S3.UsePathStyle,
			PublicURL:    cfg.Backend.S3.PublicURL,
		})
		return d, "", err
	case driver.DriverTypeGCS:
		d, err := gcs.NewDriver(ctx, logger, &gcs.DriverOpts{
			Bucket:            cfg.Backend.GCS.Bucket,
			ServiceAccountKey: cfg.Backend.GCS.ServiceAccountKey,
		})
		return d, "", err
	default:
		root, err := filepath.Abs(cfg.Backend.RootPath)
		if err != nil {
			return nil, "", err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, "", err
		}
		return local.NewDriver(&local.DriverConfig{
			RootPath: root,
			BaseURL:  cfg.BaseURL,
			Logger:   logger,
		}), root, nil
	}
}

// bootstrapAdmin makes sure the configured admin api key belongs to an
// admin account.
func bootstrapAdmin(ctx context.Context, st store.Store, apiKey string) error {
	if apiKey == "" {
		return nil
	}

	user, err := st.GetUserByAPIKey(ctx, apiKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if user != nil && user.Role == model.RoleAdmin && !user.Disabled {
		return nil
	}

	if user == nil {
		user = &model.User{ID: "admin", Name: "admin", APIKey: apiKey}
	}
	user.Role = model.RoleAdmin
	user.Disabled = false
	return st.PutUser(ctx, user)
}

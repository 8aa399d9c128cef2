package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap/zapcore"
)

type Backend struct {
	GCS      *BackendGCS `env:",prefix=GCS_"`
	S3       *BackendS3  `env:",prefix=S3_"`
	Type     string      `env:"TYPE,default=local"`
	RootPath string      `env:"ROOT_PATH,default=/var/lib/openstore/assets"`
}

func (b *Backend) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("type", b.Type)
	switch b.Type {
	case "local":
		enc.AddString("rootPath", b.RootPath)
	case "s3":
		enc.AddString("bucket", b.S3.Bucket)
		enc.AddString("endpoint", b.S3.Endpoint)
	case "gcs":
		enc.AddString("bucket", b.GCS.Bucket)
	}
	return nil
}

type BackendS3 struct {
	AccessKey    string `env:"ACCESS_KEY"`
	Bucket       string `env:"BUCKET"`
	Endpoint     string `env:"ENDPOINT"`
	SecretKey    string `env:"SECRET_KEY"`
	Region       string `env:"REGION,default=us-east-1"`
	UsePathStyle bool   `env:"USE_PATH_STYLE,default=false"`

	// PublicURL overrides the address package links point to.
	PublicURL string `env:"PUBLIC_URL"`
}

type BackendGCS struct {
	Bucket            string `env:"BUCKET"`
	ServiceAccountKey string `env:"SERVICE_ACCOUNT_KEY"`
}

type Review struct {
	Command string        `env:"COMMAND,default=click-review"`
	Timeout time.Duration `env:"TIMEOUT,default=2m"`
}

type Config struct {
	AdminAPIKey   string        `env:"ADMIN_API_KEY"`
	Backend       *Backend      `env:",prefix=BACKEND_"`
	BaseURL       string        `env:"BASE_URL"`
	DBPath        string        `env:"DB_PATH,default=/var/lib/openstore/openstore.db"`
	DataDir       string        `env:"DATA_DIR,default=/var/lib/openstore"`
	Host          string        `env:"HOST"`
	Log           *Log          `env:",prefix=LOG_"`
	MaxUploadSize int64         `env:"MAX_UPLOAD_SIZE,default=536870912"`
	Port          int           `env:"PORT,default=8080"`
	Review        *Review       `env:",prefix=REVIEW_"`
	Trace         *Trace        `env:",prefix=TRACE_"`
	Unsquashfs    string        `env:"UNSQUASHFS,default=unsquashfs"`
	UploadDir     string        `env:"UPLOAD_DIR"`
	UploadTimeout time.Duration `env:"UPLOAD_TIMEOUT,default=5m"`
}

func (cfg *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("address", cfg.Address())
	enc.AddString("baseURL", cfg.BaseURL)
	enc.AddString("dbPath", cfg.DBPath)
	enc.AddString("dataDir", cfg.DataDir)
	enc.AddString("reviewCommand", cfg.Review.Command)
	enc.AddDuration("reviewTimeout", cfg.Review.Timeout)
	enc.AddDuration("uploadTimeout", cfg.UploadTimeout)
	enc.AddBool("trace", cfg.Trace.Enable)
	return enc.AddObject("backend", cfg.Backend)
}

type Trace struct {
	Enable bool   `env:"ENABLE,default=false"`
	Type   string `env:"TYPE,default=console"`
}

func (cfg *Config) Address() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// IconDir is where fetched icons are cached.
func (cfg *Config) IconDir() string {
	return cfg.DataDir + "/icons"
}

// UploadPath is where submitted files are staged, under the data directory
// unless configured.
func (cfg *Config) UploadPath() string {
	if cfg.UploadDir != "" {
		return cfg.UploadDir
	}
	return cfg.DataDir + "/uploads"
}

type Log struct {
	Format string `env:"FORMAT,default=json"`
	Level  string `env:"LEVEL,default=info"`
}

func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &cfg, l); err != nil {
		return nil, err
	}

	switch cfg.Backend.Type {
	case "local", "s3", "gcs":
	default:
		return nil, fmt.Errorf("invalid backend type %q", cfg.Backend.Type)
	}

	switch cfg.Trace.Type {
	case "console", "json":
	default:
		return nil, fmt.Errorf("invalid trace type %q", cfg.Trace.Type)
	}

	return &cfg, nil
}

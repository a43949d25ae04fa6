package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	// Application
	AppName string `env:"APP_NAME" envDefault:"ClickFit"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"` // 'development', 'production' or 'test'
	Port    string `env:"PORT" envDefault:"3000"`

	// Database (driver switch via ENV: sqlite, pgx or mysql)
	DBDriver     string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBConnection string `env:"DB_CONNECTION" envDefault:"./data/clickfit.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"`

	// Observability (optional)
	SentryDSN string `env:"SENTRY_DSN"`

	// HTTP
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Upload  UploadConfig `envPrefix:"UPLOAD_"`
	Storage StorageConfig
	S3      S3Config `envPrefix:"S3_"`
}

// UploadConfig holds the fixed limits of the upload pipeline.
type UploadConfig struct {
	Dir      string `env:"DIR" envDefault:"./upload_images"`
	Route    string `env:"ROUTE" envDefault:"upload_images"` // Public path segment for local locators
	Prefix   string `env:"PREFIX" envDefault:"fitness"`      // Identifier prefix
	MaxSize  int64  `env:"MAX_SIZE" envDefault:"5242880"`    // 5 MiB
	MaxFiles int    `env:"MAX_FILES" envDefault:"10"`
}

// PublicRoute is Route without surrounding slashes ("/upload_images/" -> "upload_images")
func (u UploadConfig) PublicRoute() string {
	return strings.Trim(u.Route, "/")
}

type StorageConfig struct {
	Driver  string        `env:"STORAGE_DRIVER" envDefault:"local"` // "local" or "s3"
	Timeout time.Duration `env:"STORAGE_TIMEOUT" envDefault:"30s"`
}

// S3Config covers any S3-compatible service: AWS S3, MinIO, Cloudflare R2, DigitalOcean Spaces, etc.
type S3Config struct {
	Region    string `env:"REGION"`
	Bucket    string `env:"BUCKET"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Endpoint  string `env:"ENDPOINT"`                     // Optional: for non-AWS providers
	Folder    string `env:"FOLDER" envDefault:"clickfit"` // Object namespace inside the bucket
	PublicURL string `env:"PUBLIC_URL"`                   // Optional: CDN or custom domain used for locators
}

// Load reads .env (if present) and the environment. Invalid configuration is fatal.
func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := Parse()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	return cfg
}

// Parse builds a Config from the current environment and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "pgx", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite, pgx or mysql)", c.DBDriver)
	}

	if c.Upload.MaxSize <= 0 {
		return errors.New("UPLOAD_MAX_SIZE must be positive")
	}
	if c.Upload.MaxFiles <= 0 {
		return errors.New("UPLOAD_MAX_FILES must be positive")
	}

	switch c.Storage.Driver {
	case StorageDriverLocal:
		if c.Upload.Dir == "" {
			return errors.New("UPLOAD_DIR is required for local storage")
		}
		if c.Upload.PublicRoute() == "" {
			return errors.New("UPLOAD_ROUTE must name a path segment for local storage")
		}
	case StorageDriverS3:
		// Credentials may also come from the default AWS chain, region and bucket may not
		if c.S3.Region == "" || c.S3.Bucket == "" {
			return errors.New("S3_REGION and S3_BUCKET are required when STORAGE_DRIVER=s3")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			return errors.New("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q (want local or s3)", c.Storage.Driver)
	}

	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Sanitized returns a copy of the config with only public/safe fields.
// Database DSNs and storage credentials are excluded.
// Safe to expose in ctx and client-facing responses.
func (c *Config) Sanitized() *Config {
	return &Config{
		AppName:        c.AppName,
		AppEnv:         c.AppEnv,
		Port:           c.Port,
		DBDriver:       c.DBDriver,
		CORSOrigins:    c.CORSOrigins,
		RequestTimeout: c.RequestTimeout,
		Upload:         c.Upload,
		Storage:        c.Storage,
		S3: S3Config{
			Region:    c.S3.Region,
			Bucket:    c.S3.Bucket,
			Endpoint:  c.S3.Endpoint,
			Folder:    c.S3.Folder,
			PublicURL: c.S3.PublicURL,
		},
	}
}

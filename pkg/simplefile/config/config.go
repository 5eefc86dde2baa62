package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Option applies configuration on top of what was read from file and environment.
type Option func(*Config) error

// Config is the configuration of the file service.
//
// Environment variables:
//
//	FILE_DRIVER               driver name: postgres (default), badger, s3, memory
//	FILE_UPLOAD_MAX_SIZE      upload ceiling in megabytes (default "10")
//	FILE_KEEP_ORIGINAL_NAME   do not append the sniffed extension to names
//	FILE_FETCH_TIMEOUT        remote fetch timeout (default 30s)
//	FILE_BASE_URL             prefix of generated URLs
//	FILE_ASSET_BASE_URL       prefix of asset URLs (default /assets), may be absolute
//	FILE_URL_STRATEGY         content-based (default), cdn or storage-delegated
//	FILE_CDN_BASE_URL         CDN origin serving the storage root, for the cdn strategy
//	FILE_KEY_LAYOUT           logical path layout: dated (default), legacy, git-like, hashed
type Config struct {
	Driver           string        `yaml:"driver" env:"FILE_DRIVER" env-default:"postgres" validate:"required"`
	UploadMaxSize    string        `yaml:"upload_max_size" env:"FILE_UPLOAD_MAX_SIZE" env-default:"10" validate:"required"`
	KeepOriginalName bool          `yaml:"keep_original_name" env:"FILE_KEEP_ORIGINAL_NAME"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" env:"FILE_FETCH_TIMEOUT" env-default:"30s" validate:"gt=0"`
	UserAgent        string        `yaml:"user_agent" env:"FILE_USER_AGENT"`
	TempDir          string        `yaml:"temp_dir" env:"FILE_TEMP_DIR"`
	BaseURL          string        `yaml:"base_url" env:"FILE_BASE_URL"`
	AssetBaseURL     string        `yaml:"asset_base_url" env:"FILE_ASSET_BASE_URL" env-default:"/assets"`
	URLStrategy      string        `yaml:"url_strategy" env:"FILE_URL_STRATEGY" env-default:"content-based" validate:"oneof=content-based cdn storage-delegated"`
	CDNBaseURL       string        `yaml:"cdn_base_url" env:"FILE_CDN_BASE_URL" validate:"omitempty,url"`
	KeyLayout        string        `yaml:"key_layout" env:"FILE_KEY_LAYOUT" env-default:"dated" validate:"oneof=dated legacy git-like hashed"`

	Postgres PostgresConfig `yaml:"postgres"`
	Badger   BadgerConfig   `yaml:"badger"`
	Blob     BlobConfig     `yaml:"blob"`
	S3       S3Config       `yaml:"s3"`
}

// PostgresConfig configures the postgres driver
type PostgresConfig struct {
	URL     string `yaml:"url" env:"FILE_PG_URL"`
	Schema  string `yaml:"schema" env:"FILE_PG_SCHEMA" env-default:"file"`
	Migrate bool   `yaml:"migrate" env:"FILE_PG_MIGRATE"`
}

// BadgerConfig configures the badger driver. An empty Dir keeps the database in memory.
type BadgerConfig struct {
	Dir string `yaml:"dir" env:"FILE_BADGER_DIR"`

	// SweepInterval is how often the server removes the bytes of expired
	// entries; zero disables sweeping
	SweepInterval time.Duration `yaml:"sweep_interval" env:"FILE_BADGER_SWEEP_INTERVAL" env-default:"10m" validate:"gte=0"`
}

// BlobConfig configures where the postgres and badger drivers keep file bytes
type BlobConfig struct {
	Dir string `yaml:"dir" env:"FILE_BLOB_DIR" env-default:"./data/files"`
}

// S3Config configures the s3 driver
type S3Config struct {
	Bucket                 string `yaml:"bucket" env:"FILE_S3_BUCKET"`
	Prefix                 string `yaml:"prefix" env:"FILE_S3_PREFIX"`
	Region                 string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	AccessKeyID            string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey        string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint               string `yaml:"endpoint" env:"AWS_S3_ENDPOINT" validate:"omitempty,url"`
	UsePathStyle           bool   `yaml:"use_path_style" env:"AWS_S3_USE_PATH_STYLE"`
	EnableSSE              bool   `yaml:"enable_sse" env:"FILE_S3_ENABLE_SSE"`
	SSEAlgorithm           string `yaml:"sse_algorithm" env:"FILE_S3_SSE_ALGORITHM" env-default:"AES256" validate:"omitempty,oneof=AES256 aws:kms"`
	SSEKMSKeyID            string `yaml:"sse_kms_key_id" env:"FILE_S3_SSE_KMS_KEY_ID"`
	CreateBucketIfNotExist bool          `yaml:"create_bucket_if_not_exist" env:"FILE_S3_CREATE_BUCKET"`
	PresignDuration        time.Duration `yaml:"presign_duration" env:"FILE_S3_PRESIGN_DURATION" env-default:"1h" validate:"gte=0"`
}

// Load reads the configuration from the YAML file at path, when path is not
// empty, and from the environment, applies opts and validates the result.
func Load(path string, opts ...Option) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WithDriver overrides the driver name
func WithDriver(name string) Option {
	return func(c *Config) error {
		c.Driver = name
		return nil
	}
}

// WithUploadMaxSize overrides the upload ceiling in megabytes
func WithUploadMaxSize(mb string) Option {
	return func(c *Config) error {
		c.UploadMaxSize = mb
		return nil
	}
}

// WithURLStrategy overrides the download URL strategy
func WithURLStrategy(strategy, cdnBaseURL string) Option {
	return func(c *Config) error {
		c.URLStrategy = strategy
		c.CDNBaseURL = cdnBaseURL
		return nil
	}
}

// WithKeyLayout overrides the logical path layout
func WithKeyLayout(layout string) Option {
	return func(c *Config) error {
		c.KeyLayout = layout
		return nil
	}
}

// WithBlobDir overrides the blob directory
func WithBlobDir(dir string) Option {
	return func(c *Config) error {
		c.Blob.Dir = dir
		return nil
	}
}

// UploadMaxSizeMB parses the upload ceiling
func (c *Config) UploadMaxSizeMB() (float64, error) {
	mb, err := strconv.ParseFloat(c.UploadMaxSize, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid upload_max_size %q: %w", c.UploadMaxSize, err)
	}
	return mb, nil
}

// Usage describes the environment variables read by Load
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}

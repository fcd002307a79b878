// CLAUDE:SUMMARY Store abstraction over the persisted entitlement snapshot, config, and Open dispatching to file, sqlite, redis or s3 backends.
// Package snapstore persists the single entitlement snapshot.
//
// Every backend holds exactly one value: the pretty-printed JSON array last
// saved. Save replaces it wholesale; there is no history and no merge.
package snapstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/entitlemate/snapshot"
)

// ErrNotFound is returned by Raw when nothing has been saved yet.
var ErrNotFound = errors.New("snapstore: snapshot not found")

// Backend names accepted in Config.Backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendS3     = "s3"
)

// Store reads and replaces the persisted snapshot.
type Store interface {
	// Load returns the stored snapshot, or an empty one when nothing is stored.
	Load(ctx context.Context) (snapshot.Snapshot, error)
	// Save replaces the stored snapshot.
	Save(ctx context.Context, s snapshot.Snapshot) error
	// Raw returns the persisted bytes verbatim, or ErrNotFound.
	Raw(ctx context.Context) ([]byte, error)
	Close() error
}

// Config selects and configures the backend.
type Config struct {
	Backend string       `yaml:"backend" env:"STORE_BACKEND"`
	File    FileConfig   `yaml:"file"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis"`
	S3      S3Config     `yaml:"s3"`
}

// FileConfig configures the file backend.
type FileConfig struct {
	Path string `yaml:"path" env:"STORE_FILE_PATH"`
	// DirectWrite truncates and rewrites the file in place instead of
	// writing a temp file and renaming it.
	DirectWrite bool `yaml:"direct_write" env:"STORE_FILE_DIRECT_WRITE"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"STORE_SQLITE_PATH"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	Key      string `yaml:"key" env:"REDIS_KEY"`
}

// S3Config configures the s3 backend. Endpoint is set for MinIO or LocalStack.
type S3Config struct {
	Bucket   string `yaml:"bucket" env:"S3_BUCKET"`
	Key      string `yaml:"key" env:"S3_KEY"`
	Region   string `yaml:"region" env:"AWS_REGION"`
	Endpoint string `yaml:"endpoint" env:"S3_ENDPOINT"`
}

// Defaults fills unset fields.
func (c *Config) Defaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.File.Path == "" {
		c.File.Path = "entitlements.json"
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "entitlements.db"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.Key == "" {
		c.Redis.Key = "entitlemate:snapshot"
	}
	if c.S3.Key == "" {
		c.S3.Key = "entitlements.json"
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.File.Path == "" {
			return errors.New("snapstore: file.path is required")
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return errors.New("snapstore: sqlite.path is required")
		}
	case BackendRedis:
		if c.Redis.Addr == "" || c.Redis.Key == "" {
			return errors.New("snapstore: redis.addr and redis.key are required")
		}
	case BackendS3:
		if c.S3.Bucket == "" || c.S3.Key == "" {
			return errors.New("snapstore: s3.bucket and s3.key are required")
		}
	default:
		return fmt.Errorf("snapstore: unknown backend %q", c.Backend)
	}
	return nil
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	cfg.Defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("store", cfg.Backend)

	switch cfg.Backend {
	case BackendSQLite:
		return OpenSQLite(ctx, cfg.SQLite, logger)
	case BackendRedis:
		return OpenRedis(ctx, cfg.Redis, logger)
	case BackendS3:
		return OpenS3(ctx, cfg.S3, logger)
	default:
		return NewFile(cfg.File, logger), nil
	}
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*S3Store)(nil)
)

// loadRaw implements Load on top of a Raw function.
func loadRaw(ctx context.Context, raw func(context.Context) ([]byte, error)) (snapshot.Snapshot, error) {
	data, err := raw(ctx)
	if errors.Is(err, ErrNotFound) {
		return snapshot.Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(data)
}

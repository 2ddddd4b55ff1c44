// Package config handles configuration for the lifecycle server and the
// processing worker: defaults, a JSON overlay and short command-line flags.
package config

import (
	"fmt"
	"time"
)

const (
	StorageFS = "fs"
	StorageS3 = "s3"
)

// Config holds runtime settings for the lifecycle server.
//
// WorkerURL selects the processor: empty runs the engines in-process,
// otherwise requests go to a worker that must see the same WorkDir.
type Config struct {
	HTTPAddress    string
	LogLevel       string
	DatabaseDriver string
	DatabaseDSN    string

	StorageBackend string
	DataDir        string
	WorkDir        string
	S3AccessKey    string
	S3SecretKey    string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	PresignTTL     time.Duration

	WorkerURL     string
	WorkerTimeout time.Duration

	RetentionWindow time.Duration
	SweepInterval   time.Duration
	MaxUploadBytes  int64

	PaymentSecret string
	CheckoutURL   string
	Price         int64
	Currency      string
}

// LoadDefaults populates Config with single-node development defaults.
// NOTE: the payment secret must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.HTTPAddress = ":8080"
	c.LogLevel = "info"
	c.DatabaseDriver = "sqlite"
	c.DatabaseDSN = "file:data/sentinel.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	c.StorageBackend = StorageFS
	c.DataDir = "data/artifacts"
	c.WorkDir = "data/work"
	c.S3Bucket = "sentinel"
	c.S3Region = "us-east-1"
	c.S3Endpoint = "http://127.0.0.1:9000"
	c.PresignTTL = 0
	c.WorkerURL = ""
	c.WorkerTimeout = 60 * time.Second
	c.RetentionWindow = 24 * time.Hour
	c.SweepInterval = 24 * time.Hour
	c.MaxUploadBytes = 20 << 20
	c.PaymentSecret = "sandbox-secret"
	c.CheckoutURL = "http://localhost:8080/sandbox/checkout"
	c.Price = 499
	c.Currency = "USD"
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DatabaseDriver)
	}
	switch c.StorageBackend {
	case StorageFS:
		if c.DataDir == "" {
			return fmt.Errorf("data dir is required for the fs backend")
		}
	case StorageS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("s3 bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.StorageBackend)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}
	if c.Price < 0 {
		return fmt.Errorf("price must not be negative")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WorkerConfig holds settings for the standalone processing worker.
type WorkerConfig struct {
	Address  string
	LogLevel string
}

func (c *WorkerConfig) LoadDefaults() {
	c.Address = ":8081"
	c.LogLevel = "info"
}

func LoadWorkerConfig(args []string) (*WorkerConfig, error) {
	cfg := &WorkerConfig{}
	cfg.LoadDefaults()
	if err := parseWorkerFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}

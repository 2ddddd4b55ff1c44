package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pockethour/image-sentinel/internal/flagx"
	"github.com/pockethour/image-sentinel/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations accept strings such
// as "24h" or integer nanoseconds. Absent or zero fields leave the current
// value untouched.
type JsonConfig struct {
	HTTPAddress    string `json:"http_address"`
	LogLevel       string `json:"log_level"`
	DatabaseDriver string `json:"database_driver"`
	DatabaseDSN    string `json:"database_dsn"`

	StorageBackend string         `json:"storage_backend"`
	DataDir        string         `json:"data_dir"`
	WorkDir        string         `json:"work_dir"`
	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3Endpoint     string         `json:"s3_endpoint"`
	PresignTTL     timex.Duration `json:"presign_ttl"`

	WorkerURL     string         `json:"worker_url"`
	WorkerTimeout timex.Duration `json:"worker_timeout"`

	RetentionWindow timex.Duration `json:"retention_window"`
	SweepInterval   timex.Duration `json:"sweep_interval"`
	MaxUploadBytes  int64          `json:"max_upload_bytes"`

	PaymentSecret string `json:"payment_secret"`
	CheckoutURL   string `json:"checkout_url"`
	Price         int64  `json:"price"`
	Currency      string `json:"currency"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson overlays the JSON file named by -c/-config (or
// $SENTINEL_CONFIG) onto config. No file means no changes.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.HTTPAddress, c.HTTPAddress)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.DataDir, c.DataDir)
	setString(&config.WorkDir, c.WorkDir)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3Endpoint, c.S3Endpoint)
	setString(&config.WorkerURL, c.WorkerURL)
	setString(&config.PaymentSecret, c.PaymentSecret)
	setString(&config.CheckoutURL, c.CheckoutURL)
	setString(&config.Currency, c.Currency)

	if c.PresignTTL.Duration != 0 {
		config.PresignTTL = c.PresignTTL.Duration
	}
	if c.WorkerTimeout.Duration != 0 {
		config.WorkerTimeout = c.WorkerTimeout.Duration
	}
	if c.RetentionWindow.Duration != 0 {
		config.RetentionWindow = c.RetentionWindow.Duration
	}
	if c.SweepInterval.Duration != 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.MaxUploadBytes != 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.Price != 0 {
		config.Price = c.Price
	}
	return nil
}

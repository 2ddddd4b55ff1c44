package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pockethour/image-sentinel/internal/flagx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaults() *Config {
	c := &Config{}
	c.LoadDefaults()
	return c
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	c := defaults()

	assert.Equal(t, ":8080", c.HTTPAddress)
	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, StorageFS, c.StorageBackend)
	assert.Equal(t, 24*time.Hour, c.RetentionWindow)
	assert.Equal(t, 24*time.Hour, c.SweepInterval)
	assert.Equal(t, int64(20<<20), c.MaxUploadBytes)
	assert.Empty(t, c.WorkerURL)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_NoSources(t *testing.T) {
	t.Setenv(flagx.ConfigEnv, "")

	c, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(defaults(), c))
}

func TestLoadConfig_JSONThenFlags(t *testing.T) {
	t.Setenv(flagx.ConfigEnv, "")
	path := writeTempJSON(t, map[string]any{
		"http_address":     ":9000",
		"database_driver":  "postgres",
		"database_dsn":     "postgres://u:p@db:5432/sentinel",
		"storage_backend":  "s3",
		"s3_bucket":        "images",
		"s3_access_key":    "minio",
		"worker_url":       "http://worker:8081",
		"worker_timeout":   "30s",
		"retention_window": "48h",
		"presign_ttl":      int64(5 * time.Minute),
		"price":            999,
	})

	c, err := LoadConfig([]string{"-c", path, "-a", ":7000", "-r", "12h", "-q", "EUR", "-unknown", "x"})
	require.NoError(t, err)

	want := defaults()
	want.HTTPAddress = ":7000"
	want.DatabaseDriver = "postgres"
	want.DatabaseDSN = "postgres://u:p@db:5432/sentinel"
	want.StorageBackend = StorageS3
	want.S3Bucket = "images"
	want.S3AccessKey = "minio"
	want.WorkerURL = "http://worker:8081"
	want.WorkerTimeout = 30 * time.Second
	want.RetentionWindow = 12 * time.Hour
	want.PresignTTL = 5 * time.Minute
	want.Price = 999
	want.Currency = "EUR"

	assert.Empty(t, cmp.Diff(want, c))
}

func TestLoadConfig_EnvConfigPath(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"currency": "GBP"})
	t.Setenv(flagx.ConfigEnv, path)

	c, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "GBP", c.Currency)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv(flagx.ConfigEnv, "")

	_, err := LoadConfig([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"worker_timeout": true}`), 0o600))
	_, err = LoadConfig([]string{"-c", bad})
	assert.Error(t, err)

	_, err = LoadConfig([]string{"-t", "soon"})
	assert.Error(t, err)

	_, err = LoadConfig([]string{"-k", "oracle"})
	assert.ErrorContains(t, err, "database driver")

	_, err = LoadConfig([]string{"-s", "ftp"})
	assert.ErrorContains(t, err, "storage backend")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"s3 without bucket", func(c *Config) { c.StorageBackend = StorageS3; c.S3Bucket = "" }},
		{"zero upload", func(c *Config) { c.MaxUploadBytes = 0 }},
		{"negative price", func(c *Config) { c.Price = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := defaults()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadWorkerConfig(t *testing.T) {
	c, err := LoadWorkerConfig([]string{"-a", ":9999", "-d", "ignored"})
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(&WorkerConfig{Address: ":9999", LogLevel: "info"}, c))
}

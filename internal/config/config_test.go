package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8029, cfg.App.Port)
	assert.Equal(t, "rabbitmq", cfg.Dispatch.Backend)
	assert.Equal(t, "asset.processing", cfg.RabbitMQ.ExchangeName.AssetProcessing)
	assert.Equal(t, "sk-dam-", cfg.Root.BearerTokenPrefix)
	assert.Equal(t, "document", cfg.Ingest.DefaultCategory)
	assert.False(t, cfg.Ingest.CleanupOrphans)
	assert.Equal(t, int64(512<<20), cfg.MaxUploadBytes())
	assert.Equal(t, 15*time.Minute, cfg.PresignExpire())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  port: 9000
s3:
  endpoint: http://minio:9000
  use_path_style: true
ingest:
  max_upload_mb: 2
  cleanup_orphans: true
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("S3_BUCKET", "brand-assets")
	t.Setenv("DISPATCH_BACKEND", "none")
	t.Setenv("ROOT_SECRET_PEPPER", "pepper")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.App.Port)
	assert.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, "brand-assets", cfg.S3.Bucket)
	assert.Equal(t, "none", cfg.Dispatch.Backend)
	assert.Equal(t, "pepper", cfg.Root.SecretPepper)
	assert.True(t, cfg.Ingest.CleanupOrphans)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes())
}

func TestLoad_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: [unterminated"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestDurations(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 10*time.Second, cfg.DeriveTimeout())
	assert.Equal(t, time.Second, cfg.ConsumerRetryDelay())

	cfg.Ingest.DeriveTimeoutSec = 3
	cfg.S3.PresignExpireSec = 60
	cfg.RabbitMQ.RetryDelayMS = 250
	assert.Equal(t, 3*time.Second, cfg.DeriveTimeout())
	assert.Equal(t, time.Minute, cfg.PresignExpire())
	assert.Equal(t, 250*time.Millisecond, cfg.ConsumerRetryDelay())
}

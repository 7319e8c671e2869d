package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[sync]
ticker     = "apes"
page_size  = 25
page_delay = "250ms"

[retry]
max_attempts = 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "apes", cfg.Sync.Ticker)
	assert.Equal(t, 25, cfg.Sync.PageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Sync.PageDelay.Duration)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)

	// Untouched sections keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay.Duration)
	assert.True(t, cfg.Sync.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NFTVISTA_SYNC_ENABLED", "false")
	t.Setenv("NFTVISTA_TRADEPORT_API_KEY", "secret")
	t.Setenv("NFTVISTA_SYNC_PAGE_SIZE", "10")
	t.Setenv("NFTVISTA_RETRY_BASE_DELAY", "2s")

	path := writeConfig(t, `
[sync]
ticker = "apes"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.Sync.Enabled, "env kill switch wins over the file")
	assert.Equal(t, "secret", cfg.Tradeport.ApiKey)
	assert.Equal(t, 10, cfg.Sync.PageSize)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay.Duration)
}

func TestValidateCatchesBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Sync.Ticker = "apes"
	require.NoError(t, cfg.Validate())

	cfg.Sync.Ticker = ""
	cfg.LogLevel = "loud"
	cfg.Retry.MaxAttempts = 0
	cfg.Postgres.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "max_attempts")
	assert.Contains(t, err.Error(), "port")
}

func TestValidateRetrySchedule(t *testing.T) {
	cfg := Defaults()
	cfg.Sync.Ticker = "apes"
	cfg.Retry.MaxDelay.Duration = time.Millisecond // below base_delay

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_delay")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Tradeport.ApiKey = "tp-key"
	cfg.Postgres.Password = "pg-pass"
	cfg.S3.SecretKey = "s3-secret"

	red := RedactedConfig(&cfg)
	assert.Equal(t, "***", red.Tradeport.ApiKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.S3.SecretKey)

	// The original is untouched.
	assert.Equal(t, "tp-key", cfg.Tradeport.ApiKey)
}

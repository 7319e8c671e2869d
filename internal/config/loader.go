package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NFTVISTA_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known NFTVISTA_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Tradeport ──
	setStr(&cfg.Tradeport.BaseURL, "NFTVISTA_TRADEPORT_BASE_URL")
	setStr(&cfg.Tradeport.ApiKey, "NFTVISTA_TRADEPORT_API_KEY")
	setDuration(&cfg.Tradeport.Timeout, "NFTVISTA_TRADEPORT_TIMEOUT")
	setInt(&cfg.Tradeport.RateLimit, "NFTVISTA_TRADEPORT_RATE_LIMIT")
	setDuration(&cfg.Tradeport.RateWindow, "NFTVISTA_TRADEPORT_RATE_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "NFTVISTA_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "NFTVISTA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "NFTVISTA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "NFTVISTA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "NFTVISTA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "NFTVISTA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "NFTVISTA_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "NFTVISTA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "NFTVISTA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "NFTVISTA_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "NFTVISTA_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "NFTVISTA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NFTVISTA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NFTVISTA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NFTVISTA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NFTVISTA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NFTVISTA_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "NFTVISTA_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "NFTVISTA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NFTVISTA_S3_REGION")
	setStr(&cfg.S3.Bucket, "NFTVISTA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NFTVISTA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NFTVISTA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NFTVISTA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NFTVISTA_S3_FORCE_PATH_STYLE")

	// ── Sync ──
	setBool(&cfg.Sync.Enabled, "NFTVISTA_SYNC_ENABLED")
	setStr(&cfg.Sync.Ticker, "NFTVISTA_SYNC_TICKER")
	setInt(&cfg.Sync.PageSize, "NFTVISTA_SYNC_PAGE_SIZE")
	setDuration(&cfg.Sync.PageDelay, "NFTVISTA_SYNC_PAGE_DELAY")
	setInt(&cfg.Sync.InsertBatchSize, "NFTVISTA_SYNC_INSERT_BATCH_SIZE")
	setDuration(&cfg.Sync.BatchDelay, "NFTVISTA_SYNC_BATCH_DELAY")
	setDuration(&cfg.Sync.RowDelay, "NFTVISTA_SYNC_ROW_DELAY")
	setInt(&cfg.Sync.VerifySample, "NFTVISTA_SYNC_VERIFY_SAMPLE")
	setInt(&cfg.Sync.VerifyMinRows, "NFTVISTA_SYNC_VERIFY_MIN_ROWS")

	// ── Retry ──
	setInt(&cfg.Retry.MaxAttempts, "NFTVISTA_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.Retry.BaseDelay, "NFTVISTA_RETRY_BASE_DELAY")
	setFloat64(&cfg.Retry.GrowthFactor, "NFTVISTA_RETRY_GROWTH_FACTOR")
	setDuration(&cfg.Retry.MaxDelay, "NFTVISTA_RETRY_MAX_DELAY")

	// ── Daemon ──
	setStr(&cfg.Daemon.ListingsCron, "NFTVISTA_DAEMON_LISTINGS_CRON")
	setStr(&cfg.Daemon.SalesCron, "NFTVISTA_DAEMON_SALES_CRON")
	setStr(&cfg.Daemon.TraitsCron, "NFTVISTA_DAEMON_TRAITS_CRON")
	setStr(&cfg.Daemon.OwnersCron, "NFTVISTA_DAEMON_OWNERS_CRON")
	setInt64(&cfg.Daemon.TokenFrom, "NFTVISTA_DAEMON_TOKEN_FROM")
	setInt64(&cfg.Daemon.TokenTo, "NFTVISTA_DAEMON_TOKEN_TO")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "NFTVISTA_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

// Package config defines the top-level configuration for the nftvista sync
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by NFTVISTA_* environment variables.
type Config struct {
	Tradeport TradeportConfig `toml:"tradeport"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Sync      SyncConfig      `toml:"sync"`
	Retry     RetryConfig     `toml:"retry"`
	Daemon    DaemonConfig    `toml:"daemon"`
	LogLevel  string          `toml:"log_level"`
}

// TradeportConfig holds the marketplace API endpoint and credentials.
type TradeportConfig struct {
	BaseURL    string   `toml:"base_url"`
	ApiKey     string   `toml:"api_key"`
	Timeout    duration `toml:"timeout"`
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis backs the shared
// outbound rate limiter; when disabled, calls are only paced by the
// configured delays.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for order-book
// snapshot archiving.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SyncConfig holds the sync engine's pacing and verification parameters.
// Enabled is the kill switch: when false every job refuses to start.
type SyncConfig struct {
	Enabled         bool     `toml:"enabled"`
	Ticker          string   `toml:"ticker"`
	PageSize        int      `toml:"page_size"`
	PageDelay       duration `toml:"page_delay"`
	InsertBatchSize int      `toml:"insert_batch_size"`
	BatchDelay      duration `toml:"batch_delay"`
	RowDelay        duration `toml:"row_delay"`
	VerifySample    int      `toml:"verify_sample"`
	// VerifyMinRows is the minimum number of rows a ranged run must touch
	// before post-run verification is worth the extra API calls.
	VerifyMinRows int `toml:"verify_min_rows"`
}

// RetryConfig holds the shared retry-with-backoff parameters applied to
// every remote and store call.
type RetryConfig struct {
	MaxAttempts  int      `toml:"max_attempts"`
	BaseDelay    duration `toml:"base_delay"`
	GrowthFactor float64  `toml:"growth_factor"`
	MaxDelay     duration `toml:"max_delay"`
}

// DaemonConfig holds the cron schedules for daemon mode. An empty schedule
// disables that job.
type DaemonConfig struct {
	ListingsCron string `toml:"listings_cron"`
	SalesCron    string `toml:"sales_cron"`
	TraitsCron   string `toml:"traits_cron"`
	OwnersCron   string `toml:"owners_cron"`
	// TokenFrom/TokenTo bound the ranged jobs (sales, traits) in daemon mode.
	TokenFrom int64 `toml:"token_from"`
	TokenTo   int64 `toml:"token_to"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Tradeport: TradeportConfig{
			BaseURL:    "https://api.tradeport.xyz",
			Timeout:    duration{30 * time.Second},
			RateLimit:  10,
			RateWindow: duration{time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "nftvista",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "nftvista-snapshots",
			ForcePathStyle: true,
		},
		Sync: SyncConfig{
			Enabled:         true,
			PageSize:        50,
			PageDelay:       duration{500 * time.Millisecond},
			InsertBatchSize: 10,
			BatchDelay:      duration{time.Second},
			RowDelay:        duration{100 * time.Millisecond},
			VerifySample:    5,
			VerifyMinRows:   25,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			BaseDelay:    duration{500 * time.Millisecond},
			GrowthFactor: 2.0,
			MaxDelay:     duration{10 * time.Second},
		},
		Daemon: DaemonConfig{
			ListingsCron: "*/15 * * * *",
			SalesCron:    "0 */6 * * *",
			TraitsCron:   "",
			OwnersCron:   "30 2 * * *",
			TokenFrom:    1,
			TokenTo:      10000,
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Tradeport
	if c.Tradeport.BaseURL == "" {
		errs = append(errs, "tradeport: base_url must not be empty")
	}
	if c.Tradeport.RateLimit < 1 {
		errs = append(errs, "tradeport: rate_limit must be >= 1")
	}
	if c.Tradeport.RateWindow.Duration <= 0 {
		errs = append(errs, "tradeport: rate_window must be positive")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Sync
	if c.Sync.Ticker == "" {
		errs = append(errs, "sync: ticker must not be empty")
	}
	if c.Sync.PageSize < 1 {
		errs = append(errs, "sync: page_size must be >= 1")
	}
	if c.Sync.InsertBatchSize < 1 {
		errs = append(errs, "sync: insert_batch_size must be >= 1")
	}
	if c.Sync.VerifySample < 0 {
		errs = append(errs, "sync: verify_sample must be >= 0")
	}

	// Retry
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry: max_attempts must be >= 1")
	}
	if c.Retry.BaseDelay.Duration <= 0 {
		errs = append(errs, "retry: base_delay must be positive")
	}
	if c.Retry.GrowthFactor < 1 {
		errs = append(errs, "retry: growth_factor must be >= 1")
	}
	if c.Retry.MaxDelay.Duration < c.Retry.BaseDelay.Duration {
		errs = append(errs, "retry: max_delay must be >= base_delay")
	}

	// Daemon ranges
	if c.Daemon.TokenFrom > c.Daemon.TokenTo {
		errs = append(errs, fmt.Sprintf("daemon: token_from %d exceeds token_to %d", c.Daemon.TokenFrom, c.Daemon.TokenTo))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/nftvista/nftvista/internal/blob/s3"
	"github.com/nftvista/nftvista/internal/cache/redis"
	"github.com/nftvista/nftvista/internal/config"
	"github.com/nftvista/nftvista/internal/domain"
	"github.com/nftvista/nftvista/internal/platform/tradeport"
	"github.com/nftvista/nftvista/internal/retry"
	"github.com/nftvista/nftvista/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency the jobs need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Source domain.MarketSource

	// Stores
	Listings domain.ListingStore
	Sales    domain.SalesStore
	Traits   domain.TraitStore
	Tokens   domain.TokenStore
	Owners   domain.OwnerStore
	Actors   domain.ActorStore

	// Optional
	RateLimiter domain.RateLimiter
	Archiver    *s3blob.SnapshotArchiver
}

// retryConfig converts the configured retry section to the shared policy
// applied to every remote and store call.
func retryConfig(cfg *config.Config) retry.Config {
	return retry.Config{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    cfg.Retry.BaseDelay.Duration,
		GrowthFactor: cfg.Retry.GrowthFactor,
		MaxDelay:     cfg.Retry.MaxDelay.Duration,
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Listings = postgres.NewListingStore(pool)
	deps.Sales = postgres.NewSalesStore(pool)
	deps.Traits = postgres.NewTraitStore(pool)
	deps.Tokens = postgres.NewTokenStore(pool)
	deps.Owners = postgres.NewOwnerStore(pool)
	deps.Actors = postgres.NewActorStore(pool)

	// --- Redis rate limiter (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient,
			cfg.Tradeport.RateLimit, cfg.Tradeport.RateWindow.Duration)
	}

	// --- S3 snapshot archiver (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewSnapshotArchiver(s3blob.NewWriter(s3Client))
	}

	// --- Tradeport source client ---
	opts := []tradeport.Option{
		tradeport.WithRetry(retryConfig(cfg), retry.DefaultPolicy{}),
		tradeport.WithTimeout(cfg.Tradeport.Timeout.Duration),
	}
	if deps.RateLimiter != nil {
		opts = append(opts, tradeport.WithRateLimiter(deps.RateLimiter))
	}
	deps.Source = tradeport.New(cfg.Tradeport.BaseURL, cfg.Tradeport.ApiKey, opts...)

	logger.Debug("dependencies wired",
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("s3", cfg.S3.Enabled),
	)
	return deps, cleanup, nil
}

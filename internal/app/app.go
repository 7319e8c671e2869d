// Package app provides the top-level application lifecycle for the nftvista
// sync service. It wires together all dependencies (source client, stores,
// rate limiter, snapshot archiver), dispatches the requested job, and owns
// shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nftvista/nftvista/internal/config"
	"github.com/nftvista/nftvista/internal/domain"
)

// RunOptions selects the job to execute and its parameters. Ticker falls
// back to the configured default when empty.
type RunOptions struct {
	Job    string
	Ticker string
	From   int64
	To     int64
	// Batch overrides the sales range batch size when positive.
	Batch int
}

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, dispatches the
// requested job, and blocks until the job completes or the context is
// cancelled. The sync kill switch is checked before any dependency touches
// the network.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	if !a.cfg.Sync.Enabled {
		return fmt.Errorf("app: %w", domain.ErrSyncDisabled)
	}

	if opts.Ticker == "" {
		opts.Ticker = a.cfg.Sync.Ticker
	}
	if opts.From == 0 && opts.To == 0 {
		opts.From = a.cfg.Daemon.TokenFrom
		opts.To = a.cfg.Daemon.TokenTo
	}

	a.logger.InfoContext(ctx, "starting sync service",
		slog.String("job", opts.Job),
		slog.String("ticker", opts.Ticker),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(opts.Job) {
	case "listings":
		return a.ListingsJob(ctx, deps, opts.Ticker)
	case "tokens":
		return a.TokensJob(ctx, deps, opts.Ticker, opts.From, opts.To)
	case "sales":
		return a.SalesJob(ctx, deps, opts.Ticker, opts.From, opts.To, opts.Batch)
	case "traits":
		return a.TraitsJob(ctx, deps, opts.Ticker, opts.From, opts.To)
	case "owners":
		return a.OwnersJob(ctx, deps, opts.Ticker)
	case "verify":
		return a.VerifyJob(ctx, deps, opts.Ticker)
	case "daemon":
		return a.Daemon(ctx, deps, opts.Ticker)
	default:
		return fmt.Errorf("app: unsupported job %q", opts.Job)
	}
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down sync service")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

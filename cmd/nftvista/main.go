// Command nftvista runs the marketplace mirroring jobs. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and dispatches the requested job.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nftvista/nftvista/internal/app"
	"github.com/nftvista/nftvista/internal/config"
	"github.com/nftvista/nftvista/internal/domain"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	job := flag.String("job", "listings", "job to run: listings, tokens, sales, traits, owners, verify, daemon")
	ticker := flag.String("ticker", "", "collection ticker (defaults to sync.ticker from config)")
	from := flag.Int64("from", 0, "first token id for ranged jobs")
	to := flag.Int64("to", 0, "last token id for ranged jobs")
	batch := flag.Int("batch", 0, "sales range batch size (0 uses the default)")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(2)
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Validate configuration. Pre-flight failures exit 2, like the sync
	// kill switch; exit 1 is reserved for runs that failed after starting.
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	logger.Info("nftvista starting",
		slog.String("job", *job),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	// Setup signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = application.Run(ctx, app.RunOptions{
		Job:    *job,
		Ticker: *ticker,
		From:   *from,
		To:     *to,
		Batch:  *batch,
	})
	switch {
	case err == nil:
		logger.Info("nftvista finished")
	case errors.Is(err, domain.ErrSyncDisabled):
		logger.Warn("sync is disabled by configuration, nothing to do")
		os.Exit(2)
	case errors.Is(err, context.Canceled):
		logger.Info("nftvista shut down gracefully")
	default:
		logger.Error("nftvista exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

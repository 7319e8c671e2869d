package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Daemon runs the configured jobs on their cron schedules until the context
// is cancelled. Overlapping runs of the same job are skipped, not queued.
func (a *App) Daemon(ctx context.Context, deps *Dependencies, ticker string) error {
	logger := a.logger.With(slog.String("component", "daemon"))
	cl := cronLogger{logger: logger}

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cl),
		cron.Recover(cl),
	))

	schedule := func(name, spec string, job func(context.Context) error) error {
		if spec == "" {
			logger.Info("job not scheduled", slog.String("job", name))
			return nil
		}
		_, err := c.AddFunc(spec, func() {
			if err := job(ctx); err != nil {
				logger.Error("scheduled job failed",
					slog.String("job", name),
					slog.String("error", err.Error()),
				)
			}
		})
		if err != nil {
			return fmt.Errorf("app: schedule %s (%q): %w", name, spec, err)
		}
		logger.Info("job scheduled", slog.String("job", name), slog.String("cron", spec))
		return nil
	}

	from, to := a.cfg.Daemon.TokenFrom, a.cfg.Daemon.TokenTo
	if err := schedule("listings", a.cfg.Daemon.ListingsCron, func(ctx context.Context) error {
		return a.ListingsJob(ctx, deps, ticker)
	}); err != nil {
		return err
	}
	if err := schedule("sales", a.cfg.Daemon.SalesCron, func(ctx context.Context) error {
		return a.SalesJob(ctx, deps, ticker, from, to, 0)
	}); err != nil {
		return err
	}
	if err := schedule("traits", a.cfg.Daemon.TraitsCron, func(ctx context.Context) error {
		return a.TraitsJob(ctx, deps, ticker, from, to)
	}); err != nil {
		return err
	}
	if err := schedule("owners", a.cfg.Daemon.OwnersCron, func(ctx context.Context) error {
		return a.OwnersJob(ctx, deps, ticker)
	}); err != nil {
		return err
	}

	c.Start()
	logger.Info("daemon started", slog.String("ticker", ticker))

	<-ctx.Done()

	// Let in-flight jobs drain before returning.
	stopCtx := c.Stop()
	<-stopCtx.Done()
	logger.Info("daemon stopped")
	return ctx.Err()
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{"error", err.Error()}, keysAndValues...)
	l.logger.Error(msg, args...)
}

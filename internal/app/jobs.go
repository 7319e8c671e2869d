package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nftvista/nftvista/internal/sync"
)

// Job construction helpers. Each job builds its engine components from the
// wired dependencies, runs to completion, and emits exactly one summary line.

func (a *App) reconciler(deps *Dependencies) *sync.Reconciler {
	var archiver sync.SnapshotArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	return sync.NewReconciler(deps.Source, deps.Listings, deps.Actors, archiver,
		sync.ReconcilerConfig{
			PageSize:        a.cfg.Sync.PageSize,
			PageDelay:       a.cfg.Sync.PageDelay.Duration,
			InsertBatchSize: a.cfg.Sync.InsertBatchSize,
			BatchDelay:      a.cfg.Sync.BatchDelay.Duration,
			RowDelay:        a.cfg.Sync.RowDelay.Duration,
			Retry:           retryConfig(a.cfg),
		}, a.logger)
}

func (a *App) traitLoader(deps *Dependencies) *sync.TraitLoader {
	return sync.NewTraitLoader(deps.Source, deps.Traits, deps.Tokens,
		sync.TraitLoaderConfig{
			RowDelay: a.cfg.Sync.RowDelay.Duration,
			Retry:    retryConfig(a.cfg),
		}, a.logger)
}

func (a *App) tokenSyncer(deps *Dependencies) *sync.TokenSyncer {
	return sync.NewTokenSyncer(deps.Source, deps.Listings, deps.Tokens, deps.Actors,
		a.traitLoader(deps),
		sync.TokenSyncerConfig{
			RowDelay: a.cfg.Sync.RowDelay.Duration,
			Retry:    retryConfig(a.cfg),
		}, a.logger)
}

func (a *App) verifier(deps *Dependencies) *sync.Verifier {
	return sync.NewVerifier(deps.Source, deps.Listings,
		sync.VerifierConfig{Retry: retryConfig(a.cfg)}, a.logger)
}

// ListingsJob runs one full order-book reconciliation followed by a
// verification pass.
func (a *App) ListingsJob(ctx context.Context, deps *Dependencies, ticker string) error {
	m := sync.NewRunMetrics("listings", ticker)

	report, err := a.reconciler(deps).Run(ctx, ticker, m)
	if err != nil {
		a.logger.Error("listings job failed", slog.Any("run", m), slog.String("error", err.Error()))
		return fmt.Errorf("app: listings job: %w", err)
	}

	a.verifyAfterRun(ctx, deps, ticker, m)

	a.logger.Info("listings job complete",
		slog.Any("run", m),
		slog.Int("remote_total", report.RemoteTotal),
		slog.Int64("discrepancy", report.Discrepancy),
	)
	return nil
}

// TokensJob syncs each token in the inclusive id range individually.
func (a *App) TokensJob(ctx context.Context, deps *Dependencies, ticker string, from, to int64) error {
	m := sync.NewRunMetrics("tokens", ticker)

	report, err := a.tokenSyncer(deps).SyncRange(ctx, ticker, from, to, m)
	if err != nil {
		a.logger.Error("tokens job failed", slog.Any("run", m), slog.String("error", err.Error()))
		return fmt.Errorf("app: tokens job: %w", err)
	}

	// Ranged runs only earn a verification pass once they touched enough
	// rows to make the extra API calls worthwhile.
	touched := m.Inserts + m.Updates + m.Removes
	if touched >= a.cfg.Sync.VerifyMinRows {
		a.verifyAfterRun(ctx, deps, ticker, m)
	}

	a.logger.Info("tokens job complete",
		slog.Any("run", m),
		slog.Int("errors", report.Outcomes[sync.TokenFailed]),
	)
	return nil
}

// SalesJob appends missing sales history for each token in the range. A
// positive batch overrides the default range batch size.
func (a *App) SalesJob(ctx context.Context, deps *Dependencies, ticker string, from, to int64, batch int) error {
	m := sync.NewRunMetrics("sales", ticker)

	syncer := sync.NewSalesSyncer(deps.Source, deps.Sales,
		sync.SalesSyncerConfig{
			PageSize:   a.cfg.Sync.PageSize,
			PageDelay:  a.cfg.Sync.PageDelay.Duration,
			RowDelay:   a.cfg.Sync.RowDelay.Duration,
			BatchSize:  batch,
			BatchDelay: a.cfg.Sync.BatchDelay.Duration,
			Retry:      retryConfig(a.cfg),
		}, a.logger)

	report, err := syncer.SyncRange(ctx, ticker, from, to, m)
	if err != nil {
		a.logger.Error("sales job failed", slog.Any("run", m), slog.String("error", err.Error()))
		return fmt.Errorf("app: sales job: %w", err)
	}

	a.logger.Info("sales job complete",
		slog.Any("run", m),
		slog.Int("tokens_checked", report.TokensChecked),
	)
	return nil
}

// TraitsJob loads trait metadata for each token in the range that has never
// been loaded.
func (a *App) TraitsJob(ctx context.Context, deps *Dependencies, ticker string, from, to int64) error {
	m := sync.NewRunMetrics("traits", ticker)

	report, err := a.traitLoader(deps).LoadRange(ctx, ticker, from, to, m)
	if err != nil {
		a.logger.Error("traits job failed", slog.Any("run", m), slog.String("error", err.Error()))
		return fmt.Errorf("app: traits job: %w", err)
	}

	a.logger.Info("traits job complete",
		slog.Any("run", m),
		slog.Int("loaded", report.Loaded),
		slog.Int("skipped", report.Skipped),
	)
	return nil
}

// OwnersJob refreshes the collection's holder snapshot and aggregates.
func (a *App) OwnersJob(ctx context.Context, deps *Dependencies, ticker string) error {
	m := sync.NewRunMetrics("owners", ticker)

	loader := sync.NewOwnersLoader(deps.Source, deps.Owners,
		sync.OwnersLoaderConfig{
			RowDelay: a.cfg.Sync.RowDelay.Duration,
			Retry:    retryConfig(a.cfg),
		}, a.logger)

	report, err := loader.Load(ctx, ticker, m)
	if err != nil {
		a.logger.Error("owners job failed", slog.Any("run", m), slog.String("error", err.Error()))
		return fmt.Errorf("app: owners job: %w", err)
	}

	a.logger.Info("owners job complete",
		slog.Any("run", m),
		slog.Int("holders", report.Holders),
	)
	return nil
}

// VerifyJob runs a standalone verification pass.
func (a *App) VerifyJob(ctx context.Context, deps *Dependencies, ticker string) error {
	m := sync.NewRunMetrics("verify", ticker)

	if _, err := a.verifier(deps).Sample(ctx, ticker, a.cfg.Sync.VerifySample, m); err != nil {
		a.logger.Error("verify job failed", slog.Any("run", m), slog.String("error", err.Error()))
		return fmt.Errorf("app: verify job: %w", err)
	}

	a.logger.Info("verify job complete", slog.Any("run", m))
	return nil
}

// verifyAfterRun runs the post-run verification pass. Verification findings
// never fail the run; a sampling error is logged and swallowed.
func (a *App) verifyAfterRun(ctx context.Context, deps *Dependencies, ticker string, m *sync.RunMetrics) {
	if a.cfg.Sync.VerifySample <= 0 {
		return
	}
	if _, err := a.verifier(deps).Sample(ctx, ticker, a.cfg.Sync.VerifySample, m); err != nil {
		a.logger.Warn("post-run verification failed", slog.String("error", err.Error()))
	}
}

package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nftvista/nftvista/internal/domain"
	"github.com/nftvista/nftvista/internal/retry"
)

// SnapshotArchiver uploads the raw fetched order book for later auditing.
type SnapshotArchiver interface {
	ArchiveOrders(ctx context.Context, ticker, runID string, orders []domain.Listing) (string, error)
}

// ReconcilerConfig holds pacing and batching knobs for a reconciliation run.
// Page and row delays exist to respect the source's rate limits and to avoid
// store write storms; the engine is deliberately sequential.
type ReconcilerConfig struct {
	PageSize        int
	PageDelay       time.Duration
	InsertBatchSize int
	BatchDelay      time.Duration
	RowDelay        time.Duration
	Retry           retry.Config
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.InsertBatchSize <= 0 {
		c.InsertBatchSize = 10
	}
	return c
}

// ReconcileReport summarizes one full reconciliation run.
type ReconcileReport struct {
	Policy       CorrelationPolicy
	RemoteTotal  int
	LocalActive  int
	Added        BatchResult
	Removed      BatchResult
	Updated      BatchResult
	FinalActive  int64
	Discrepancy  int64
	SnapshotPath string
}

// Reconciler mirrors the full remote order book of a ticker into the local
// listings table. It correlates by external order id: an order replaced
// under a new id becomes a soft remove plus a fresh row. The only status
// transition it ever writes is active -> api_sync_removed.
type Reconciler struct {
	source   domain.MarketSource
	listings domain.ListingStore
	actors   domain.ActorStore
	archiver SnapshotArchiver
	policy   retry.Policy
	cfg      ReconcilerConfig
	logger   *slog.Logger
}

// NewReconciler creates a Reconciler. archiver may be nil to disable
// snapshot uploads.
func NewReconciler(
	source domain.MarketSource,
	listings domain.ListingStore,
	actors domain.ActorStore,
	archiver SnapshotArchiver,
	cfg ReconcilerConfig,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		source:   source,
		listings: listings,
		actors:   actors,
		archiver: archiver,
		policy:   retry.DefaultPolicy{},
		cfg:      cfg.withDefaults(),
		logger:   logger.With(slog.String("component", "reconciler")),
	}
}

// Policy returns the correlation policy of this sync path.
func (r *Reconciler) Policy() CorrelationPolicy { return CorrelateByOrderID }

// Run executes one full reconciliation pass to completion. Individual item
// failures are counted and do not abort the remaining work; the returned
// report reflects whatever was applied.
func (r *Reconciler) Run(ctx context.Context, ticker string, m *RunMetrics) (*ReconcileReport, error) {
	log := r.logger.With(slog.String("ticker", ticker), slog.String("run_id", m.RunID))
	report := &ReconcileReport{Policy: r.Policy()}

	// The system actor is resolved once per run and attributed to every
	// automated deactivation.
	actor, err := retry.Do(ctx, r.cfg.Retry, r.policy, "store.find_or_create_actor",
		func(ctx context.Context) (domain.Actor, error) {
			return r.actors.FindOrCreate(ctx, domain.SystemActorName, true)
		})
	if err != nil {
		return nil, fmt.Errorf("sync: resolve system actor: %w", err)
	}

	m.StartPhase(PhaseFetch)
	remote, remoteTotal, err := r.fetchOrderBook(ctx, ticker, m)
	m.EndPhase(PhaseFetch)
	if err != nil {
		return nil, fmt.Errorf("sync: fetch order book: %w", err)
	}
	report.RemoteTotal = remoteTotal

	if r.archiver != nil {
		orders := make([]domain.Listing, 0, len(remote))
		for _, l := range remote {
			orders = append(orders, l)
		}
		path, archErr := r.archiver.ArchiveOrders(ctx, ticker, m.RunID, orders)
		if archErr != nil {
			// Snapshot upload is best effort; the run proceeds.
			log.Warn("order book snapshot failed", slog.String("error", archErr.Error()))
		} else {
			report.SnapshotPath = path
		}
	}

	localRows, err := retry.Do(ctx, r.cfg.Retry, r.policy, "store.list_active",
		func(ctx context.Context) ([]domain.Listing, error) {
			return r.listings.ListActive(ctx, ticker)
		})
	if err != nil {
		return nil, fmt.Errorf("sync: load active listings: %w", err)
	}

	// Manually-created listings belong to administrators; the engine never
	// adds, updates, or removes them.
	local := make(map[string]domain.Listing, len(localRows))
	for _, l := range localRows {
		if l.Source == domain.ListingSourceManual {
			continue
		}
		local[l.ExternalOrderID] = l
	}
	report.LocalActive = len(local)

	toAdd, toUpdate, toRemove := diffByOrderID(remote, local)
	log.Info("reconcile diff computed",
		slog.Int("remote", len(remote)),
		slog.Int("local", len(local)),
		slog.Int("to_add", len(toAdd)),
		slog.Int("to_update", len(toUpdate)),
		slog.Int("to_remove", len(toRemove)),
	)

	m.StartPhase(PhaseApply)
	// Removes go first: a token relisted under a new order id must free its
	// active slot before the replacement row is inserted, or the insert trips
	// the one-active-listing-per-token constraint.
	report.Removed = r.applyRemoves(ctx, toRemove, actor.ID, m)
	report.Added = r.applyAdds(ctx, toAdd, m)
	report.Updated = r.applyUpdates(ctx, toUpdate, m)
	m.EndPhase(PhaseApply)

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("sync: reconcile interrupted: %w", err)
	}

	finalActive, err := retry.Do(ctx, r.cfg.Retry, r.policy, "store.count_active",
		func(ctx context.Context) (int64, error) {
			return r.listings.CountActive(ctx, ticker)
		})
	if err != nil {
		log.Warn("final active recount failed", slog.String("error", err.Error()))
	} else {
		report.FinalActive = finalActive
		report.Discrepancy = int64(remoteTotal) - finalActive
		if report.Discrepancy != 0 {
			// Diagnostic only; discrepancies are surfaced, never auto-corrected.
			log.Warn("active listing count diverges from source",
				slog.Int("remote_total", remoteTotal),
				slog.Int64("local_active", finalActive),
				slog.Int64("discrepancy", report.Discrepancy),
			)
		}
	}

	log.Info("reconcile complete",
		slog.Int("added", report.Added.Succeeded),
		slog.Int("removed", report.Removed.Succeeded),
		slog.Int("updated", report.Updated.Succeeded),
		slog.Int("failed", report.Added.Failed+report.Removed.Failed+report.Updated.Failed),
	)
	return report, nil
}

// fetchOrderBook pages through the full remote order book, keyed by external
// order id. Pagination stops when a page returns fewer than PageSize items.
func (r *Reconciler) fetchOrderBook(ctx context.Context, ticker string, m *RunMetrics) (map[string]domain.Listing, int, error) {
	remote := make(map[string]domain.Listing)
	total := 0
	offset := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		page, err := r.source.ListOrders(ctx, ticker, domain.PageQuery{
			Offset:  offset,
			Limit:   r.cfg.PageSize,
			SortBy:  "createdAt",
			SortDir: domain.SortAsc,
		})
		m.RecordCall("tradeport.list_orders", err)
		if err != nil {
			return nil, 0, fmt.Errorf("page at offset %d: %w", offset, err)
		}

		total = page.Total
		for _, order := range page.Orders {
			remote[order.ExternalOrderID] = order
		}

		if len(page.Orders) < r.cfg.PageSize {
			break
		}
		offset += r.cfg.PageSize

		if err := sleep(ctx, r.cfg.PageDelay); err != nil {
			return nil, 0, err
		}
	}

	return remote, total, nil
}

// updatePair carries a matched local row and the remote state to write over
// its marketplace fields.
type updatePair struct {
	local  domain.Listing
	remote domain.Listing
}

// diffByOrderID computes the three-way diff between the remote order book
// and the local active rows, both keyed by external order id.
func diffByOrderID(remote, local map[string]domain.Listing) (toAdd []domain.Listing, toUpdate []updatePair, toRemove []domain.Listing) {
	for id, rl := range remote {
		ll, ok := local[id]
		if !ok {
			toAdd = append(toAdd, rl)
			continue
		}
		if !ll.FieldsEqual(rl) {
			toUpdate = append(toUpdate, updatePair{local: ll, remote: rl})
		}
	}
	for id, ll := range local {
		if _, ok := remote[id]; !ok {
			toRemove = append(toRemove, ll)
		}
	}
	return toAdd, toUpdate, toRemove
}

// applyAdds inserts new listings in fixed-size batches with an inter-batch
// delay as backpressure against the store.
func (r *Reconciler) applyAdds(ctx context.Context, toAdd []domain.Listing, m *RunMetrics) BatchResult {
	var res BatchResult
	for i, l := range toAdd {
		if ctx.Err() != nil {
			return res
		}
		err := retry.Exec(ctx, r.cfg.Retry, r.policy, "store.insert_listing",
			func(ctx context.Context) error {
				return r.listings.Insert(ctx, l)
			})
		res.Record(err)
		if err != nil {
			m.ItemErrors++
			r.logger.Error("insert listing failed",
				slog.String("order_id", l.ExternalOrderID),
				slog.Int64("token_id", l.TokenID),
				slog.String("error", err.Error()),
			)
		} else {
			m.Inserts++
		}

		if (i+1)%r.cfg.InsertBatchSize == 0 {
			if sleep(ctx, r.cfg.BatchDelay) != nil {
				return res
			}
		}
	}
	return res
}

// applyRemoves soft-deletes rows the source no longer reports, one at a time
// with a small delay.
func (r *Reconciler) applyRemoves(ctx context.Context, toRemove []domain.Listing, actorID int64, m *RunMetrics) BatchResult {
	var res BatchResult
	for _, l := range toRemove {
		if ctx.Err() != nil {
			return res
		}
		now := time.Now()
		err := retry.Exec(ctx, r.cfg.Retry, r.policy, "store.deactivate_listing",
			func(ctx context.Context) error {
				return r.listings.Deactivate(ctx, l.ID, domain.StatusAPISyncRemoved, actorID, now)
			})
		res.Record(err)
		if err != nil {
			m.ItemErrors++
			r.logger.Error("deactivate listing failed",
				slog.Int64("listing_id", l.ID),
				slog.String("error", err.Error()),
			)
		} else {
			m.Removes++
		}

		if sleep(ctx, r.cfg.RowDelay) != nil {
			return res
		}
	}
	return res
}

// applyUpdates writes remote marketplace fields over matched local rows in
// place; status is untouched.
func (r *Reconciler) applyUpdates(ctx context.Context, toUpdate []updatePair, m *RunMetrics) BatchResult {
	var res BatchResult
	for _, pair := range toUpdate {
		if ctx.Err() != nil {
			return res
		}
		l := pair.local
		l.TotalPrice = pair.remote.TotalPrice
		l.SellerAddress = pair.remote.SellerAddress
		l.RarityRank = pair.remote.RarityRank
		l.RequiredPayment = pair.remote.RequiredPayment
		l.OwnershipConfirmed = pair.remote.OwnershipConfirmed

		err := retry.Exec(ctx, r.cfg.Retry, r.policy, "store.update_listing",
			func(ctx context.Context) error {
				return r.listings.Update(ctx, l)
			})
		res.Record(err)
		if err != nil {
			m.ItemErrors++
			r.logger.Error("update listing failed",
				slog.Int64("listing_id", l.ID),
				slog.String("error", err.Error()),
			)
		} else {
			m.Updates++
		}

		if sleep(ctx, r.cfg.RowDelay) != nil {
			return res
		}
	}
	return res
}

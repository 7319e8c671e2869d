package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nftvista/nftvista/internal/domain"
	"github.com/nftvista/nftvista/internal/retry"
)

// SalesSyncerConfig holds pacing knobs for sales-history sync. BatchSize
// groups tokens in a range run: progress is logged per batch and BatchDelay
// is slept between batches.
type SalesSyncerConfig struct {
	PageSize   int
	PageDelay  time.Duration
	RowDelay   time.Duration
	BatchSize  int
	BatchDelay time.Duration
	Retry      retry.Config
}

func (c SalesSyncerConfig) withDefaults() SalesSyncerConfig {
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// SalesReport summarizes a sales sync over one token or a range.
type SalesReport struct {
	TokensChecked int
	Inserted      int
	Deduped       int
	Errors        int
}

// SalesSyncer appends missing completed sales to the local sales log. The
// log is strictly append-only: existing rows are never rewritten even when
// the source would report different values for them, and a token whose local
// count already matches the source is skipped without fetching its history.
type SalesSyncer struct {
	source domain.MarketSource
	sales  domain.SalesStore
	policy retry.Policy
	cfg    SalesSyncerConfig
	logger *slog.Logger
}

// NewSalesSyncer creates a SalesSyncer.
func NewSalesSyncer(source domain.MarketSource, sales domain.SalesStore, cfg SalesSyncerConfig, logger *slog.Logger) *SalesSyncer {
	return &SalesSyncer{
		source: source,
		sales:  sales,
		policy: retry.DefaultPolicy{},
		cfg:    cfg.withDefaults(),
		logger: logger.With(slog.String("component", "sales_syncer")),
	}
}

// SyncToken appends the sales the source reports for one token that are not
// yet in the local log. It returns the number of rows inserted.
func (s *SalesSyncer) SyncToken(ctx context.Context, ticker string, tokenID int64, m *RunMetrics) (int, error) {
	log := s.logger.With(
		slog.String("ticker", ticker),
		slog.Int64("token_id", tokenID),
		slog.String("run_id", m.RunID),
	)

	remoteTotal, err := s.fetchTotal(ctx, ticker, tokenID, m)
	if err != nil {
		return 0, fmt.Errorf("sync: fetch sales total for token %d: %w", tokenID, err)
	}

	localCount, err := retry.Do(ctx, s.cfg.Retry, s.policy, "store.count_sales",
		func(ctx context.Context) (int64, error) {
			return s.sales.CountByToken(ctx, ticker, tokenID)
		})
	if err != nil {
		return 0, fmt.Errorf("sync: count local sales for token %d: %w", tokenID, err)
	}

	// Count parity is the cheap exit: the log is append-only, so matching
	// counts mean there is nothing to add.
	if localCount >= int64(remoteTotal) {
		return 0, nil
	}

	existing, err := retry.Do(ctx, s.cfg.Retry, s.policy, "store.sales_external_ids",
		func(ctx context.Context) (map[string]struct{}, error) {
			return s.sales.ExternalIDsByToken(ctx, ticker, tokenID)
		})
	if err != nil {
		return 0, fmt.Errorf("sync: load local sale ids for token %d: %w", tokenID, err)
	}

	inserted := 0
	offset := 0
	page, err := s.fetchPage(ctx, ticker, tokenID, 0, m)
	if err != nil {
		return 0, fmt.Errorf("sync: fetch sales history for token %d: %w", tokenID, err)
	}
	for {
		for _, sale := range page.Sales {
			if err := ctx.Err(); err != nil {
				return inserted, err
			}
			if _, ok := existing[sale.ExternalID]; ok {
				continue
			}

			err := retry.Exec(ctx, s.cfg.Retry, s.policy, "store.insert_sale",
				func(ctx context.Context) error {
					return s.sales.Insert(ctx, sale)
				})
			switch {
			case err == nil:
				inserted++
				m.Inserts++
			case errors.Is(err, domain.ErrDuplicate):
				// Another run got there first; the row exists, which is the
				// outcome we wanted.
				m.Deduped++
			default:
				m.ItemErrors++
				log.Error("insert sale failed",
					slog.String("external_id", sale.ExternalID),
					slog.String("error", err.Error()),
				)
			}

			if sleep(ctx, s.cfg.RowDelay) != nil {
				return inserted, ctx.Err()
			}
		}

		if len(page.Sales) < s.cfg.PageSize {
			break
		}
		offset += s.cfg.PageSize
		if sleep(ctx, s.cfg.PageDelay) != nil {
			return inserted, ctx.Err()
		}
		page, err = s.fetchPage(ctx, ticker, tokenID, offset, m)
		if err != nil {
			return inserted, fmt.Errorf("sync: fetch sales page at offset %d: %w", offset, err)
		}
	}

	if inserted > 0 {
		log.Info("sales appended",
			slog.Int("inserted", inserted),
			slog.Int("remote_total", remoteTotal),
		)
	}
	return inserted, nil
}

// fetchTotal reads the server-reported history total with a one-row fetch.
// In the common up-to-date case this is the only source call for the token.
func (s *SalesSyncer) fetchTotal(ctx context.Context, ticker string, tokenID int64, m *RunMetrics) (int, error) {
	page, err := s.source.CompletedOrders(ctx, ticker, tokenID, domain.PageQuery{
		Limit:   1,
		SortBy:  "soldAt",
		SortDir: domain.SortAsc,
	})
	m.RecordCall("tradeport.completed_orders", err)
	return page.Total, err
}

// SyncRange runs SyncToken over an inclusive token id range. Failures on
// individual tokens are counted and the range continues.
func (s *SalesSyncer) SyncRange(ctx context.Context, ticker string, from, to int64, m *RunMetrics) (*SalesReport, error) {
	if from > to {
		return nil, fmt.Errorf("sync: invalid token range %d..%d", from, to)
	}
	log := s.logger.With(slog.String("ticker", ticker), slog.String("run_id", m.RunID))
	report := &SalesReport{}

	for id := from; id <= to; id++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		inserted, err := s.SyncToken(ctx, ticker, id, m)
		report.TokensChecked++
		report.Inserted += inserted
		if err != nil {
			report.Errors++
			log.Error("sales sync failed",
				slog.Int64("token_id", id),
				slog.String("error", err.Error()),
			)
		}

		if report.TokensChecked%s.cfg.BatchSize == 0 {
			log.Info("sales range progress",
				slog.Int("done", report.TokensChecked),
				slog.Int64("remaining", to-id),
				slog.Int("inserted", report.Inserted),
			)
			if id < to && sleep(ctx, s.cfg.BatchDelay) != nil {
				return report, ctx.Err()
			}
		}
	}

	report.Deduped = m.Deduped
	log.Info("sales range complete",
		slog.Int("tokens", report.TokensChecked),
		slog.Int("inserted", report.Inserted),
		slog.Int("deduped", report.Deduped),
		slog.Int("errors", report.Errors),
	)
	return report, nil
}

func (s *SalesSyncer) fetchPage(ctx context.Context, ticker string, tokenID int64, offset int, m *RunMetrics) (domain.SalesPage, error) {
	page, err := s.source.CompletedOrders(ctx, ticker, tokenID, domain.PageQuery{
		Offset:  offset,
		Limit:   s.cfg.PageSize,
		SortBy:  "soldAt",
		SortDir: domain.SortAsc,
	})
	m.RecordCall("tradeport.completed_orders", err)
	return page, err
}

package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nftvista/nftvista/internal/domain"
	"github.com/nftvista/nftvista/internal/retry"
)

// TraitLoaderConfig holds pacing knobs for trait loading.
type TraitLoaderConfig struct {
	RowDelay time.Duration
	Retry    retry.Config
}

// TraitReport summarizes a LoadRange run.
type TraitReport struct {
	TokensChecked int
	Loaded        int
	NoData        int
	Skipped       int
	Errors        int
}

// TraitLoader fetches token trait metadata once per token and stores it.
// Traits are immutable collection metadata: a token that has already been
// answered, with data or with a definitive "no data", is never fetched again.
type TraitLoader struct {
	source domain.MarketSource
	traits domain.TraitStore
	tokens domain.TokenStore
	policy retry.Policy
	cfg    TraitLoaderConfig
	logger *slog.Logger

	// dict caches the category dictionary for the duration of a run, keyed
	// by normalized name.
	dict      map[string]domain.TraitCategory
	nextOrder int
}

// NewTraitLoader creates a TraitLoader.
func NewTraitLoader(source domain.MarketSource, traits domain.TraitStore, tokens domain.TokenStore, cfg TraitLoaderConfig, logger *slog.Logger) *TraitLoader {
	return &TraitLoader{
		source: source,
		traits: traits,
		tokens: tokens,
		policy: retry.DefaultPolicy{},
		cfg:    cfg,
		logger: logger.With(slog.String("component", "trait_loader")),
	}
}

// LoadToken loads trait metadata for one token if it has never been loaded.
// A source answer of "no metadata" is recorded as final so the token is not
// asked about again.
func (t *TraitLoader) LoadToken(ctx context.Context, ticker string, tokenID int64, m *RunMetrics) error {
	log := t.logger.With(
		slog.String("ticker", ticker),
		slog.Int64("token_id", tokenID),
		slog.String("run_id", m.RunID),
	)

	token, err := retry.Do(ctx, t.cfg.Retry, t.policy, "store.get_token",
		func(ctx context.Context) (domain.Token, error) {
			return t.tokens.Get(ctx, ticker, tokenID)
		})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		err = retry.Exec(ctx, t.cfg.Retry, t.policy, "store.insert_token",
			func(ctx context.Context) error {
				return t.tokens.Insert(ctx, domain.Token{
					Ticker:      ticker,
					TokenID:     tokenID,
					FirstSeenAt: time.Now(),
				})
			})
		if err != nil {
			return fmt.Errorf("sync: seed token %d: %w", tokenID, err)
		}
	case err != nil:
		return fmt.Errorf("sync: load token %d: %w", tokenID, err)
	case token.TraitsSyncedAt != nil:
		return nil
	}

	// A token with stored trait rows but no sync stamp was loaded by an
	// older run; stamp it instead of re-fetching.
	count, err := retry.Do(ctx, t.cfg.Retry, t.policy, "store.count_traits",
		func(ctx context.Context) (int64, error) {
			return t.traits.CountByToken(ctx, ticker, tokenID)
		})
	if err != nil {
		return fmt.Errorf("sync: count traits for token %d: %w", tokenID, err)
	}
	if count > 0 {
		return t.markSynced(ctx, ticker, tokenID, true)
	}

	payload, err := t.source.TokenTraits(ctx, ticker, tokenID)
	m.RecordCall("tradeport.token_traits", err)
	if err != nil {
		return fmt.Errorf("sync: fetch traits for token %d: %w", tokenID, err)
	}
	if payload == nil || len(payload.Attributes) == 0 {
		log.Info("token has no trait metadata")
		return t.markSynced(ctx, ticker, tokenID, false)
	}

	records, err := t.buildRecords(ctx, ticker, tokenID, payload.Attributes)
	if err != nil {
		return err
	}

	err = retry.Exec(ctx, t.cfg.Retry, t.policy, "store.insert_traits",
		func(ctx context.Context) error {
			return t.traits.InsertBatch(ctx, records)
		})
	if err != nil {
		return fmt.Errorf("sync: insert traits for token %d: %w", tokenID, err)
	}
	m.Inserts += len(records)

	if err := t.markSynced(ctx, ticker, tokenID, true); err != nil {
		return err
	}
	log.Info("traits loaded", slog.Int("count", len(records)))
	return nil
}

// LoadRange runs LoadToken over an inclusive token id range. The category
// dictionary is refreshed once at the start of the range.
func (t *TraitLoader) LoadRange(ctx context.Context, ticker string, from, to int64, m *RunMetrics) (*TraitReport, error) {
	if from > to {
		return nil, fmt.Errorf("sync: invalid token range %d..%d", from, to)
	}
	log := t.logger.With(slog.String("ticker", ticker), slog.String("run_id", m.RunID))
	report := &TraitReport{}
	t.dict = nil

	for id := from; id <= to; id++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		before := m.Inserts
		err := t.LoadToken(ctx, ticker, id, m)
		report.TokensChecked++
		switch {
		case err != nil:
			report.Errors++
			m.ItemErrors++
			log.Error("trait load failed",
				slog.Int64("token_id", id),
				slog.String("error", err.Error()),
			)
		case m.Inserts > before:
			report.Loaded++
		default:
			report.Skipped++
		}

		if report.TokensChecked%50 == 0 {
			log.Info("trait range progress",
				slog.Int("done", report.TokensChecked),
				slog.Int64("remaining", to-id),
			)
		}

		if sleep(ctx, t.cfg.RowDelay) != nil {
			return report, ctx.Err()
		}
	}

	log.Info("trait range complete",
		slog.Int("tokens", report.TokensChecked),
		slog.Int("loaded", report.Loaded),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", report.Errors),
	)
	return report, nil
}

// buildRecords resolves every attribute's category and converts the payload
// to stored rows.
func (t *TraitLoader) buildRecords(ctx context.Context, ticker string, tokenID int64, attrs []domain.TraitAttribute) ([]domain.TraitRecord, error) {
	if err := t.ensureDict(ctx); err != nil {
		return nil, err
	}

	var missing []domain.TraitCategory
	seen := make(map[string]struct{})
	for _, a := range attrs {
		name := normalizeCategory(a.Name)
		if _, ok := t.dict[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		missing = append(missing, domain.TraitCategory{
			Name:         name,
			DisplayOrder: t.nextOrder,
		})
		t.nextOrder++
	}

	if len(missing) > 0 {
		err := retry.Exec(ctx, t.cfg.Retry, t.policy, "store.insert_categories",
			func(ctx context.Context) error {
				return t.traits.InsertCategories(ctx, missing)
			})
		if err != nil {
			return nil, fmt.Errorf("sync: insert trait categories: %w", err)
		}
		// Re-read to pick up assigned ids, including rows a concurrent run
		// inserted first.
		t.dict = nil
		if err := t.ensureDict(ctx); err != nil {
			return nil, err
		}
	}

	records := make([]domain.TraitRecord, 0, len(attrs))
	for _, a := range attrs {
		cat, ok := t.dict[normalizeCategory(a.Name)]
		if !ok {
			return nil, fmt.Errorf("sync: trait category %q missing after insert", a.Name)
		}
		records = append(records, domain.TraitRecord{
			Ticker:     ticker,
			TokenID:    tokenID,
			TraitName:  cat.Name,
			TraitValue: a.Value,
			Rarity:     a.Rarity,
			CategoryID: cat.ID,
		})
	}
	return records, nil
}

// ensureDict loads the category dictionary if it is not cached.
func (t *TraitLoader) ensureDict(ctx context.Context) error {
	if t.dict != nil {
		return nil
	}
	cats, err := retry.Do(ctx, t.cfg.Retry, t.policy, "store.trait_categories",
		func(ctx context.Context) ([]domain.TraitCategory, error) {
			return t.traits.Categories(ctx)
		})
	if err != nil {
		return fmt.Errorf("sync: load trait categories: %w", err)
	}

	t.dict = make(map[string]domain.TraitCategory, len(cats))
	t.nextOrder = 0
	for _, c := range cats {
		t.dict[normalizeCategory(c.Name)] = c
		if c.DisplayOrder >= t.nextOrder {
			t.nextOrder = c.DisplayOrder + 1
		}
	}
	return nil
}

func (t *TraitLoader) markSynced(ctx context.Context, ticker string, tokenID int64, hasTraits bool) error {
	now := time.Now()
	err := retry.Exec(ctx, t.cfg.Retry, t.policy, "store.mark_traits_synced",
		func(ctx context.Context) error {
			return t.tokens.MarkTraitsSynced(ctx, ticker, tokenID, hasTraits, now)
		})
	if err != nil {
		return fmt.Errorf("sync: mark traits synced for token %d: %w", tokenID, err)
	}
	return nil
}

// normalizeCategory canonicalizes a category name so "Background" and
// "background" share one dictionary entry.
func normalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

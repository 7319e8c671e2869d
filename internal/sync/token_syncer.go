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

// TokenOutcome is the result of syncing a single token.
type TokenOutcome string

const (
	TokenAdded    TokenOutcome = "added"
	TokenUpdated  TokenOutcome = "updated"
	TokenRemoved  TokenOutcome = "removed"
	TokenNoChange TokenOutcome = "no_change"
	TokenFailed   TokenOutcome = "error"
)

// TokenSyncerConfig holds pacing knobs for ranged token sync.
type TokenSyncerConfig struct {
	RowDelay time.Duration
	Retry    retry.Config
}

// RangeReport summarizes a SyncRange run.
type RangeReport struct {
	Outcomes map[TokenOutcome]int
}

// TokenSyncer reconciles one token at a time against the source. Unlike the
// batch reconciler it correlates by token, not by order id: when the source
// reports the same token under a new order id, the existing active row is
// updated in place rather than removed and re-added.
type TokenSyncer struct {
	source   domain.MarketSource
	listings domain.ListingStore
	tokens   domain.TokenStore
	actors   domain.ActorStore
	traits   *TraitLoader
	policy   retry.Policy
	cfg      TokenSyncerConfig
	logger   *slog.Logger
}

// NewTokenSyncer creates a TokenSyncer. traits may be nil to skip trait
// loading for newly discovered tokens.
func NewTokenSyncer(
	source domain.MarketSource,
	listings domain.ListingStore,
	tokens domain.TokenStore,
	actors domain.ActorStore,
	traits *TraitLoader,
	cfg TokenSyncerConfig,
	logger *slog.Logger,
) *TokenSyncer {
	return &TokenSyncer{
		source:   source,
		listings: listings,
		tokens:   tokens,
		actors:   actors,
		traits:   traits,
		policy:   retry.DefaultPolicy{},
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "token_syncer")),
	}
}

// Policy returns the correlation policy of this sync path.
func (s *TokenSyncer) Policy() CorrelationPolicy { return CorrelateByToken }

// SyncToken brings the local active row for one token in line with the
// source. Exactly one of the outcomes is returned; a manually created local
// row is never touched and reports no change.
func (s *TokenSyncer) SyncToken(ctx context.Context, ticker string, tokenID int64, m *RunMetrics) (TokenOutcome, error) {
	log := s.logger.With(
		slog.String("ticker", ticker),
		slog.Int64("token_id", tokenID),
		slog.String("run_id", m.RunID),
	)

	remote, found, err := s.fetchRemote(ctx, ticker, tokenID, m)
	if err != nil {
		return TokenFailed, fmt.Errorf("sync: fetch token %d order: %w", tokenID, err)
	}

	local, err := retry.Do(ctx, s.cfg.Retry, s.policy, "store.get_active_by_token",
		func(ctx context.Context) (domain.Listing, error) {
			return s.listings.GetActiveByToken(ctx, ticker, tokenID)
		})
	hasLocal := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return TokenFailed, fmt.Errorf("sync: load token %d listing: %w", tokenID, err)
	}

	if hasLocal && local.Source == domain.ListingSourceManual {
		log.Info("manual listing left untouched")
		return TokenNoChange, nil
	}

	switch {
	case !found && !hasLocal:
		return TokenNoChange, nil

	case !found && hasLocal:
		if err := s.remove(ctx, local); err != nil {
			m.ItemErrors++
			return TokenFailed, err
		}
		m.Removes++
		log.Info("listing removed", slog.String("order_id", local.ExternalOrderID))
		return TokenRemoved, nil

	case found && !hasLocal:
		if err := s.add(ctx, ticker, remote, m); err != nil {
			m.ItemErrors++
			return TokenFailed, err
		}
		m.Inserts++
		log.Info("listing added", slog.String("order_id", remote.ExternalOrderID))
		return TokenAdded, nil

	default:
		if local.ExternalOrderID == remote.ExternalOrderID && local.FieldsEqual(remote) {
			return TokenNoChange, nil
		}
		merged := local
		merged.ExternalOrderID = remote.ExternalOrderID
		merged.TotalPrice = remote.TotalPrice
		merged.SellerAddress = remote.SellerAddress
		merged.RarityRank = remote.RarityRank
		merged.RequiredPayment = remote.RequiredPayment
		merged.OwnershipConfirmed = remote.OwnershipConfirmed

		err := retry.Exec(ctx, s.cfg.Retry, s.policy, "store.update_listing",
			func(ctx context.Context) error {
				return s.listings.Update(ctx, merged)
			})
		if err != nil {
			m.ItemErrors++
			return TokenFailed, fmt.Errorf("sync: update token %d listing: %w", tokenID, err)
		}
		m.Updates++
		log.Info("listing updated",
			slog.String("order_id", merged.ExternalOrderID),
			slog.Float64("price", merged.TotalPrice),
		)
		return TokenUpdated, nil
	}
}

// SyncRange runs SyncToken over an inclusive token id range, counting
// outcomes. Individual token failures are counted and the range continues.
func (s *TokenSyncer) SyncRange(ctx context.Context, ticker string, from, to int64, m *RunMetrics) (*RangeReport, error) {
	if from > to {
		return nil, fmt.Errorf("sync: invalid token range %d..%d", from, to)
	}
	log := s.logger.With(slog.String("ticker", ticker), slog.String("run_id", m.RunID))
	report := &RangeReport{Outcomes: make(map[TokenOutcome]int)}

	done := 0
	for id := from; id <= to; id++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, err := s.SyncToken(ctx, ticker, id, m)
		report.Outcomes[outcome]++
		if err != nil {
			log.Error("token sync failed",
				slog.Int64("token_id", id),
				slog.String("error", err.Error()),
			)
		}

		done++
		if done%50 == 0 {
			log.Info("token range progress",
				slog.Int("done", done),
				slog.Int64("remaining", to-id),
			)
		}

		if sleep(ctx, s.cfg.RowDelay) != nil {
			return report, ctx.Err()
		}
	}

	log.Info("token range complete",
		slog.Int("added", report.Outcomes[TokenAdded]),
		slog.Int("updated", report.Outcomes[TokenUpdated]),
		slog.Int("removed", report.Outcomes[TokenRemoved]),
		slog.Int("no_change", report.Outcomes[TokenNoChange]),
		slog.Int("errors", report.Outcomes[TokenFailed]),
	)
	return report, nil
}

// fetchRemote asks the source for the token's current active order. An empty
// page means the token is not listed.
func (s *TokenSyncer) fetchRemote(ctx context.Context, ticker string, tokenID int64, m *RunMetrics) (domain.Listing, bool, error) {
	id := tokenID
	page, err := s.source.ListOrders(ctx, ticker, domain.PageQuery{
		Limit:   1,
		TokenID: &id,
	})
	m.RecordCall("tradeport.list_orders", err)
	if err != nil {
		return domain.Listing{}, false, err
	}
	if len(page.Orders) == 0 {
		return domain.Listing{}, false, nil
	}
	return page.Orders[0], true, nil
}

// add inserts a fresh active row, seeding the token dimension row first when
// the token has never been seen. Trait loading for a brand-new token is best
// effort and never fails the sync.
func (s *TokenSyncer) add(ctx context.Context, ticker string, remote domain.Listing, m *RunMetrics) error {
	brandNew, err := s.seedToken(ctx, ticker, remote.TokenID, remote.RarityRank)
	if err != nil {
		return fmt.Errorf("sync: seed token %d: %w", remote.TokenID, err)
	}

	err = retry.Exec(ctx, s.cfg.Retry, s.policy, "store.insert_listing",
		func(ctx context.Context) error {
			return s.listings.Insert(ctx, remote)
		})
	if err != nil {
		return fmt.Errorf("sync: insert token %d listing: %w", remote.TokenID, err)
	}

	if brandNew && s.traits != nil {
		if err := s.traits.LoadToken(ctx, ticker, remote.TokenID, m); err != nil {
			s.logger.Warn("trait load for new token failed",
				slog.Int64("token_id", remote.TokenID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// seedToken ensures a dimension row exists for the token and reports whether
// it was newly created.
func (s *TokenSyncer) seedToken(ctx context.Context, ticker string, tokenID int64, rarityRank int) (bool, error) {
	_, err := retry.Do(ctx, s.cfg.Retry, s.policy, "store.get_token",
		func(ctx context.Context) (domain.Token, error) {
			return s.tokens.Get(ctx, ticker, tokenID)
		})
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	err = retry.Exec(ctx, s.cfg.Retry, s.policy, "store.insert_token",
		func(ctx context.Context) error {
			return s.tokens.Insert(ctx, domain.Token{
				Ticker:      ticker,
				TokenID:     tokenID,
				RarityRank:  rarityRank,
				FirstSeenAt: time.Now(),
			})
		})
	if err != nil {
		return false, err
	}
	return true, nil
}

// remove soft-deletes the local row under the system actor.
func (s *TokenSyncer) remove(ctx context.Context, local domain.Listing) error {
	actor, err := retry.Do(ctx, s.cfg.Retry, s.policy, "store.find_or_create_actor",
		func(ctx context.Context) (domain.Actor, error) {
			return s.actors.FindOrCreate(ctx, domain.SystemActorName, true)
		})
	if err != nil {
		return fmt.Errorf("sync: resolve system actor: %w", err)
	}

	now := time.Now()
	err = retry.Exec(ctx, s.cfg.Retry, s.policy, "store.deactivate_listing",
		func(ctx context.Context) error {
			return s.listings.Deactivate(ctx, local.ID, domain.StatusAPISyncRemoved, actor.ID, now)
		})
	if err != nil {
		return fmt.Errorf("sync: deactivate listing %d: %w", local.ID, err)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nftvista/nftvista/internal/domain"
)

// TokenStore implements domain.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *pgxpool.Pool
}

// NewTokenStore creates a new TokenStore backed by the given pool.
func NewTokenStore(pool *pgxpool.Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Get retrieves a token dimension row, or domain.ErrNotFound.
func (s *TokenStore) Get(ctx context.Context, ticker string, tokenID int64) (domain.Token, error) {
	var t domain.Token
	err := s.pool.QueryRow(ctx,
		`SELECT ticker, token_id, rarity_rank, first_seen_at, traits_synced_at, has_traits
		 FROM tokens WHERE ticker = $1 AND token_id = $2`,
		ticker, tokenID,
	).Scan(&t.Ticker, &t.TokenID, &t.RarityRank, &t.FirstSeenAt, &t.TraitsSyncedAt, &t.HasTraits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Token{}, domain.ErrNotFound
		}
		return domain.Token{}, fmt.Errorf("postgres: get token %s/%d: %w", ticker, tokenID, err)
	}
	return t, nil
}

// Insert seeds a token dimension row.
func (s *TokenStore) Insert(ctx context.Context, t domain.Token) error {
	const query = `
		INSERT INTO tokens (ticker, token_id, rarity_rank)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, token_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, t.Ticker, t.TokenID, t.RarityRank)
	if err != nil {
		return fmt.Errorf("postgres: insert token %s/%d: %w", t.Ticker, t.TokenID, mapPgError(err))
	}
	return nil
}

// MarkTraitsSynced records the outcome of a trait load, including the "no
// data" case.
func (s *TokenStore) MarkTraitsSynced(ctx context.Context, ticker string, tokenID int64, hasTraits bool, at time.Time) error {
	const query = `
		UPDATE tokens SET traits_synced_at = $3, has_traits = $4
		WHERE ticker = $1 AND token_id = $2`

	tag, err := s.pool.Exec(ctx, query, ticker, tokenID, at, hasTraits)
	if err != nil {
		return fmt.Errorf("postgres: mark traits synced %s/%d: %w", ticker, tokenID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark traits synced %s/%d: %w", ticker, tokenID, domain.ErrNotFound)
	}
	return nil
}

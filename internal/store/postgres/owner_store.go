package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nftvista/nftvista/internal/domain"
)

// OwnerStore implements domain.OwnerStore using PostgreSQL.
type OwnerStore struct {
	pool *pgxpool.Pool
}

// NewOwnerStore creates a new OwnerStore backed by the given pool.
func NewOwnerStore(pool *pgxpool.Pool) *OwnerStore {
	return &OwnerStore{pool: pool}
}

// Upsert inserts or refreshes a single holder row.
func (s *OwnerStore) Upsert(ctx context.Context, o domain.Owner) error {
	const query = `
		INSERT INTO owners (ticker, address, token_count, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (ticker, address) DO UPDATE SET
			token_count = EXCLUDED.token_count,
			updated_at  = NOW()`

	_, err := s.pool.Exec(ctx, query, o.Ticker, o.Address, o.TokenCount)
	if err != nil {
		return fmt.Errorf("postgres: upsert owner %s/%s: %w", o.Ticker, o.Address, mapPgError(err))
	}
	return nil
}

// UpsertStats inserts or refreshes the collection aggregates.
func (s *OwnerStore) UpsertStats(ctx context.Context, st domain.CollectionStats) error {
	const query = `
		INSERT INTO collection_stats (ticker, total_holders, total_minted, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (ticker) DO UPDATE SET
			total_holders = EXCLUDED.total_holders,
			total_minted  = EXCLUDED.total_minted,
			updated_at    = NOW()`

	_, err := s.pool.Exec(ctx, query, st.Ticker, st.TotalHolders, st.TotalMinted)
	if err != nil {
		return fmt.Errorf("postgres: upsert collection stats %s: %w", st.Ticker, err)
	}
	return nil
}

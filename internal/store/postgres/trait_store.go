package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nftvista/nftvista/internal/domain"
)

// TraitStore implements domain.TraitStore using PostgreSQL.
type TraitStore struct {
	pool *pgxpool.Pool
}

// NewTraitStore creates a new TraitStore backed by the given pool.
func NewTraitStore(pool *pgxpool.Pool) *TraitStore {
	return &TraitStore{pool: pool}
}

// CountByToken returns the number of trait rows stored for a token.
func (s *TraitStore) CountByToken(ctx context.Context, ticker string, tokenID int64) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trait_data WHERE ticker = $1 AND token_id = $2`,
		ticker, tokenID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count traits %s/%d: %w", ticker, tokenID, err)
	}
	return count, nil
}

// InsertBatch inserts all trait rows for a token in one batch.
func (s *TraitStore) InsertBatch(ctx context.Context, traits []domain.TraitRecord) error {
	if len(traits) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trait_data (ticker, token_id, trait_name, trait_value, rarity, category_id)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, t := range traits {
		batch.Queue(query, t.Ticker, t.TokenID, t.TraitName, t.TraitValue, t.Rarity, t.CategoryID)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range traits {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trait batch item %d: %w", i, mapPgError(err))
		}
	}
	return nil
}

// Categories returns the full category dictionary ordered by display order.
func (s *TraitStore) Categories(ctx context.Context) ([]domain.TraitCategory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, display_order FROM trait_categories ORDER BY display_order`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trait categories: %w", err)
	}
	defer rows.Close()

	var cats []domain.TraitCategory
	for rows.Next() {
		var c domain.TraitCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.DisplayOrder); err != nil {
			return nil, fmt.Errorf("postgres: scan trait category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trait categories rows: %w", err)
	}
	return cats, nil
}

// InsertCategories bulk-inserts new dictionary entries. Names created
// concurrently by another run are skipped; the caller re-reads the dictionary
// afterwards to resolve ids.
func (s *TraitStore) InsertCategories(ctx context.Context, cats []domain.TraitCategory) error {
	if len(cats) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trait_categories (name, display_order)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`

	for _, c := range cats {
		batch.Queue(query, c.Name, c.DisplayOrder)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range cats {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trait category item %d: %w", i, err)
		}
	}
	return nil
}

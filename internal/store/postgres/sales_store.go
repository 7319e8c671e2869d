package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nftvista/nftvista/internal/domain"
)

// SalesStore implements domain.SalesStore using PostgreSQL. The table is
// append-only; there are no update or delete paths.
type SalesStore struct {
	pool *pgxpool.Pool
}

// NewSalesStore creates a new SalesStore backed by the given pool.
func NewSalesStore(pool *pgxpool.Pool) *SalesStore {
	return &SalesStore{pool: pool}
}

// Insert appends a single sales record. A concurrent insert of the same
// external id surfaces as domain.ErrDuplicate.
func (s *SalesStore) Insert(ctx context.Context, rec domain.SalesRecord) error {
	const query = `
		INSERT INTO sales_history (external_id, ticker, token_id, sale_price, sale_date, recorded_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`

	var recordedAt *time.Time
	if !rec.RecordedAt.IsZero() {
		recordedAt = &rec.RecordedAt
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ExternalID, rec.Ticker, rec.TokenID, rec.SalePrice, rec.SaleDate, recordedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert sale %s: %w", rec.ExternalID, mapPgError(err))
	}
	return nil
}

// CountByToken returns the number of stored sales for a token.
func (s *SalesStore) CountByToken(ctx context.Context, ticker string, tokenID int64) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sales_history WHERE ticker = $1 AND token_id = $2`,
		ticker, tokenID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count sales %s/%d: %w", ticker, tokenID, err)
	}
	return count, nil
}

// ExternalIDsByToken returns the set of already-stored external ids for a
// token, used to filter the remote set down to the missing residual.
func (s *SalesStore) ExternalIDsByToken(ctx context.Context, ticker string, tokenID int64) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT external_id FROM sales_history WHERE ticker = $1 AND token_id = $2`,
		ticker, tokenID)
	if err != nil {
		return nil, fmt.Errorf("postgres: sale ids %s/%d: %w", ticker, tokenID, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan sale id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: sale ids rows: %w", err)
	}
	return ids, nil
}

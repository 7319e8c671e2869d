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

// ListingStore implements domain.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a new ListingStore backed by the given pool.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

const listingCols = `id, external_order_id, ticker, token_id, total_price,
	seller_address, rarity_rank, required_payment, ownership_confirmed,
	source, status, created_at, deactivated_at, deactivated_by`

// scanListing scans a single listing row.
func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	var source, status string
	err := row.Scan(
		&l.ID, &l.ExternalOrderID, &l.Ticker, &l.TokenID, &l.TotalPrice,
		&l.SellerAddress, &l.RarityRank, &l.RequiredPayment, &l.OwnershipConfirmed,
		&source, &status, &l.CreatedAt, &l.DeactivatedAt, &l.DeactivatedBy,
	)
	if err != nil {
		return domain.Listing{}, err
	}
	l.Source = domain.ListingSource(source)
	l.Status = domain.ListingStatus(status)
	return l, nil
}

// Insert creates a new listing row.
func (s *ListingStore) Insert(ctx context.Context, l domain.Listing) error {
	const query = `
		INSERT INTO listings (
			external_order_id, ticker, token_id, total_price,
			seller_address, rarity_rank, required_payment, ownership_confirmed,
			source, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()))`

	var createdAt *time.Time
	if !l.CreatedAt.IsZero() {
		createdAt = &l.CreatedAt
	}

	_, err := s.pool.Exec(ctx, query,
		l.ExternalOrderID, l.Ticker, l.TokenID, l.TotalPrice,
		l.SellerAddress, l.RarityRank, l.RequiredPayment, l.OwnershipConfirmed,
		string(l.Source), string(l.Status), createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert listing %s/%d: %w", l.Ticker, l.TokenID, mapPgError(err))
	}
	return nil
}

// Update mutates the marketplace fields of the row identified by l.ID.
// Status, source, and created_at are left untouched.
func (s *ListingStore) Update(ctx context.Context, l domain.Listing) error {
	const query = `
		UPDATE listings SET
			external_order_id   = $2,
			total_price         = $3,
			seller_address      = $4,
			rarity_rank         = $5,
			required_payment    = $6,
			ownership_confirmed = $7
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		l.ID, l.ExternalOrderID, l.TotalPrice, l.SellerAddress,
		l.RarityRank, l.RequiredPayment, l.OwnershipConfirmed,
	)
	if err != nil {
		return fmt.Errorf("postgres: update listing %d: %w", l.ID, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update listing %d: %w", l.ID, domain.ErrNotFound)
	}
	return nil
}

// Deactivate moves an active row to a terminal status.
func (s *ListingStore) Deactivate(ctx context.Context, id int64, status domain.ListingStatus, actorID int64, at time.Time) error {
	const query = `
		UPDATE listings SET
			status         = $2,
			deactivated_at = $3,
			deactivated_by = $4
		WHERE id = $1 AND status = 'active'`

	tag, err := s.pool.Exec(ctx, query, id, string(status), at, actorID)
	if err != nil {
		return fmt.Errorf("postgres: deactivate listing %d: %w", id, mapPgError(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: deactivate listing %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListActive returns every active listing for the ticker.
func (s *ListingStore) ListActive(ctx context.Context, ticker string) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingCols+` FROM listings WHERE ticker = $1 AND status = 'active' ORDER BY token_id`,
		ticker)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan active listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active listings rows: %w", err)
	}
	return listings, nil
}

// GetActiveByToken returns the single active listing for a token, or
// domain.ErrNotFound.
func (s *ListingStore) GetActiveByToken(ctx context.Context, ticker string, tokenID int64) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+listingCols+` FROM listings WHERE ticker = $1 AND token_id = $2 AND status = 'active'`,
		ticker, tokenID)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("postgres: get active listing %s/%d: %w", ticker, tokenID, err)
	}
	return l, nil
}

// CountActive returns the number of active listings for the ticker.
func (s *ListingStore) CountActive(ctx context.Context, ticker string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM listings WHERE ticker = $1 AND status = 'active'`,
		ticker).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count active listings: %w", err)
	}
	return count, nil
}

// SampleActive returns up to n active rows chosen at random, for the
// post-sync verification sampler.
func (s *ListingStore) SampleActive(ctx context.Context, ticker string, n int) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingCols+` FROM listings WHERE ticker = $1 AND status = 'active' ORDER BY RANDOM() LIMIT $2`,
		ticker, n)
	if err != nil {
		return nil, fmt.Errorf("postgres: sample active listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan sampled listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: sample active listings rows: %w", err)
	}
	return listings, nil
}

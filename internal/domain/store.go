package domain

import (
	"context"
	"io"
	"time"
)

// ListingStore persists mirrored listings. Operations are row-level and
// individually retryable; there are no cross-row transactions.
type ListingStore interface {
	Insert(ctx context.Context, l Listing) error
	// Update mutates the marketplace fields (and external order id) of the
	// row identified by l.ID in place. Status and created_at are untouched.
	Update(ctx context.Context, l Listing) error
	// Deactivate moves an active row to the given terminal status, stamping
	// deactivated_at and deactivated_by.
	Deactivate(ctx context.Context, id int64, status ListingStatus, actorID int64, at time.Time) error
	ListActive(ctx context.Context, ticker string) ([]Listing, error)
	GetActiveByToken(ctx context.Context, ticker string, tokenID int64) (Listing, error)
	CountActive(ctx context.Context, ticker string) (int64, error)
	// SampleActive returns up to n active rows chosen at random.
	SampleActive(ctx context.Context, ticker string, n int) ([]Listing, error)
}

// SalesStore persists the append-only sales log. Rows are never updated or
// deleted; Insert returns ErrDuplicate when the external id already exists.
type SalesStore interface {
	Insert(ctx context.Context, s SalesRecord) error
	CountByToken(ctx context.Context, ticker string, tokenID int64) (int64, error)
	ExternalIDsByToken(ctx context.Context, ticker string, tokenID int64) (map[string]struct{}, error)
}

// TraitStore persists trait rows and the trait category dictionary.
type TraitStore interface {
	CountByToken(ctx context.Context, ticker string, tokenID int64) (int64, error)
	InsertBatch(ctx context.Context, traits []TraitRecord) error
	Categories(ctx context.Context) ([]TraitCategory, error)
	// InsertCategories bulk-inserts new dictionary entries, silently skipping
	// names created concurrently by another run.
	InsertCategories(ctx context.Context, cats []TraitCategory) error
}

// TokenStore persists the token dimension table.
type TokenStore interface {
	Get(ctx context.Context, ticker string, tokenID int64) (Token, error)
	Insert(ctx context.Context, t Token) error
	MarkTraitsSynced(ctx context.Context, ticker string, tokenID int64, hasTraits bool, at time.Time) error
}

// OwnerStore persists holder snapshots and collection aggregates.
type OwnerStore interface {
	Upsert(ctx context.Context, o Owner) error
	UpsertStats(ctx context.Context, s CollectionStats) error
}

// ActorStore resolves mutation authors.
type ActorStore interface {
	FindOrCreate(ctx context.Context, name string, isSystem bool) (Actor, error)
}

// BlobWriter uploads a blob to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

package domain

import "time"

// ListingSource records who created a listing row. Rows created by
// administrators are never touched by the sync engine.
type ListingSource string

const (
	ListingSourceAPI    ListingSource = "external-api"
	ListingSourceManual ListingSource = "manual"
)

// ListingStatus is the lifecycle state of a listing row. Exactly one row per
// (ticker, token) may be active; every other status is terminal for the sync
// engine's purposes.
type ListingStatus string

const (
	StatusActive          ListingStatus = "active"
	StatusSold            ListingStatus = "sold"
	StatusCancelled       ListingStatus = "cancelled"
	StatusExpired         ListingStatus = "expired"
	StatusManuallyRemoved ListingStatus = "manually_removed"
	StatusAPISyncRemoved  ListingStatus = "api_sync_removed"
	StatusPriceChanged    ListingStatus = "price_changed"
	StatusManuallyUpdated ListingStatus = "manually_updated"
	StatusUnknown         ListingStatus = "unknown"
)

// Terminal reports whether the status excludes the row from active-set
// queries.
func (s ListingStatus) Terminal() bool {
	return s != StatusActive
}

// Listing is one sell order mirrored from the marketplace, or created
// manually by an administrator. Deactivated rows keep their final field
// values as history; only status, deactivated_at, and deactivated_by change
// on removal.
type Listing struct {
	ID                 int64
	ExternalOrderID    string
	Ticker             string
	TokenID            int64
	TotalPrice         float64
	SellerAddress      string
	RarityRank         int
	RequiredPayment    float64
	OwnershipConfirmed bool
	Source             ListingSource
	Status             ListingStatus
	CreatedAt          time.Time
	DeactivatedAt      *time.Time
	DeactivatedBy      *int64
}

// FieldsEqual reports whether the marketplace-owned fields of two listings
// match. Identity fields (id, order id, ticker, token) and lifecycle fields
// are not compared; this is the "did the order change" test used when a
// remote order is matched to a local row.
func (l Listing) FieldsEqual(other Listing) bool {
	return l.TotalPrice == other.TotalPrice &&
		l.SellerAddress == other.SellerAddress &&
		l.RarityRank == other.RarityRank &&
		l.RequiredPayment == other.RequiredPayment &&
		l.OwnershipConfirmed == other.OwnershipConfirmed
}

package domain

import "time"

// SalesRecord is one completed sale in the append-only sales log. The
// external id is the primary key; rows are never updated or deleted once
// written.
type SalesRecord struct {
	ExternalID string
	Ticker     string
	TokenID    int64
	SalePrice  float64
	SaleDate   time.Time
	RecordedAt time.Time
}

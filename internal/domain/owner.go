package domain

import "time"

// Owner is one current holder of tokens in a collection.
type Owner struct {
	Ticker     string
	Address    string
	TokenCount int
	UpdatedAt  time.Time
}

// CollectionStats holds aggregate holder statistics for a collection.
type CollectionStats struct {
	Ticker       string
	TotalHolders int
	TotalMinted  int
	UpdatedAt    time.Time
}

// OwnerSnapshot is the source's current view of a collection's holders.
type OwnerSnapshot struct {
	Holders      []Owner
	TotalHolders int
	TotalMinted  int
}

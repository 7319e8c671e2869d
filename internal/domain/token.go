package domain

import "time"

// Token is one row of the collection dimension table. It is seeded the first
// time a token is seen by any syncer and carries trait-sync bookkeeping.
type Token struct {
	Ticker         string
	TokenID        int64
	RarityRank     int
	FirstSeenAt    time.Time
	TraitsSyncedAt *time.Time
	HasTraits      bool
}

package domain

import "context"

// SortDir is the server-side sort direction for paginated queries.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// PageQuery drives server-side pagination. The order book is always sorted
// deterministically server-side; callers page with Offset/Limit until a page
// returns fewer than Limit items.
type PageQuery struct {
	Offset  int
	Limit   int
	SortBy  string
	SortDir SortDir
	TokenID *int64
}

// OrderPage is one page of the remote order book plus the server-reported
// total across all pages.
type OrderPage struct {
	Orders []Listing
	Total  int
}

// SalesPage is one page of a token's completed-order history.
type SalesPage struct {
	Sales []SalesRecord
	Total int
}

// MarketSource is the boundary to the remote marketplace. Any API satisfying
// this pagination and error contract is substitutable. A 404/400 response for
// a token-scoped query is "no data", not an error: TokenTraits returns
// (nil, nil) and order/history queries return an empty page.
type MarketSource interface {
	ListOrders(ctx context.Context, ticker string, q PageQuery) (OrderPage, error)
	CompletedOrders(ctx context.Context, ticker string, tokenID int64, q PageQuery) (SalesPage, error)
	TokenTraits(ctx context.Context, ticker string, tokenID int64) (*TraitPayload, error)
	Owners(ctx context.Context, ticker string) (OwnerSnapshot, error)
}

// RateLimiter throttles outbound calls against a shared budget.
type RateLimiter interface {
	Wait(ctx context.Context, key string) error
}

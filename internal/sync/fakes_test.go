package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/nftvista/nftvista/internal/domain"
	"github.com/nftvista/nftvista/internal/retry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSource is an in-memory domain.MarketSource with scripted data.
type fakeSource struct {
	orders       []domain.Listing
	salesByToken map[int64][]domain.SalesRecord
	traits       map[int64]*domain.TraitPayload
	owners       domain.OwnerSnapshot

	listErr        error
	listErrByToken map[int64]error

	listCalls     int
	historyCalls  int
	historyLimits []int
	traitCalls    int
	ownersCalls   int
}

func (f *fakeSource) ListOrders(ctx context.Context, ticker string, q domain.PageQuery) (domain.OrderPage, error) {
	f.listCalls++
	if f.listErr != nil {
		return domain.OrderPage{}, f.listErr
	}

	matched := f.orders
	if q.TokenID != nil {
		if err, ok := f.listErrByToken[*q.TokenID]; ok {
			return domain.OrderPage{}, err
		}
		matched = nil
		for _, o := range f.orders {
			if o.TokenID == *q.TokenID {
				matched = append(matched, o)
			}
		}
	}

	page := domain.OrderPage{Total: len(matched)}
	limit := q.Limit
	if limit <= 0 {
		limit = len(matched)
	}
	for i := q.Offset; i < len(matched) && len(page.Orders) < limit; i++ {
		page.Orders = append(page.Orders, matched[i])
	}
	return page, nil
}

func (f *fakeSource) CompletedOrders(ctx context.Context, ticker string, tokenID int64, q domain.PageQuery) (domain.SalesPage, error) {
	f.historyCalls++
	f.historyLimits = append(f.historyLimits, q.Limit)
	sales := f.salesByToken[tokenID]
	page := domain.SalesPage{Total: len(sales)}
	limit := q.Limit
	if limit <= 0 {
		limit = len(sales)
	}
	for i := q.Offset; i < len(sales) && len(page.Sales) < limit; i++ {
		page.Sales = append(page.Sales, sales[i])
	}
	return page, nil
}

func (f *fakeSource) TokenTraits(ctx context.Context, ticker string, tokenID int64) (*domain.TraitPayload, error) {
	f.traitCalls++
	return f.traits[tokenID], nil
}

func (f *fakeSource) Owners(ctx context.Context, ticker string) (domain.OwnerSnapshot, error) {
	f.ownersCalls++
	return f.owners, nil
}

// fakeListingStore is an in-memory domain.ListingStore.
type fakeListingStore struct {
	nextID    int64
	rows      map[int64]domain.Listing
	insertErr map[string]error // keyed by external order id
}

func newFakeListingStore() *fakeListingStore {
	return &fakeListingStore{rows: make(map[int64]domain.Listing)}
}

// seed adds a row directly, bypassing Insert bookkeeping hooks.
func (f *fakeListingStore) seed(l domain.Listing) domain.Listing {
	f.nextID++
	l.ID = f.nextID
	if l.Status == "" {
		l.Status = domain.StatusActive
	}
	if l.Source == "" {
		l.Source = domain.ListingSourceAPI
	}
	f.rows[l.ID] = l
	return l
}

// Insert enforces the same one-active-listing-per-token constraint the real
// table carries via its partial unique index.
func (f *fakeListingStore) Insert(ctx context.Context, l domain.Listing) error {
	if err := f.insertErr[l.ExternalOrderID]; err != nil {
		return err
	}
	if l.Status == "" || l.Status == domain.StatusActive {
		for _, have := range f.rows {
			if have.Ticker == l.Ticker && have.TokenID == l.TokenID && have.Status == domain.StatusActive {
				return fmt.Errorf("insert listing %s: %w", l.ExternalOrderID, domain.ErrDuplicate)
			}
		}
	}
	f.seed(l)
	return nil
}

func (f *fakeListingStore) Update(ctx context.Context, l domain.Listing) error {
	cur, ok := f.rows[l.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.ExternalOrderID = l.ExternalOrderID
	cur.TotalPrice = l.TotalPrice
	cur.SellerAddress = l.SellerAddress
	cur.RarityRank = l.RarityRank
	cur.RequiredPayment = l.RequiredPayment
	cur.OwnershipConfirmed = l.OwnershipConfirmed
	f.rows[l.ID] = cur
	return nil
}

func (f *fakeListingStore) Deactivate(ctx context.Context, id int64, status domain.ListingStatus, actorID int64, at time.Time) error {
	cur, ok := f.rows[id]
	if !ok || cur.Status != domain.StatusActive {
		return domain.ErrNotFound
	}
	cur.Status = status
	cur.DeactivatedAt = &at
	cur.DeactivatedBy = &actorID
	f.rows[id] = cur
	return nil
}

func (f *fakeListingStore) ListActive(ctx context.Context, ticker string) ([]domain.Listing, error) {
	var out []domain.Listing
	for _, l := range f.rows {
		if l.Ticker == ticker && l.Status == domain.StatusActive {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeListingStore) GetActiveByToken(ctx context.Context, ticker string, tokenID int64) (domain.Listing, error) {
	for _, l := range f.rows {
		if l.Ticker == ticker && l.TokenID == tokenID && l.Status == domain.StatusActive {
			return l, nil
		}
	}
	return domain.Listing{}, domain.ErrNotFound
}

func (f *fakeListingStore) CountActive(ctx context.Context, ticker string) (int64, error) {
	active, _ := f.ListActive(ctx, ticker)
	return int64(len(active)), nil
}

func (f *fakeListingStore) SampleActive(ctx context.Context, ticker string, n int) ([]domain.Listing, error) {
	active, _ := f.ListActive(ctx, ticker)
	if len(active) > n {
		active = active[:n]
	}
	return active, nil
}

// byOrderID returns the stored row with the given external order id.
func (f *fakeListingStore) byOrderID(id string) (domain.Listing, bool) {
	for _, l := range f.rows {
		if l.ExternalOrderID == id {
			return l, true
		}
	}
	return domain.Listing{}, false
}

// fakeActorStore hands out one fixed system actor.
type fakeActorStore struct {
	calls int
}

func (f *fakeActorStore) FindOrCreate(ctx context.Context, name string, isSystem bool) (domain.Actor, error) {
	f.calls++
	return domain.Actor{ID: 99, Name: name, IsSystem: isSystem}, nil
}

// fakeSalesStore is an in-memory domain.SalesStore.
type fakeSalesStore struct {
	rows      map[string]domain.SalesRecord
	insertErr map[string]error
	idsCalls  int
}

func newFakeSalesStore() *fakeSalesStore {
	return &fakeSalesStore{rows: make(map[string]domain.SalesRecord)}
}

func (f *fakeSalesStore) Insert(ctx context.Context, s domain.SalesRecord) error {
	if err := f.insertErr[s.ExternalID]; err != nil {
		return err
	}
	if _, ok := f.rows[s.ExternalID]; ok {
		return domain.ErrDuplicate
	}
	f.rows[s.ExternalID] = s
	return nil
}

func (f *fakeSalesStore) CountByToken(ctx context.Context, ticker string, tokenID int64) (int64, error) {
	var n int64
	for _, s := range f.rows {
		if s.Ticker == ticker && s.TokenID == tokenID {
			n++
		}
	}
	return n, nil
}

func (f *fakeSalesStore) ExternalIDsByToken(ctx context.Context, ticker string, tokenID int64) (map[string]struct{}, error) {
	f.idsCalls++
	ids := make(map[string]struct{})
	for _, s := range f.rows {
		if s.Ticker == ticker && s.TokenID == tokenID {
			ids[s.ExternalID] = struct{}{}
		}
	}
	return ids, nil
}

// fakeTraitStore is an in-memory domain.TraitStore with sequential category
// ids and ON CONFLICT DO NOTHING semantics on names.
type fakeTraitStore struct {
	records []domain.TraitRecord
	cats    []domain.TraitCategory
	nextCat int64
}

func (f *fakeTraitStore) CountByToken(ctx context.Context, ticker string, tokenID int64) (int64, error) {
	var n int64
	for _, r := range f.records {
		if r.Ticker == ticker && r.TokenID == tokenID {
			n++
		}
	}
	return n, nil
}

func (f *fakeTraitStore) InsertBatch(ctx context.Context, traits []domain.TraitRecord) error {
	f.records = append(f.records, traits...)
	return nil
}

func (f *fakeTraitStore) Categories(ctx context.Context) ([]domain.TraitCategory, error) {
	out := make([]domain.TraitCategory, len(f.cats))
	copy(out, f.cats)
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayOrder < out[j].DisplayOrder })
	return out, nil
}

func (f *fakeTraitStore) InsertCategories(ctx context.Context, cats []domain.TraitCategory) error {
	for _, c := range cats {
		exists := false
		for _, have := range f.cats {
			if have.Name == c.Name {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		f.nextCat++
		c.ID = f.nextCat
		f.cats = append(f.cats, c)
	}
	return nil
}

// fakeTokenStore is an in-memory domain.TokenStore.
type fakeTokenStore struct {
	rows map[string]domain.Token
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{rows: make(map[string]domain.Token)}
}

func tokenKey(ticker string, tokenID int64) string {
	return fmt.Sprintf("%s/%d", ticker, tokenID)
}

func (f *fakeTokenStore) Get(ctx context.Context, ticker string, tokenID int64) (domain.Token, error) {
	t, ok := f.rows[tokenKey(ticker, tokenID)]
	if !ok {
		return domain.Token{}, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTokenStore) Insert(ctx context.Context, t domain.Token) error {
	key := tokenKey(t.Ticker, t.TokenID)
	if _, ok := f.rows[key]; ok {
		return nil
	}
	f.rows[key] = t
	return nil
}

func (f *fakeTokenStore) MarkTraitsSynced(ctx context.Context, ticker string, tokenID int64, hasTraits bool, at time.Time) error {
	key := tokenKey(ticker, tokenID)
	t, ok := f.rows[key]
	if !ok {
		return domain.ErrNotFound
	}
	t.TraitsSyncedAt = &at
	t.HasTraits = hasTraits
	f.rows[key] = t
	return nil
}

// fakeOwnerStore is an in-memory domain.OwnerStore.
type fakeOwnerStore struct {
	owners map[string]domain.Owner
	stats  map[string]domain.CollectionStats
}

func newFakeOwnerStore() *fakeOwnerStore {
	return &fakeOwnerStore{
		owners: make(map[string]domain.Owner),
		stats:  make(map[string]domain.CollectionStats),
	}
}

func (f *fakeOwnerStore) Upsert(ctx context.Context, o domain.Owner) error {
	f.owners[o.Ticker+"/"+o.Address] = o
	return nil
}

func (f *fakeOwnerStore) UpsertStats(ctx context.Context, s domain.CollectionStats) error {
	f.stats[s.Ticker] = s
	return nil
}

// fastRetry keeps test retries quick.
func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, GrowthFactor: 2, MaxDelay: time.Millisecond}
}

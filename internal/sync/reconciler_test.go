package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftvista/nftvista/internal/domain"
)

const testTicker = "apes"

func apiListing(orderID string, tokenID int64, price float64) domain.Listing {
	return domain.Listing{
		ExternalOrderID: orderID,
		Ticker:          testTicker,
		TokenID:         tokenID,
		TotalPrice:      price,
		SellerAddress:   "0xabc",
		Source:          domain.ListingSourceAPI,
		Status:          domain.StatusActive,
	}
}

func newTestReconciler(source *fakeSource, listings *fakeListingStore) *Reconciler {
	return NewReconciler(source, listings, &fakeActorStore{}, nil,
		ReconcilerConfig{PageSize: 50, Retry: fastRetry()}, testLogger())
}

func TestReconcileAddUpdateRemove(t *testing.T) {
	listings := newFakeListingStore()
	listings.seed(apiListing("A", 1, 10))
	listings.seed(apiListing("B", 2, 20))
	stale := listings.seed(apiListing("C", 3, 30))

	source := &fakeSource{orders: []domain.Listing{
		apiListing("A", 1, 10), // unchanged
		apiListing("B", 2, 25), // price changed
		apiListing("D", 4, 40), // new
	}}

	m := NewRunMetrics("listings", testTicker)
	report, err := newTestReconciler(source, listings).Run(context.Background(), testTicker, m)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added.Succeeded)
	assert.Equal(t, 1, report.Updated.Succeeded)
	assert.Equal(t, 1, report.Removed.Succeeded)
	assert.Equal(t, CorrelateByOrderID, report.Policy)

	// B was updated in place.
	b, ok := listings.byOrderID("B")
	require.True(t, ok)
	assert.Equal(t, 25.0, b.TotalPrice)
	assert.Equal(t, domain.StatusActive, b.Status)

	// C was soft removed under the system actor.
	c := listings.rows[stale.ID]
	assert.Equal(t, domain.StatusAPISyncRemoved, c.Status)
	require.NotNil(t, c.DeactivatedBy)
	assert.Equal(t, int64(99), *c.DeactivatedBy)
	assert.NotNil(t, c.DeactivatedAt)

	// D exists and is active.
	d, ok := listings.byOrderID("D")
	require.True(t, ok)
	assert.Equal(t, domain.StatusActive, d.Status)

	active, _ := listings.ListActive(context.Background(), testTicker)
	assert.Len(t, active, 3)
	assert.Equal(t, int64(3), report.FinalActive)
	assert.Equal(t, int64(0), report.Discrepancy)
}

func TestReconcileIdempotent(t *testing.T) {
	listings := newFakeListingStore()
	source := &fakeSource{orders: []domain.Listing{
		apiListing("A", 1, 10),
		apiListing("B", 2, 20),
	}}
	r := newTestReconciler(source, listings)

	_, err := r.Run(context.Background(), testTicker, NewRunMetrics("listings", testTicker))
	require.NoError(t, err)

	report, err := r.Run(context.Background(), testTicker, NewRunMetrics("listings", testTicker))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Added.Total())
	assert.Equal(t, 0, report.Updated.Total())
	assert.Equal(t, 0, report.Removed.Total())
}

// A token relisted under a new order id is a removal plus a fresh row under
// this engine's correlation; the old row survives as history. The old row
// must be deactivated before the new one is inserted, so the whole swap
// lands in a single run despite the one-active-per-token constraint.
func TestReconcileRelistIsRemovePlusAdd(t *testing.T) {
	listings := newFakeListingStore()
	old := listings.seed(apiListing("X", 42, 100))

	source := &fakeSource{orders: []domain.Listing{
		apiListing("Y", 42, 120),
	}}

	m := NewRunMetrics("listings", testTicker)
	report, err := newTestReconciler(source, listings).
		Run(context.Background(), testTicker, m)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added.Succeeded)
	assert.Equal(t, 0, report.Added.Failed, "replacement row must land in the same run")
	assert.Equal(t, 1, report.Removed.Succeeded)
	assert.Equal(t, 0, report.Updated.Total())
	assert.Equal(t, 0, m.ItemErrors)

	oldRow := listings.rows[old.ID]
	assert.Equal(t, domain.StatusAPISyncRemoved, oldRow.Status)
	assert.Equal(t, 100.0, oldRow.TotalPrice, "deactivated row keeps its final field values")

	newRow, ok := listings.byOrderID("Y")
	require.True(t, ok)
	assert.Equal(t, domain.StatusActive, newRow.Status)
	assert.Equal(t, 120.0, newRow.TotalPrice)
	assert.NotEqual(t, old.ID, newRow.ID)
}

func TestReconcileManualListingUntouched(t *testing.T) {
	listings := newFakeListingStore()
	manual := listings.seed(domain.Listing{
		ExternalOrderID: "MANUAL-1",
		Ticker:          testTicker,
		TokenID:         7,
		TotalPrice:      999,
		Source:          domain.ListingSourceManual,
		Status:          domain.StatusActive,
	})

	source := &fakeSource{orders: []domain.Listing{}}

	report, err := newTestReconciler(source, listings).
		Run(context.Background(), testTicker, NewRunMetrics("listings", testTicker))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Removed.Total())
	assert.Equal(t, domain.StatusActive, listings.rows[manual.ID].Status)
}

func TestReconcilePartialFailureContinues(t *testing.T) {
	listings := newFakeListingStore()
	listings.insertErr = map[string]error{"B": errors.New("disk full")}

	source := &fakeSource{orders: []domain.Listing{
		apiListing("A", 1, 10),
		apiListing("B", 2, 20),
		apiListing("C", 3, 30),
	}}

	m := NewRunMetrics("listings", testTicker)
	report, err := newTestReconciler(source, listings).Run(context.Background(), testTicker, m)
	require.NoError(t, err, "item failures must not fail the run")

	assert.Equal(t, 2, report.Added.Succeeded)
	assert.Equal(t, 1, report.Added.Failed)
	assert.Len(t, report.Added.Errors, 1)
	assert.Equal(t, 1, m.ItemErrors)
	assert.Equal(t, 2, m.Inserts)

	_, okA := listings.byOrderID("A")
	_, okC := listings.byOrderID("C")
	assert.True(t, okA)
	assert.True(t, okC)
}

func TestReconcilePagesThroughOrderBook(t *testing.T) {
	var orders []domain.Listing
	for i := 1; i <= 120; i++ {
		orders = append(orders, apiListing(fmt.Sprintf("O-%03d", i), int64(i), float64(i)))
	}
	source := &fakeSource{orders: orders}
	listings := newFakeListingStore()

	r := NewReconciler(source, listings, &fakeActorStore{}, nil,
		ReconcilerConfig{PageSize: 50, InsertBatchSize: 25, Retry: fastRetry()}, testLogger())

	m := NewRunMetrics("listings", testTicker)
	report, err := r.Run(context.Background(), testTicker, m)
	require.NoError(t, err)

	// 120 orders at page size 50: two full pages plus the short final page.
	assert.Equal(t, 3, source.listCalls)
	assert.Equal(t, 120, report.RemoteTotal)
	assert.Equal(t, 120, report.Added.Succeeded)

	success, failed := m.APICalls()
	assert.Equal(t, 3, success)
	assert.Equal(t, 0, failed)
}

func TestReconcileFetchFailureAborts(t *testing.T) {
	listings := newFakeListingStore()
	listings.seed(apiListing("A", 1, 10))
	source := &fakeSource{listErr: domain.ErrServerError}

	_, err := newTestReconciler(source, listings).
		Run(context.Background(), testTicker, NewRunMetrics("listings", testTicker))
	require.Error(t, err)

	// Nothing was applied: the local row is untouched.
	active, _ := listings.ListActive(context.Background(), testTicker)
	assert.Len(t, active, 1)
	assert.Equal(t, domain.StatusActive, active[0].Status)
}

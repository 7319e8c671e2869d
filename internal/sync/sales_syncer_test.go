package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftvista/nftvista/internal/domain"
)

func sale(externalID string, tokenID int64, price float64) domain.SalesRecord {
	return domain.SalesRecord{
		ExternalID: externalID,
		Ticker:     testTicker,
		TokenID:    tokenID,
		SalePrice:  price,
		SaleDate:   time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newTestSalesSyncer(source *fakeSource, sales *fakeSalesStore) *SalesSyncer {
	return NewSalesSyncer(source, sales,
		SalesSyncerConfig{PageSize: 50, Retry: fastRetry()}, testLogger())
}

func TestSalesAppendsOnlyMissing(t *testing.T) {
	sales := newFakeSalesStore()
	sales.rows["S1"] = sale("S1", 42, 10)

	source := &fakeSource{salesByToken: map[int64][]domain.SalesRecord{
		42: {sale("S1", 42, 10), sale("S2", 42, 12), sale("S3", 42, 15)},
	}}

	m := NewRunMetrics("sales", testTicker)
	inserted, err := newTestSalesSyncer(source, sales).
		SyncToken(context.Background(), testTicker, 42, m)
	require.NoError(t, err)

	assert.Equal(t, 2, inserted)
	assert.Len(t, sales.rows, 3)
	assert.Equal(t, 2, m.Inserts)

	// The pre-existing row was never rewritten.
	assert.Equal(t, 10.0, sales.rows["S1"].SalePrice)

	// One count probe plus one history page.
	assert.Equal(t, 2, source.historyCalls)
}

func TestSalesCountParitySkipsFetch(t *testing.T) {
	sales := newFakeSalesStore()
	sales.rows["S1"] = sale("S1", 42, 10)
	sales.rows["S2"] = sale("S2", 42, 12)

	source := &fakeSource{salesByToken: map[int64][]domain.SalesRecord{
		42: {sale("S1", 42, 10), sale("S2", 42, 12)},
	}}

	inserted, err := newTestSalesSyncer(source, sales).
		SyncToken(context.Background(), testTicker, 42, NewRunMetrics("sales", testTicker))
	require.NoError(t, err)

	assert.Equal(t, 0, inserted)
	assert.Equal(t, 0, sales.idsCalls, "matching counts skip the id scan")

	// The count probe is a one-row fetch and the only source call made.
	require.Equal(t, 1, source.historyCalls)
	assert.Equal(t, []int{1}, source.historyLimits)
}

// A concurrent writer inserting the same sale between the id scan and our
// insert is not an error; the row exists, which is what we wanted.
func TestSalesDuplicateRaceCountsAsDeduped(t *testing.T) {
	sales := newFakeSalesStore()
	sales.insertErr = map[string]error{"S2": domain.ErrDuplicate}

	source := &fakeSource{salesByToken: map[int64][]domain.SalesRecord{
		42: {sale("S1", 42, 10), sale("S2", 42, 12)},
	}}

	m := NewRunMetrics("sales", testTicker)
	inserted, err := newTestSalesSyncer(source, sales).
		SyncToken(context.Background(), testTicker, 42, m)
	require.NoError(t, err)

	assert.Equal(t, 1, inserted)
	assert.Equal(t, 1, m.Deduped)
	assert.Equal(t, 0, m.ItemErrors)
}

func TestSalesRangeSummary(t *testing.T) {
	sales := newFakeSalesStore()
	source := &fakeSource{salesByToken: map[int64][]domain.SalesRecord{
		1: {sale("A1", 1, 5)},
		3: {sale("C1", 3, 7), sale("C2", 3, 8)},
	}}

	m := NewRunMetrics("sales", testTicker)
	report, err := newTestSalesSyncer(source, sales).
		SyncRange(context.Background(), testTicker, 1, 3, m)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TokensChecked)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 0, report.Errors)
	assert.Len(t, sales.rows, 3)
}

func TestSalesNoHistory(t *testing.T) {
	inserted, err := newTestSalesSyncer(&fakeSource{}, newFakeSalesStore()).
		SyncToken(context.Background(), testTicker, 5, NewRunMetrics("sales", testTicker))
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

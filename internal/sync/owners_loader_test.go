package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftvista/nftvista/internal/domain"
)

func TestOwnersLoadUpsertsHoldersAndStats(t *testing.T) {
	owners := newFakeOwnerStore()
	source := &fakeSource{owners: domain.OwnerSnapshot{
		Holders: []domain.Owner{
			{Ticker: testTicker, Address: "0xaaa", TokenCount: 3},
			{Ticker: testTicker, Address: "0xbbb", TokenCount: 1},
		},
		TotalHolders: 2,
		TotalMinted:  10000,
	}}

	loader := NewOwnersLoader(source, owners,
		OwnersLoaderConfig{Retry: fastRetry()}, testLogger())

	m := NewRunMetrics("owners", testTicker)
	report, err := loader.Load(context.Background(), testTicker, m)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Upserted)
	assert.Equal(t, 0, report.Errors)
	assert.Len(t, owners.owners, 2)

	holder := owners.owners[testTicker+"/0xaaa"]
	assert.Equal(t, 3, holder.TokenCount)
	assert.False(t, holder.UpdatedAt.IsZero())

	stats := owners.stats[testTicker]
	assert.Equal(t, 2, stats.TotalHolders)
	assert.Equal(t, 10000, stats.TotalMinted)
}

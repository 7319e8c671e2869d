package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftvista/nftvista/internal/domain"
)

func newTestTraitLoader(source *fakeSource, traits *fakeTraitStore, tokens *fakeTokenStore) *TraitLoader {
	return NewTraitLoader(source, traits, tokens,
		TraitLoaderConfig{Retry: fastRetry()}, testLogger())
}

func payload(tokenID int64, attrs ...domain.TraitAttribute) *domain.TraitPayload {
	return &domain.TraitPayload{TokenID: tokenID, Attributes: attrs}
}

func TestTraitLoadStoresRowsAndStampsToken(t *testing.T) {
	traits := &fakeTraitStore{}
	tokens := newFakeTokenStore()
	source := &fakeSource{traits: map[int64]*domain.TraitPayload{
		1: payload(1,
			domain.TraitAttribute{Name: "Background", Value: "Blue", Rarity: 0.12},
			domain.TraitAttribute{Name: "Eyes", Value: "Laser", Rarity: 0.02},
		),
	}}

	m := NewRunMetrics("traits", testTicker)
	err := newTestTraitLoader(source, traits, tokens).
		LoadToken(context.Background(), testTicker, 1, m)
	require.NoError(t, err)

	require.Len(t, traits.records, 2)
	assert.Equal(t, "background", traits.records[0].TraitName)
	assert.Equal(t, "Blue", traits.records[0].TraitValue)
	assert.NotZero(t, traits.records[0].CategoryID)
	assert.Equal(t, 2, m.Inserts)

	tok, err := tokens.Get(context.Background(), testTicker, 1)
	require.NoError(t, err)
	assert.True(t, tok.HasTraits)
	assert.NotNil(t, tok.TraitsSyncedAt)
}

// Traits are immutable; a token already answered is never fetched again.
func TestTraitLoadIsWriteOnce(t *testing.T) {
	traits := &fakeTraitStore{}
	tokens := newFakeTokenStore()
	synced := time.Now()
	tokens.rows[tokenKey(testTicker, 1)] = domain.Token{
		Ticker:         testTicker,
		TokenID:        1,
		TraitsSyncedAt: &synced,
		HasTraits:      true,
	}

	source := &fakeSource{traits: map[int64]*domain.TraitPayload{
		1: payload(1, domain.TraitAttribute{Name: "Background", Value: "Red"}),
	}}

	err := newTestTraitLoader(source, traits, tokens).
		LoadToken(context.Background(), testTicker, 1, NewRunMetrics("traits", testTicker))
	require.NoError(t, err)

	assert.Equal(t, 0, source.traitCalls)
	assert.Empty(t, traits.records)
}

func TestTraitLoadNoDataIsFinal(t *testing.T) {
	traits := &fakeTraitStore{}
	tokens := newFakeTokenStore()
	source := &fakeSource{} // no payload for any token

	loader := newTestTraitLoader(source, traits, tokens)
	err := loader.LoadToken(context.Background(), testTicker, 5, NewRunMetrics("traits", testTicker))
	require.NoError(t, err)

	tok, err := tokens.Get(context.Background(), testTicker, 5)
	require.NoError(t, err)
	assert.False(t, tok.HasTraits)
	require.NotNil(t, tok.TraitsSyncedAt, "a definitive no-data answer is recorded")

	// The second attempt does not ask the source again.
	err = loader.LoadToken(context.Background(), testTicker, 5, NewRunMetrics("traits", testTicker))
	require.NoError(t, err)
	assert.Equal(t, 1, source.traitCalls)
}

func TestTraitCategoriesAssignedInDiscoveryOrder(t *testing.T) {
	traits := &fakeTraitStore{}
	tokens := newFakeTokenStore()
	source := &fakeSource{traits: map[int64]*domain.TraitPayload{
		1: payload(1,
			domain.TraitAttribute{Name: "Background", Value: "Blue"},
			domain.TraitAttribute{Name: "Eyes", Value: "Laser"},
		),
		2: payload(2,
			// Same category under different casing plus one new category.
			domain.TraitAttribute{Name: "background", Value: "Red"},
			domain.TraitAttribute{Name: "Hat", Value: "Crown"},
		),
	}}

	m := NewRunMetrics("traits", testTicker)
	report, err := newTestTraitLoader(source, traits, tokens).
		LoadRange(context.Background(), testTicker, 1, 2, m)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Loaded)

	cats, err := traits.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 3, "case-variant names share one dictionary entry")

	assert.Equal(t, "background", cats[0].Name)
	assert.Equal(t, 0, cats[0].DisplayOrder)
	assert.Equal(t, "eyes", cats[1].Name)
	assert.Equal(t, 1, cats[1].DisplayOrder)
	assert.Equal(t, "hat", cats[2].Name)
	assert.Equal(t, 2, cats[2].DisplayOrder)

	// Both tokens' background rows reference the same category.
	var bgIDs []int64
	for _, r := range traits.records {
		if r.TraitName == "background" {
			bgIDs = append(bgIDs, r.CategoryID)
		}
	}
	require.Len(t, bgIDs, 2)
	assert.Equal(t, bgIDs[0], bgIDs[1])
}

func TestTraitLoadRangeSkipsAnswered(t *testing.T) {
	traits := &fakeTraitStore{}
	tokens := newFakeTokenStore()
	synced := time.Now()
	tokens.rows[tokenKey(testTicker, 1)] = domain.Token{
		Ticker: testTicker, TokenID: 1, TraitsSyncedAt: &synced, HasTraits: true,
	}
	source := &fakeSource{traits: map[int64]*domain.TraitPayload{
		2: payload(2, domain.TraitAttribute{Name: "Fur", Value: "Gold"}),
	}}

	report, err := newTestTraitLoader(source, traits, tokens).
		LoadRange(context.Background(), testTicker, 1, 3, NewRunMetrics("traits", testTicker))
	require.NoError(t, err)

	assert.Equal(t, 3, report.TokensChecked)
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, report.Errors)
}

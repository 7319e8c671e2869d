package sync

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMetricsAPICalls(t *testing.T) {
	m := NewRunMetrics("listings", testTicker)
	m.RecordCall("tradeport.list_orders", nil)
	m.RecordCall("tradeport.list_orders", nil)
	m.RecordCall("tradeport.list_orders", errors.New("boom"))
	m.RecordCall("tradeport.token_traits", nil)

	success, failed := m.APICalls()
	assert.Equal(t, 3, success)
	assert.Equal(t, 1, failed)
}

func TestRunMetricsPhases(t *testing.T) {
	m := NewRunMetrics("listings", testTicker)

	m.StartPhase(PhaseFetch)
	time.Sleep(5 * time.Millisecond)
	m.EndPhase(PhaseFetch)

	assert.GreaterOrEqual(t, m.PhaseDuration(PhaseFetch), 5*time.Millisecond)
	assert.Zero(t, m.PhaseDuration(PhaseApply))

	// Phases accumulate across start/end pairs.
	m.StartPhase(PhaseFetch)
	time.Sleep(5 * time.Millisecond)
	m.EndPhase(PhaseFetch)
	assert.GreaterOrEqual(t, m.PhaseDuration(PhaseFetch), 10*time.Millisecond)

	// Ending a phase that was never started is a no-op.
	m.EndPhase(PhaseVerify)
	assert.Zero(t, m.PhaseDuration(PhaseVerify))
}

func TestRunMetricsFreshPerRun(t *testing.T) {
	a := NewRunMetrics("listings", testTicker)
	b := NewRunMetrics("listings", testTicker)
	require.NotEqual(t, a.RunID, b.RunID)
	assert.Zero(t, b.Inserts)
}

func TestRunMetricsLogValue(t *testing.T) {
	m := NewRunMetrics("listings", testTicker)
	m.Inserts = 3
	m.Verification = []VerificationResult{
		{Outcome: VerifyOK},
		{Outcome: VerifyOK},
		{Outcome: VerifyMismatch},
		{Outcome: VerifyMissing},
		{Outcome: VerifyError},
	}

	attrs := m.LogValue().Group()
	got := make(map[string]any, len(attrs))
	for _, a := range attrs {
		got[a.Key] = a.Value.Any()
	}

	assert.Equal(t, m.RunID, got["run_id"])
	assert.Equal(t, "listings", got["job"])
	assert.Equal(t, int64(3), got["inserts"])
	require.Contains(t, got, "verification")
}

func TestBatchResultRecord(t *testing.T) {
	var b BatchResult
	b.Record(nil)
	b.Record(nil)
	b.Record(errors.New("boom"))

	assert.Equal(t, 2, b.Succeeded)
	assert.Equal(t, 1, b.Failed)
	assert.Equal(t, 3, b.Total())
	assert.Len(t, b.Errors, 1)
}

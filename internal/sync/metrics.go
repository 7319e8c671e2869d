// Package sync contains the mirroring engine: the full order-book
// reconciler, the single-token syncer, the sales-history delta syncer, the
// write-once trait loader, the owners loader, and the post-run verification
// sampler. All remote and store I/O inside a run is sequential by design.
package sync

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Phase names the timed sections of a run.
type Phase string

const (
	PhaseFetch  Phase = "fetch"
	PhaseApply  Phase = "apply"
	PhaseVerify Phase = "verify"
)

// callCount tracks success/failure totals for one API operation.
type callCount struct {
	Success int
	Failed  int
}

// RunMetrics is the per-run counter and timer bag. A fresh value is created
// for every invocation; nothing accumulates across runs. It is not persisted
// beyond the summary log line.
type RunMetrics struct {
	RunID     string
	Job       string
	Ticker    string
	StartedAt time.Time

	Inserts    int
	Updates    int
	Removes    int
	Deduped    int
	ItemErrors int

	Verification []VerificationResult

	apiCalls   map[string]*callCount
	phaseStart map[Phase]time.Time
	phaseDur   map[Phase]time.Duration
}

// NewRunMetrics creates the metrics bag for one run.
func NewRunMetrics(job, ticker string) *RunMetrics {
	return &RunMetrics{
		RunID:      uuid.NewString(),
		Job:        job,
		Ticker:     ticker,
		StartedAt:  time.Now(),
		apiCalls:   make(map[string]*callCount),
		phaseStart: make(map[Phase]time.Time),
		phaseDur:   make(map[Phase]time.Duration),
	}
}

// StartPhase marks the beginning of a named phase.
func (m *RunMetrics) StartPhase(p Phase) {
	m.phaseStart[p] = time.Now()
}

// EndPhase records the duration of a named phase.
func (m *RunMetrics) EndPhase(p Phase) {
	if start, ok := m.phaseStart[p]; ok {
		m.phaseDur[p] += time.Since(start)
		delete(m.phaseStart, p)
	}
}

// PhaseDuration returns the accumulated duration of a phase.
func (m *RunMetrics) PhaseDuration(p Phase) time.Duration {
	return m.phaseDur[p]
}

// RecordCall counts one API call outcome for the named operation.
func (m *RunMetrics) RecordCall(op string, err error) {
	c, ok := m.apiCalls[op]
	if !ok {
		c = &callCount{}
		m.apiCalls[op] = c
	}
	if err != nil {
		c.Failed++
	} else {
		c.Success++
	}
}

// APICalls returns total successful and failed call counts across all
// operations.
func (m *RunMetrics) APICalls() (success, failed int) {
	for _, c := range m.apiCalls {
		success += c.Success
		failed += c.Failed
	}
	return success, failed
}

// Duration returns the wall time since the run started.
func (m *RunMetrics) Duration() time.Duration {
	return time.Since(m.StartedAt)
}

// LogValue renders the run summary as a single structured group. Every run
// emits exactly one of these regardless of outcome.
func (m *RunMetrics) LogValue() slog.Value {
	apiSuccess, apiFailed := m.APICalls()

	phases := make([]slog.Attr, 0, len(m.phaseDur))
	for p, d := range m.phaseDur {
		phases = append(phases, slog.Duration(string(p), d))
	}

	verified, mismatched, missing, failed := 0, 0, 0, 0
	for _, v := range m.Verification {
		switch v.Outcome {
		case VerifyOK:
			verified++
		case VerifyMismatch:
			mismatched++
		case VerifyMissing:
			missing++
		case VerifyError:
			failed++
		}
	}

	return slog.GroupValue(
		slog.String("run_id", m.RunID),
		slog.String("job", m.Job),
		slog.String("ticker", m.Ticker),
		slog.Duration("duration", m.Duration()),
		slog.Int("inserts", m.Inserts),
		slog.Int("updates", m.Updates),
		slog.Int("removes", m.Removes),
		slog.Int("deduped", m.Deduped),
		slog.Int("item_errors", m.ItemErrors),
		slog.Int("api_success", apiSuccess),
		slog.Int("api_failed", apiFailed),
		slog.Attr{Key: "phases", Value: slog.GroupValue(phases...)},
		slog.Group("verification",
			slog.Int("verified", verified),
			slog.Int("data_mismatch", mismatched),
			slog.Int("missing_from_source", missing),
			slog.Int("verification_error", failed),
		),
	)
}

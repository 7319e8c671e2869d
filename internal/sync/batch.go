package sync

import (
	"context"
	"time"
)

// BatchResult reports the outcome of one best-effort apply step. A failed
// item is counted and kept in Errors, and the step continues with the next
// item; partial application is an expected outcome, not a correctness
// violation.
type BatchResult struct {
	Succeeded int
	Failed    int
	Errors    []error
}

// Record counts one item outcome.
func (b *BatchResult) Record(err error) {
	if err != nil {
		b.Failed++
		b.Errors = append(b.Errors, err)
		return
	}
	b.Succeeded++
}

// Total returns the number of items attempted.
func (b *BatchResult) Total() int {
	return b.Succeeded + b.Failed
}

// sleep waits for d or until the context is cancelled, whichever comes
// first. A non-positive d only checks for cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

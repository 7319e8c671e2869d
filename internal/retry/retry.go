// Package retry provides the single retry-with-backoff wrapper used for every
// remote call in the application, both against the marketplace API and the
// store. No other component implements its own retry loop.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config holds the backoff schedule for a wrapped operation.
type Config struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	GrowthFactor float64
	MaxDelay     time.Duration
}

// DefaultConfig matches the schedule used across the sync engine: up to three
// attempts, 500ms base, doubling, capped at 10s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		GrowthFactor: 2.0,
		MaxDelay:     10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = d.BaseDelay
	}
	if c.GrowthFactor < 1 {
		c.GrowthFactor = d.GrowthFactor
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	return c
}

// Delay returns the sleep before retrying after the given 1-based attempt:
// min(base * growth^(attempt-1), max).
func (c Config) Delay(attempt int) time.Duration {
	d := float64(c.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= c.GrowthFactor
	}
	if d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// Policy classifies errors as retryable or fatal.
type Policy interface {
	Retryable(err error) bool
}

// Error wraps the final error of an exhausted or fatally-failed operation
// together with the number of attempts that were made.
type Error struct {
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Do executes fn, retrying on errors the policy classifies as retryable with
// bounded exponential backoff. Fatal errors and exhausted retries are wrapped
// in *Error with the attempt count attached. The backoff sleep is
// context-aware; cancellation during a sleep surfaces immediately.
func Do[T any](ctx context.Context, cfg Config, p Policy, op string, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	var zero T
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !p.Retryable(err) {
			return zero, &Error{Op: op, Attempts: attempt, Err: err}
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, &Error{Op: op, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(cfg.Delay(attempt)):
		}
	}

	return zero, &Error{Op: op, Attempts: cfg.MaxAttempts, Err: lastErr}
}

// Exec wraps an operation with no return value.
func Exec(ctx context.Context, cfg Config, p Policy, op string, fn func(context.Context) error) error {
	_, err := Do(ctx, cfg, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

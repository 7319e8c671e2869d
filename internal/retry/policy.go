package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nftvista/nftvista/internal/domain"
)

// DefaultPolicy is the shared error classification injected into Do at every
// call site.
//
// Retryable: network-level failures (reset/refused/timeout, DNS), rate
// limits, server-side 5xx, and Postgres connection-class failures. Fatal:
// auth failures, malformed requests, missing resources, and constraint
// violations.
type DefaultPolicy struct{}

func (DefaultPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrDuplicate):
		return false
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrServerError):
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgRetryable(pgErr.Code)
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return false
}

// pgRetryable classifies Postgres SQLSTATE codes. Integrity violations
// (class 23) are never retried; connection failures (class 08), admin
// shutdowns, and resource exhaustion are transient.
func pgRetryable(code string) bool {
	if strings.HasPrefix(code, "23") {
		return false
	}
	if strings.HasPrefix(code, "08") {
		return true
	}
	switch code {
	case "57P01", "57P02", "57P03", // admin/crash shutdown, cannot connect now
		"53300", // too many connections
		"40001", "40P01": // serialization failure, deadlock
		return true
	}
	return false
}

package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nftvista/nftvista/internal/domain"
)

// uniqueViolation is the SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// mapPgError wraps unique-constraint violations with domain.ErrDuplicate so
// callers can treat concurrent-insert races as success. Other errors pass
// through unchanged for the retry policy to classify.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %v", domain.ErrDuplicate, err)
	}
	return err
}

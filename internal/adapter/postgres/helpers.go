package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/Warden/internal/domain"
)

// storeErr maps a pgx error onto the domain error taxonomy: missing rows
// become ErrNotFound, unique violations become ErrConflict, and timeouts
// or connection failures become the retryable ErrUnavailable.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, domain.ErrUnavailable)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505": // unique_violation
			return fmt.Errorf("%s: %w", op, domain.ErrConflict)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08": // connection_exception
			return fmt.Errorf("%s: %w", op, domain.ErrUnavailable)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

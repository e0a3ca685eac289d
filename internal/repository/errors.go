package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/emberloaf/loyalty/internal/ledger"
	"github.com/emberloaf/loyalty/internal/services"
)

const (
	orderRefIndex     = "loyalty_transactions_order_uidx"
	redemptionCodeKey = "reward_redemptions_code_key"
)

// classify maps a pgx error onto the service error taxonomy. notFound is
// returned for pgx.ErrNoRows; pass nil where no row is not an error case.
func classify(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if notFound != nil {
			return notFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, ledger.ErrInsufficientPoints) {
		return services.ErrInsufficientPoints
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%s: %w (%s)", op, services.ErrConcurrencyConflict, pgErr.Code)
		case "22003":
			return fmt.Errorf("%s: %w", op, services.ErrPointsOutOfRange)
		case "23505":
			switch pgErr.ConstraintName {
			case orderRefIndex:
				return services.ErrDuplicateOrder
			case redemptionCodeKey:
				return fmt.Errorf("%s: %w (code collision)", op, services.ErrConcurrencyConflict)
			}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return &services.BackendError{Op: op, Err: err, Retryable: pgconn.SafeToRetry(err)}
}

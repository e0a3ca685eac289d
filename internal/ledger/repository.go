// Package ledger persists loyalty_transactions in Postgres and keeps the
// account counters in step with them.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberloaf/loyalty/internal/models"
)

// ErrInsufficientPoints is returned by Append when the conditional balance
// update matched no row.
var ErrInsufficientPoints = errors.New("insufficient points")

const entryColumns = `id, account_id, points_change, transaction_type, description, order_reference, created_by, redemption_id, balance_after, created_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append runs inside the caller's transaction. It:
// a) Applies the delta to loyalty_accounts only if the result stays >= 0
// b) Bumps lifetime_points for positive earned/bonus entries
// c) Inserts the entry with the resulting balance
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	var lifetimeDelta int64
	if models.CountsTowardLifetime(e.Kind, e.Delta) {
		lifetimeDelta = e.Delta
	}
	err := tx.QueryRow(ctx, `
		UPDATE loyalty_accounts
		SET points = points + $1, lifetime_points = lifetime_points + $2, updated_at = now()
		WHERE id = $3 AND points + $1 >= 0
		RETURNING points
	`, e.Delta, lifetimeDelta, e.AccountID).Scan(&e.BalanceAfter)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInsufficientPoints
	}
	if err != nil {
		return err
	}
	return tx.QueryRow(ctx, `
		INSERT INTO loyalty_transactions (id, account_id, points_change, transaction_type, description, order_reference, created_by, redemption_id, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, e.ID, e.AccountID, e.Delta, e.Kind, e.Description, e.OrderReference, e.CreatedBy, e.RedemptionID, e.BalanceAfter).Scan(&e.CreatedAt)
}

// Sum recomputes current and lifetime balances from the entries.
func (r *Repository) Sum(ctx context.Context, accountID uuid.UUID) (current, lifetime int64, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(points_change), 0),
		       COALESCE(SUM(points_change) FILTER (WHERE points_change > 0 AND transaction_type IN ('earned', 'bonus')), 0)
		FROM loyalty_transactions WHERE account_id = $1
	`, accountID).Scan(&current, &lifetime)
	return current, lifetime, err
}

// List returns the newest entries first.
func (r *Repository) List(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM loyalty_transactions WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Delta, &e.Kind, &e.Description, &e.OrderReference, &e.CreatedBy, &e.RedemptionID, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// HasOrder reports whether an earned entry already carries orderRef.
func (r *Repository) HasOrder(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, orderRef string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM loyalty_transactions
			WHERE account_id = $1 AND order_reference = $2 AND transaction_type = 'earned'
		)
	`, accountID, orderRef).Scan(&exists)
	return exists, err
}

func (r *Repository) CountSince(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, kind string, since time.Time) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM loyalty_transactions
		WHERE account_id = $1 AND transaction_type = $2 AND created_at >= $3
	`, accountID, kind, since).Scan(&n)
	return n, err
}

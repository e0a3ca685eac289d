package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberloaf/loyalty/internal/models"
)

const accountColumns = `id, user_id, email, display_name, points, lifetime_points, created_at, updated_at`

type AccountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.UserID, &a.Email, &a.DisplayName, &a.Points, &a.LifetimePoints, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a with zero balances unless the user already has an account,
// in which case the existing row is loaded into a.
func (r *AccountRepo) Create(ctx context.Context, a *models.Account) (bool, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO loyalty_accounts (id, user_id, email, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+accountColumns, a.ID, a.UserID, a.Email, a.DisplayName)
	created, err := scanAccount(row)
	if err == nil {
		*a = *created
		return true, nil
	}
	if err != pgx.ErrNoRows {
		return false, err
	}
	existing, err := r.GetByUserID(ctx, a.UserID)
	if err != nil {
		return false, err
	}
	*a = *existing
	return false, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM loyalty_accounts WHERE id = $1`, id))
}

func (r *AccountRepo) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM loyalty_accounts WHERE user_id = $1`, userID))
}

// GetByIDForUpdate locks the account row until tx ends.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error) {
	return scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM loyalty_accounts WHERE id = $1 FOR UPDATE`, id))
}

package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberloaf/loyalty/internal/models"
)

// reward_name and points_spent are snapshots taken at redemption time.
const redemptionSelect = `
	SELECT rr.id, rr.account_id, rr.reward_id, rr.reward_name, rr.points_spent, rr.redemption_code,
	       rr.status, rr.expires_at, rr.redeemed_at, rr.used_at
	FROM reward_redemptions rr`

type RedemptionRepo struct {
	pool *pgxpool.Pool
}

func NewRedemptionRepo(pool *pgxpool.Pool) *RedemptionRepo {
	return &RedemptionRepo{pool: pool}
}

func scanRedemption(row pgx.Row) (*models.Redemption, error) {
	var rd models.Redemption
	if err := row.Scan(&rd.ID, &rd.AccountID, &rd.RewardID, &rd.RewardName, &rd.PointsSpent, &rd.Code,
		&rd.Status, &rd.ExpiresAt, &rd.RedeemedAt, &rd.UsedAt); err != nil {
		return nil, err
	}
	return &rd, nil
}

// CreateTx inserts a redemption inside the given transaction.
func (r *RedemptionRepo) CreateTx(ctx context.Context, tx pgx.Tx, rd *models.Redemption) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO reward_redemptions (id, account_id, reward_id, reward_name, points_spent, redemption_code, status, expires_at, redeemed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rd.ID, rd.AccountID, rd.RewardID, rd.RewardName, rd.PointsSpent, rd.Code, rd.Status, rd.ExpiresAt, rd.RedeemedAt)
	return err
}

func (r *RedemptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Redemption, error) {
	return scanRedemption(r.pool.QueryRow(ctx, redemptionSelect+` WHERE rr.id = $1`, id))
}

func (r *RedemptionRepo) GetByCode(ctx context.Context, code string) (*models.Redemption, error) {
	return scanRedemption(r.pool.QueryRow(ctx, redemptionSelect+` WHERE rr.redemption_code = $1`, code))
}

// GetByIDForUpdate locks the redemption row until tx ends.
func (r *RedemptionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Redemption, error) {
	return scanRedemption(tx.QueryRow(ctx, redemptionSelect+` WHERE rr.id = $1 FOR UPDATE`, id))
}

func (r *RedemptionRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, usedAt *time.Time) error {
	_, err := tx.Exec(ctx, `UPDATE reward_redemptions SET status = $2, used_at = $3 WHERE id = $1`, id, status, usedAt)
	return err
}

// ListByAccountID returns the account's redemptions, newest first.
func (r *RedemptionRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]*models.Redemption, error) {
	rows, err := r.pool.Query(ctx, redemptionSelect+` WHERE rr.account_id = $1 ORDER BY rr.redeemed_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Redemption{}
	for rows.Next() {
		rd, err := scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rd)
	}
	return list, rows.Err()
}

// ExpireDue flips every active redemption past its expiry to expired.
func (r *RedemptionRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reward_redemptions SET status = 'expired'
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

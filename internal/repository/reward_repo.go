package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberloaf/loyalty/internal/models"
)

const rewardColumns = `id, name, description, points_required, reward_type, is_active, image_url, terms, created_at, updated_at`

type RewardRepo struct {
	pool *pgxpool.Pool
}

func NewRewardRepo(pool *pgxpool.Pool) *RewardRepo {
	return &RewardRepo{pool: pool}
}

func scanReward(row pgx.Row) (*models.Reward, error) {
	var rw models.Reward
	if err := row.Scan(&rw.ID, &rw.Name, &rw.Description, &rw.PointsRequired, &rw.Type, &rw.IsActive, &rw.ImageURL, &rw.Terms, &rw.CreatedAt, &rw.UpdatedAt); err != nil {
		return nil, err
	}
	return &rw, nil
}

func (r *RewardRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reward, error) {
	return scanReward(r.pool.QueryRow(ctx, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id))
}

// ListActive returns active rewards, cheapest first.
func (r *RewardRepo) ListActive(ctx context.Context) ([]*models.Reward, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+rewardColumns+`
		FROM rewards WHERE is_active = TRUE
		ORDER BY points_required, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Reward{}
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rw)
	}
	return list, rows.Err()
}

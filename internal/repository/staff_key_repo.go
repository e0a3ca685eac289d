package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberloaf/loyalty/internal/models"
)

type StaffKeyRepo struct {
	pool *pgxpool.Pool
}

func NewStaffKeyRepo(pool *pgxpool.Pool) *StaffKeyRepo {
	return &StaffKeyRepo{pool: pool}
}

func (r *StaffKeyRepo) Create(ctx context.Context, k *models.StaffKey) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO staff_keys (id, name, key_prefix, key_hash, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, k.ID, k.Name, k.KeyPrefix, k.KeyHash, k.IsActive).Scan(&k.CreatedAt)
}

// FindActiveByPrefix returns the active key with the given public prefix.
func (r *StaffKeyRepo) FindActiveByPrefix(ctx context.Context, prefix string) (*models.StaffKey, error) {
	var k models.StaffKey
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, key_prefix, key_hash, is_active, created_at
		FROM staff_keys WHERE key_prefix = $1 AND is_active = TRUE
	`, prefix).Scan(&k.ID, &k.Name, &k.KeyPrefix, &k.KeyHash, &k.IsActive, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

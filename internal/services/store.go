package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/models"
)

// Store is the persistence boundary of the loyalty core. It is passed
// explicitly to every service; there is no package-level connection.
type Store interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByUserID(ctx context.Context, userID string) (*models.Account, error)
	// CreateAccount inserts a when no account exists for a.UserID; otherwise it
	// loads the existing row into a and returns created == false.
	CreateAccount(ctx context.Context, a *models.Account) (created bool, err error)

	// SumEntries recomputes balances from the ledger.
	SumEntries(ctx context.Context, accountID uuid.UUID) (current, lifetime int64, err error)
	ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error)

	GetReward(ctx context.Context, id uuid.UUID) (*models.Reward, error)
	ListActiveRewards(ctx context.Context) ([]*models.Reward, error)

	GetRedemption(ctx context.Context, id uuid.UUID) (*models.Redemption, error)
	GetRedemptionByCode(ctx context.Context, code string) (*models.Redemption, error)
	ListRedemptions(ctx context.Context, accountID uuid.UUID) ([]*models.Redemption, error)
	// ExpireRedemptions moves every active redemption with expires_at <= now to expired.
	ExpireRedemptions(ctx context.Context, now time.Time) (int64, error)

	// WithTx runs fn atomically. All writes made through tx commit together or
	// not at all. A lost race surfaces as ErrConcurrencyConflict.
	WithTx(ctx context.Context, fn func(tx StoreTx) error) error
}

// StoreTx is the transactional write surface.
type StoreTx interface {
	// LockAccount reads the account and prevents concurrent balance changes
	// until the transaction ends (or, for optimistic stores, validates at commit).
	LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	// AppendEntry inserts e and applies it to the account's materialized
	// counters. It fails with ErrInsufficientPoints, leaving nothing written,
	// when the resulting balance would be negative. e.BalanceAfter and
	// e.CreatedAt are filled in.
	AppendEntry(ctx context.Context, e *models.LedgerEntry) error
	HasOrderEntry(ctx context.Context, accountID uuid.UUID, orderRef string) (bool, error)
	CountEntriesSince(ctx context.Context, accountID uuid.UUID, kind string, since time.Time) (int, error)

	InsertRedemption(ctx context.Context, r *models.Redemption) error
	GetRedemptionForUpdate(ctx context.Context, id uuid.UUID) (*models.Redemption, error)
	UpdateRedemptionStatus(ctx context.Context, id uuid.UUID, status string, usedAt *time.Time) error
}

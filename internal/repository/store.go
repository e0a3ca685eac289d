package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/emberloaf/loyalty/internal/ledger"
	"github.com/emberloaf/loyalty/internal/models"
	"github.com/emberloaf/loyalty/internal/services"
)

// DefaultLockTimeout bounds how long a transaction waits on a row lock.
const DefaultLockTimeout = 2 * time.Second

// Store implements services.Store on Postgres.
type Store struct {
	pool        *pgxpool.Pool
	accounts    *AccountRepo
	entries     *ledger.Repository
	rewards     *RewardRepo
	redemptions *RedemptionRepo
	lockTimeout time.Duration
}

var _ services.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:        pool,
		accounts:    NewAccountRepo(pool),
		entries:     ledger.NewRepository(pool),
		rewards:     NewRewardRepo(pool),
		redemptions: NewRedemptionRepo(pool),
		lockTimeout: DefaultLockTimeout,
	}
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	a, err := s.accounts.GetByID(ctx, id)
	return a, classify("get account", err, services.ErrAccountNotFound)
}

func (s *Store) GetAccountByUserID(ctx context.Context, userID string) (*models.Account, error) {
	a, err := s.accounts.GetByUserID(ctx, userID)
	return a, classify("get account by user", err, services.ErrAccountNotFound)
}

func (s *Store) CreateAccount(ctx context.Context, a *models.Account) (bool, error) {
	created, err := s.accounts.Create(ctx, a)
	return created, classify("create account", err, nil)
}

func (s *Store) SumEntries(ctx context.Context, accountID uuid.UUID) (int64, int64, error) {
	current, lifetime, err := s.entries.Sum(ctx, accountID)
	return current, lifetime, classify("sum entries", err, nil)
}

func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	list, err := s.entries.List(ctx, accountID, limit)
	return list, classify("list entries", err, nil)
}

func (s *Store) GetReward(ctx context.Context, id uuid.UUID) (*models.Reward, error) {
	rw, err := s.rewards.GetByID(ctx, id)
	return rw, classify("get reward", err, services.ErrRewardNotFound)
}

func (s *Store) ListActiveRewards(ctx context.Context) ([]*models.Reward, error) {
	list, err := s.rewards.ListActive(ctx)
	return list, classify("list rewards", err, nil)
}

func (s *Store) GetRedemption(ctx context.Context, id uuid.UUID) (*models.Redemption, error) {
	rd, err := s.redemptions.GetByID(ctx, id)
	return rd, classify("get redemption", err, services.ErrRedemptionNotFound)
}

func (s *Store) GetRedemptionByCode(ctx context.Context, code string) (*models.Redemption, error) {
	rd, err := s.redemptions.GetByCode(ctx, code)
	return rd, classify("get redemption by code", err, services.ErrRedemptionNotFound)
}

func (s *Store) ListRedemptions(ctx context.Context, accountID uuid.UUID) ([]*models.Redemption, error) {
	list, err := s.redemptions.ListByAccountID(ctx, accountID)
	return list, classify("list redemptions", err, nil)
}

func (s *Store) ExpireRedemptions(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.redemptions.ExpireDue(ctx, now)
	return n, classify("expire redemptions", err, nil)
}

// WithTx runs fn in a read-committed transaction with a bounded lock wait.
// Row locks taken through the StoreTx serialize writers on an account.
func (s *Store) WithTx(ctx context.Context, fn func(tx services.StoreTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify("begin", err, nil)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return classify("set lock_timeout", err, nil)
	}
	if err := fn(&pgTx{s: s, tx: tx}); err != nil {
		return err
	}
	return classify("commit", tx.Commit(ctx), nil)
}

type pgTx struct {
	s  *Store
	tx pgx.Tx
}

func (t *pgTx) LockAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	a, err := t.s.accounts.GetByIDForUpdate(ctx, t.tx, id)
	return a, classify("lock account", err, services.ErrAccountNotFound)
}

func (t *pgTx) AppendEntry(ctx context.Context, e *models.LedgerEntry) error {
	return classify("append entry", t.s.entries.Append(ctx, t.tx, e), nil)
}

func (t *pgTx) HasOrderEntry(ctx context.Context, accountID uuid.UUID, orderRef string) (bool, error) {
	ok, err := t.s.entries.HasOrder(ctx, t.tx, accountID, orderRef)
	return ok, classify("check order", err, nil)
}

func (t *pgTx) CountEntriesSince(ctx context.Context, accountID uuid.UUID, kind string, since time.Time) (int, error) {
	n, err := t.s.entries.CountSince(ctx, t.tx, accountID, kind, since)
	return n, classify("count entries", err, nil)
}

func (t *pgTx) InsertRedemption(ctx context.Context, rd *models.Redemption) error {
	return classify("insert redemption", t.s.redemptions.CreateTx(ctx, t.tx, rd), nil)
}

func (t *pgTx) GetRedemptionForUpdate(ctx context.Context, id uuid.UUID) (*models.Redemption, error) {
	rd, err := t.s.redemptions.GetByIDForUpdate(ctx, t.tx, id)
	return rd, classify("lock redemption", err, services.ErrRedemptionNotFound)
}

func (t *pgTx) UpdateRedemptionStatus(ctx context.Context, id uuid.UUID, status string, usedAt *time.Time) error {
	return classify("update redemption", t.s.redemptions.UpdateStatusTx(ctx, t.tx, id, status, usedAt), nil)
}

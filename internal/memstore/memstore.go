// Package memstore is an in-memory implementation of services.Store.
//
// Transactions are optimistic: reads record the version of every account and
// redemption they touch, writes are buffered, and commit re-validates those
// versions under the store lock. A transaction that read stale state fails
// with services.ErrConcurrencyConflict and nothing is applied.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/models"
	"github.com/emberloaf/loyalty/internal/services"
)

type Store struct {
	mu sync.RWMutex

	accounts    map[uuid.UUID]*models.Account
	accountVer  map[uuid.UUID]uint64
	byUser      map[string]uuid.UUID
	entries     []*models.LedgerEntry
	rewards     map[uuid.UUID]*models.Reward
	redemptions map[uuid.UUID]*models.Redemption
	redVer      map[uuid.UUID]uint64
	codes       map[string]uuid.UUID

	now func() time.Time

	// BeforeCommit, when set, runs after a transaction body succeeds and
	// before its reads are validated. Tests use it to interleave transactions.
	// A non-nil return aborts the commit with that error.
	BeforeCommit func() error
}

var _ services.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:    make(map[uuid.UUID]*models.Account),
		accountVer:  make(map[uuid.UUID]uint64),
		byUser:      make(map[string]uuid.UUID),
		rewards:     make(map[uuid.UUID]*models.Reward),
		redemptions: make(map[uuid.UUID]*models.Redemption),
		redVer:      make(map[uuid.UUID]uint64),
		codes:       make(map[string]uuid.UUID),
		now:         time.Now,
	}
}

// SetClock replaces the clock used for created_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// PutReward inserts or replaces a catalog entry. Catalog administration is
// not part of services.Store; this exists for tests and local seeding.
func (s *Store) PutReward(r *models.Reward) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
		r.ID = cp.ID
	}
	s.rewards[cp.ID] = &cp
}

// Entries returns every committed entry for the account in append order.
func (s *Store) Entries(accountID uuid.UUID) []*models.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LedgerEntry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

func (s *Store) GetAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, services.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetAccountByUserID(ctx context.Context, userID string) (*models.Account, error) {
	s.mu.RLock()
	id, ok := s.byUser[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, services.ErrAccountNotFound
	}
	return s.GetAccount(ctx, id)
}

func (s *Store) CreateAccount(_ context.Context, a *models.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byUser[a.UserID]; ok {
		*a = *s.accounts[id]
		return false, nil
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := s.now()
	a.Points, a.LifetimePoints = 0, 0
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	s.accounts[a.ID] = &cp
	s.byUser[a.UserID] = a.ID
	return true, nil
}

func (s *Store) SumEntries(_ context.Context, accountID uuid.UUID) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var current, lifetime int64
	for _, e := range s.entries {
		if e.AccountID != accountID {
			continue
		}
		current += e.Delta
		if models.CountsTowardLifetime(e.Kind, e.Delta) {
			lifetime += e.Delta
		}
	}
	return current, lifetime, nil
}

func (s *Store) ListEntries(_ context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.LedgerEntry{}
	for i := len(s.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if e := s.entries[i]; e.AccountID == accountID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) GetReward(_ context.Context, id uuid.UUID) (*models.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rewards[id]
	if !ok {
		return nil, services.ErrRewardNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) ListActiveRewards(_ context.Context) ([]*models.Reward, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Reward{}
	for _, r := range s.rewards {
		if r.IsActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PointsRequired != out[j].PointsRequired {
			return out[i].PointsRequired < out[j].PointsRequired
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetRedemption(_ context.Context, id uuid.UUID) (*models.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.redemptions[id]
	if !ok {
		return nil, services.ErrRedemptionNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) GetRedemptionByCode(ctx context.Context, code string) (*models.Redemption, error) {
	s.mu.RLock()
	id, ok := s.codes[code]
	s.mu.RUnlock()
	if !ok {
		return nil, services.ErrRedemptionNotFound
	}
	return s.GetRedemption(ctx, id)
}

func (s *Store) ListRedemptions(_ context.Context, accountID uuid.UUID) ([]*models.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Redemption{}
	for _, r := range s.redemptions {
		if r.AccountID == accountID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RedeemedAt.After(out[j].RedeemedAt) })
	return out, nil
}

func (s *Store) ExpireRedemptions(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.redemptions {
		if r.ExpiredAt(now) {
			r.Status = models.RedemptionExpired
			s.redVer[id]++
			n++
		}
	}
	return n, nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx services.StoreTx) error) error {
	t := &tx{
		s:           s,
		accountRead: make(map[uuid.UUID]uint64),
		accounts:    make(map[uuid.UUID]*models.Account),
		redRead:     make(map[uuid.UUID]uint64),
		redemptions: make(map[uuid.UUID]*models.Redemption),
	}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(); err != nil {
			return err
		}
	}
	return t.commit()
}

type tx struct {
	s *Store

	accountRead map[uuid.UUID]uint64
	accounts    map[uuid.UUID]*models.Account
	entries     []*models.LedgerEntry
	redRead     map[uuid.UUID]uint64
	redemptions map[uuid.UUID]*models.Redemption
	inserted    []uuid.UUID
}

func (t *tx) LockAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	if a, ok := t.accounts[id]; ok {
		cp := *a
		return &cp, nil
	}
	t.s.mu.RLock()
	a, ok := t.s.accounts[id]
	var ver uint64
	var cp models.Account
	if ok {
		cp, ver = *a, t.s.accountVer[id]
	}
	t.s.mu.RUnlock()
	if !ok {
		return nil, services.ErrAccountNotFound
	}
	t.accountRead[id] = ver
	t.accounts[id] = &cp
	out := cp
	return &out, nil
}

func (t *tx) AppendEntry(ctx context.Context, e *models.LedgerEntry) error {
	if _, err := t.LockAccount(ctx, e.AccountID); err != nil {
		return err
	}
	if e.Delta == 0 {
		return services.ErrInvalidDelta
	}
	if !models.ValidEntryKind(e.Kind) {
		return fmt.Errorf("%w: %q", services.ErrInvalidKind, e.Kind)
	}
	acc := t.accounts[e.AccountID]
	balance, ok := addPoints(acc.Points, e.Delta)
	if !ok {
		return fmt.Errorf("%w: balance %d%+d", services.ErrPointsOutOfRange, acc.Points, e.Delta)
	}
	if balance < 0 {
		return services.ErrInsufficientPoints
	}
	lifetime := acc.LifetimePoints
	if models.CountsTowardLifetime(e.Kind, e.Delta) {
		if lifetime, ok = addPoints(lifetime, e.Delta); !ok {
			return fmt.Errorf("%w: lifetime %d%+d", services.ErrPointsOutOfRange, acc.LifetimePoints, e.Delta)
		}
	}
	now := t.s.clock()
	acc.Points, acc.LifetimePoints = balance, lifetime
	acc.UpdatedAt = now
	e.BalanceAfter = balance
	e.CreatedAt = now
	cp := *e
	t.entries = append(t.entries, &cp)
	return nil
}

// addPoints is a + b, reporting false when the sum overflows int64; the
// Postgres bigint columns raise 22003 in the same case.
func addPoints(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

func (t *tx) HasOrderEntry(_ context.Context, accountID uuid.UUID, orderRef string) (bool, error) {
	match := func(e *models.LedgerEntry) bool {
		return e.AccountID == accountID && e.Kind == models.EntryEarned &&
			e.OrderReference != nil && *e.OrderReference == orderRef
	}
	for _, e := range t.entries {
		if match(e) {
			return true, nil
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	for _, e := range t.s.entries {
		if match(e) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) CountEntriesSince(_ context.Context, accountID uuid.UUID, kind string, since time.Time) (int, error) {
	count := func(list []*models.LedgerEntry) int {
		n := 0
		for _, e := range list {
			if e.AccountID == accountID && e.Kind == kind && !e.CreatedAt.Before(since) {
				n++
			}
		}
		return n
	}
	n := count(t.entries)
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	return n + count(t.s.entries), nil
}

func (t *tx) InsertRedemption(_ context.Context, r *models.Redemption) error {
	cp := *r
	t.redemptions[r.ID] = &cp
	t.inserted = append(t.inserted, r.ID)
	return nil
}

func (t *tx) GetRedemptionForUpdate(_ context.Context, id uuid.UUID) (*models.Redemption, error) {
	if r, ok := t.redemptions[id]; ok {
		cp := *r
		return &cp, nil
	}
	t.s.mu.RLock()
	r, ok := t.s.redemptions[id]
	var cp models.Redemption
	var ver uint64
	if ok {
		cp, ver = *r, t.s.redVer[id]
	}
	t.s.mu.RUnlock()
	if !ok {
		return nil, services.ErrRedemptionNotFound
	}
	t.redRead[id] = ver
	t.redemptions[id] = &cp
	out := cp
	return &out, nil
}

func (t *tx) UpdateRedemptionStatus(ctx context.Context, id uuid.UUID, status string, usedAt *time.Time) error {
	if _, err := t.GetRedemptionForUpdate(ctx, id); err != nil {
		return err
	}
	r := t.redemptions[id]
	r.Status = status
	r.UsedAt = usedAt
	return nil
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ver := range t.accountRead {
		if s.accountVer[id] != ver {
			return fmt.Errorf("account %s changed: %w", id, services.ErrConcurrencyConflict)
		}
	}
	for id, ver := range t.redRead {
		if s.redVer[id] != ver {
			return fmt.Errorf("redemption %s changed: %w", id, services.ErrConcurrencyConflict)
		}
	}
	for _, id := range t.inserted {
		if _, taken := s.codes[t.redemptions[id].Code]; taken {
			return fmt.Errorf("redemption code collision: %w", services.ErrConcurrencyConflict)
		}
	}

	for id, a := range t.accounts {
		if _, read := t.accountRead[id]; !read {
			continue
		}
		s.accounts[id] = a
		s.accountVer[id]++
	}
	s.entries = append(s.entries, t.entries...)
	for id, r := range t.redemptions {
		s.redemptions[id] = r
		s.redVer[id]++
		s.codes[r.Code] = id
	}
	return nil
}

func (s *Store) clock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

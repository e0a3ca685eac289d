package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/metrics"
	"github.com/emberloaf/loyalty/internal/models"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100

	// MaxEntryPoints bounds the magnitude of a single entry so that balances
	// stay far from int64 overflow.
	MaxEntryPoints = 1_000_000_000
)

// Ledger is the append-only points ledger. Balances are always recomputed
// from the entries; the account row counters are only a locked projection.
type Ledger struct {
	Store Store
	Retry RetryPolicy
	Now   func() time.Time
}

// NewLedger returns a Ledger with the default retry policy.
func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store, Retry: DefaultRetry, Now: time.Now}
}

// EntryOption sets optional attributes on a new entry.
type EntryOption func(*models.LedgerEntry)

// WithOrderRef attaches an external order reference.
func WithOrderRef(ref string) EntryOption {
	return func(e *models.LedgerEntry) {
		if ref != "" {
			e.OrderReference = &ref
		}
	}
}

// WithActor records who triggered the entry.
func WithActor(actor string) EntryOption {
	return func(e *models.LedgerEntry) {
		if actor != "" {
			e.CreatedBy = &actor
		}
	}
}

func newEntry(accountID uuid.UUID, delta int64, kind, description string, opts ...EntryOption) *models.LedgerEntry {
	e := &models.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Delta:       delta,
		Kind:        kind,
		Description: description,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func validateEntry(delta int64, kind string) error {
	if delta == 0 {
		return ErrInvalidDelta
	}
	if delta > MaxEntryPoints || delta < -MaxEntryPoints {
		return fmt.Errorf("%w: |%d| exceeds %d", ErrPointsOutOfRange, delta, MaxEntryPoints)
	}
	if !models.ValidEntryKind(kind) {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return nil
}

// RecordEntry appends one immutable entry. An entry that would drive the
// balance below zero is rejected with ErrInsufficientPoints before commit.
func (l *Ledger) RecordEntry(ctx context.Context, accountID uuid.UUID, delta int64, kind, description string, opts ...EntryOption) (*models.LedgerEntry, error) {
	if err := validateEntry(delta, kind); err != nil {
		return nil, err
	}
	var entry *models.LedgerEntry
	err := l.Retry.do(ctx, func() error {
		entry = newEntry(accountID, delta, kind, description, opts...)
		return l.Store.WithTx(ctx, func(tx StoreTx) error {
			if _, err := tx.LockAccount(ctx, accountID); err != nil {
				return err
			}
			return tx.AppendEntry(ctx, entry)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("record %s entry: %w", kind, err)
	}
	metrics.Loyalty().ObserveEntry(entry.Kind, entry.Delta)
	return entry, nil
}

// CurrentBalance is the sum of all entry deltas for the account.
func (l *Ledger) CurrentBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	current, _, err := l.balances(ctx, accountID)
	return current, err
}

// LifetimeBalance is the sum of positive earned and bonus deltas.
func (l *Ledger) LifetimeBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	_, lifetime, err := l.balances(ctx, accountID)
	return lifetime, err
}

func (l *Ledger) balances(ctx context.Context, accountID uuid.UUID) (int64, int64, error) {
	if _, err := l.Store.GetAccount(ctx, accountID); err != nil {
		return 0, 0, err
	}
	return l.Store.SumEntries(ctx, accountID)
}

// History returns the newest entries first. limit <= 0 means the default of 10.
func (l *Ledger) History(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if _, err := l.Store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.Store.ListEntries(ctx, accountID, limit)
}

// Verify checks the account row projection against the recomputed sums.
func (l *Ledger) Verify(ctx context.Context, accountID uuid.UUID) error {
	acc, err := l.Store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	current, lifetime, err := l.Store.SumEntries(ctx, accountID)
	if err != nil {
		return err
	}
	if acc.Points != current || acc.LifetimePoints != lifetime {
		return fmt.Errorf("%w: account %s has points=%d lifetime=%d, entries sum to %d/%d",
			ErrLedgerDrift, accountID, acc.Points, acc.LifetimePoints, current, lifetime)
	}
	return nil
}

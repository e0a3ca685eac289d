package services_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/memstore"
	"github.com/emberloaf/loyalty/internal/models"
	"github.com/emberloaf/loyalty/internal/services"
	"github.com/emberloaf/loyalty/internal/tier"
)

// ---------------------------------------------------------------------------
// Fixture: every service wired to one in-memory store and a fixed clock.
// ---------------------------------------------------------------------------

type seqCodes struct{ n atomic.Int64 }

func (c *seqCodes) NewCode() string { return fmt.Sprintf("CODE%06d", c.n.Add(1)) }

type fixture struct {
	store    *memstore.Store
	ledger   *services.Ledger
	engine   *services.RedemptionEngine
	earner   *services.Earner
	accounts *services.Accounts
	catalog  *services.Catalog
	now      time.Time
}

var fastRetry = services.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		store: memstore.New(),
		now:   time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return fx.now }
	fx.store.SetClock(clock)

	fx.ledger = services.NewLedger(fx.store)
	fx.ledger.Retry, fx.ledger.Now = fastRetry, clock

	fx.engine = services.NewRedemptionEngine(fx.store, &seqCodes{}, 24*time.Hour,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	fx.engine.Retry, fx.engine.Now = fastRetry, clock

	fx.earner = services.NewEarner(fx.store, fx.ledger, tier.Default(), services.EarnRules{})
	fx.earner.Retry, fx.earner.Now = fastRetry, clock

	fx.accounts = services.NewAccounts(fx.store, tier.Default())
	fx.accounts.Now = clock
	fx.catalog = services.NewCatalog(fx.store)
	return fx
}

func (fx *fixture) enroll(t *testing.T, userID string) uuid.UUID {
	t.Helper()
	view, _, err := fx.accounts.Enroll(context.Background(), models.Identity{UserID: userID, Email: userID + "@example.com"})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	return view.AccountID
}

func (fx *fixture) credit(t *testing.T, id uuid.UUID, points int64) {
	t.Helper()
	if _, err := fx.ledger.RecordEntry(context.Background(), id, points, models.EntryEarned, "test credit"); err != nil {
		t.Fatalf("RecordEntry(+%d): %v", points, err)
	}
}

func (fx *fixture) reward(name string, cost int64) *models.Reward {
	r := &models.Reward{Name: name, PointsRequired: cost, Type: models.RewardFreeItem, IsActive: true}
	fx.store.PutReward(r)
	return r
}

func (fx *fixture) balance(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	b, err := fx.ledger.CurrentBalance(context.Background(), id)
	if err != nil {
		t.Fatalf("CurrentBalance: %v", err)
	}
	return b
}

// assertConsistent checks that the account row projection matches the entry sum.
func (fx *fixture) assertConsistent(t *testing.T, id uuid.UUID) {
	t.Helper()
	if err := fx.ledger.Verify(context.Background(), id); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	var sum int64
	for _, e := range fx.store.Entries(id) {
		sum += e.Delta
	}
	if got := fx.balance(t, id); got != sum {
		t.Fatalf("CurrentBalance = %d, entry sum = %d", got, sum)
	}
}

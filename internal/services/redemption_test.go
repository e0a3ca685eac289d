package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/models"
	"github.com/emberloaf/loyalty/internal/services"
)

func TestRedeem_InsufficientPointsLeavesLedgerUnchanged(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 50)
	r := fx.reward("Latte", 100)

	_, err := fx.engine.Redeem(ctx, id, r.ID)
	if !errors.Is(err, services.ErrInsufficientPoints) {
		t.Fatalf("err = %v, want ErrInsufficientPoints", err)
	}
	if n := len(fx.store.Entries(id)); n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}
	reds, err := fx.engine.ListRedemptions(ctx, id)
	if err != nil {
		t.Fatalf("ListRedemptions: %v", err)
	}
	if len(reds) != 0 {
		t.Fatalf("redemptions = %d, want 0", len(reds))
	}
	if got := fx.balance(t, id); got != 50 {
		t.Fatalf("balance = %d, want 50", got)
	}
}

func TestRedeem_ExactBalanceLeavesZero(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 100)
	r := fx.reward("Croissant", 100)

	red, err := fx.engine.Redeem(ctx, id, r.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if red.Status != models.RedemptionActive {
		t.Fatalf("status = %q, want active", red.Status)
	}
	if red.ExpiresAt == nil || !red.ExpiresAt.Equal(fx.now.Add(24*time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want now+24h", red.ExpiresAt)
	}
	if got := fx.balance(t, id); got != 0 {
		t.Fatalf("balance = %d, want 0", got)
	}
	fx.assertConsistent(t, id)
}

func TestRedeem_ProducesMatchingDebitAndRecord(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 300)
	r := fx.reward("Sandwich", 120)

	red, err := fx.engine.Redeem(ctx, id, r.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	var debits []*models.LedgerEntry
	for _, e := range fx.store.Entries(id) {
		if e.Kind == models.EntryRedeemed {
			debits = append(debits, e)
		}
	}
	if len(debits) != 1 {
		t.Fatalf("redeemed entries = %d, want 1", len(debits))
	}
	d := debits[0]
	if d.AccountID != red.AccountID || red.RewardID != r.ID {
		t.Fatalf("entry/redemption reference mismatch: %+v / %+v", d, red)
	}
	if red.PointsSpent != -d.Delta {
		t.Fatalf("points_spent = %d, delta = %d", red.PointsSpent, d.Delta)
	}
	if d.RedemptionID == nil || *d.RedemptionID != red.ID {
		t.Fatalf("entry redemption id = %v, want %s", d.RedemptionID, red.ID)
	}
	if d.Description != "Redeemed: Sandwich" {
		t.Fatalf("description = %q", d.Description)
	}

	byCode, err := fx.store.GetRedemptionByCode(ctx, red.Code)
	if err != nil {
		t.Fatalf("GetRedemptionByCode: %v", err)
	}
	if byCode.ID != red.ID {
		t.Fatalf("code resolves to %s, want %s", byCode.ID, red.ID)
	}
}

func TestRedeem_PriceIsSnapshotted(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 500)
	r := fx.reward("Cake", 200)

	red, err := fx.engine.Redeem(ctx, id, r.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	r.PointsRequired = 400
	fx.store.PutReward(r)

	got, err := fx.store.GetRedemption(ctx, red.ID)
	if err != nil {
		t.Fatalf("GetRedemption: %v", err)
	}
	if got.PointsSpent != 200 {
		t.Fatalf("points_spent = %d, want 200", got.PointsSpent)
	}
}

func TestRedeem_RewardChecksComeFirst(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")

	inactive := fx.reward("Retired", 10)
	inactive.IsActive = false
	fx.store.PutReward(inactive)

	// Zero balance, yet the reward errors win.
	if _, err := fx.engine.Redeem(ctx, id, uuid.New()); !errors.Is(err, services.ErrRewardNotFound) {
		t.Fatalf("missing reward: err = %v", err)
	}
	if _, err := fx.engine.Redeem(ctx, id, inactive.ID); !errors.Is(err, services.ErrRewardNotFound) {
		t.Fatalf("inactive reward: err = %v", err)
	}
	r := fx.reward("Tea", 10)
	if _, err := fx.engine.Redeem(ctx, uuid.New(), r.ID); !errors.Is(err, services.ErrAccountNotFound) {
		t.Fatalf("missing account: err = %v", err)
	}
}

func TestRedeem_ConcurrentAttemptsNeverDoubleSpend(t *testing.T) {
	for run := 0; run < 25; run++ {
		fx := newFixture(t)
		ctx := context.Background()
		id := fx.enroll(t, "u1")
		fx.credit(t, id, 100)
		rewards := []*models.Reward{fx.reward("A", 60), fx.reward("B", 60)}

		var wg sync.WaitGroup
		errs := make([]error, len(rewards))
		start := make(chan struct{})
		for i, r := range rewards {
			wg.Add(1)
			go func(i int, rewardID uuid.UUID) {
				defer wg.Done()
				<-start
				_, errs[i] = fx.engine.Redeem(ctx, id, rewardID)
			}(i, r.ID)
		}
		close(start)
		wg.Wait()

		successes := 0
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, services.ErrInsufficientPoints), errors.Is(err, services.ErrConcurrencyConflict):
			default:
				t.Fatalf("run %d: unexpected error %v", run, err)
			}
		}
		if successes != 1 {
			t.Fatalf("run %d: successes = %d, want exactly 1", run, successes)
		}
		if got := fx.balance(t, id); got != 40 {
			t.Fatalf("run %d: balance = %d, want 40", run, got)
		}
		fx.assertConsistent(t, id)
	}
}

func TestRedeem_FailureLeavesBalanceUnchanged(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 100)
	r := fx.reward("Muffin", 40)

	fx.store.BeforeCommit = func() error {
		return &services.BackendError{Op: "commit", Err: errors.New("connection lost")}
	}
	if _, err := fx.engine.Redeem(ctx, id, r.ID); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("err = %v, want ErrBackendUnavailable", err)
	}
	fx.store.BeforeCommit = nil

	if got := fx.balance(t, id); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
	reds, _ := fx.engine.ListRedemptions(ctx, id)
	if len(reds) != 0 {
		t.Fatalf("redemptions = %d, want 0", len(reds))
	}
}

func TestScenario_EarnRedeemAcrossTiers(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	r := fx.reward("Free Meal", 500)

	view := func() *services.AccountView {
		v, err := fx.accounts.GetAccountView(ctx, id)
		if err != nil {
			t.Fatalf("GetAccountView: %v", err)
		}
		return v
	}

	// $15 order at Bronze x10.
	res, err := fx.earner.Earn(ctx, id, 1500, "order-1", "pos")
	if err != nil {
		t.Fatalf("Earn: %v", err)
	}
	if res.PointsAwarded != 150 {
		t.Fatalf("points awarded = %d, want 150", res.PointsAwarded)
	}
	if v := view(); v.CurrentPoints != 150 || v.LifetimePoints != 150 || v.Tier != "Bronze" {
		t.Fatalf("after first earn: %+v", v)
	}

	if _, err := fx.engine.Redeem(ctx, id, r.ID); !errors.Is(err, services.ErrInsufficientPoints) {
		t.Fatalf("early redeem: err = %v", err)
	}
	if v := view(); v.CurrentPoints != 150 {
		t.Fatalf("balance changed by failed redeem: %d", v.CurrentPoints)
	}

	for i := 0; i < 3; i++ {
		fx.credit(t, id, 150)
	}
	if v := view(); v.CurrentPoints != 600 || v.LifetimePoints != 600 || v.Tier != "Gold" {
		t.Fatalf("after four earns: %+v", v)
	}

	if _, err := fx.engine.Redeem(ctx, id, r.ID); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	v := view()
	if v.CurrentPoints != 100 || v.LifetimePoints != 600 || v.Tier != "Gold" {
		t.Fatalf("after redeem: %+v", v)
	}
	fx.assertConsistent(t, id)
}

// ---------------------------------------------------------------------------
// Redemption state machine
// ---------------------------------------------------------------------------

func TestMarkUsed_Transitions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 100)
	r := fx.reward("Cookie", 30)

	red, err := fx.engine.Redeem(ctx, id, r.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	used, err := fx.engine.MarkUsedByCode(ctx, red.Code)
	if err != nil {
		t.Fatalf("MarkUsedByCode: %v", err)
	}
	if used.Status != models.RedemptionUsed || used.UsedAt == nil || !used.UsedAt.Equal(fx.now) {
		t.Fatalf("used redemption = %+v", used)
	}

	if _, err := fx.engine.MarkUsed(ctx, red.ID); !errors.Is(err, services.ErrRedemptionNotActive) {
		t.Fatalf("second use: err = %v, want ErrRedemptionNotActive", err)
	}
	if _, err := fx.engine.MarkUsed(ctx, uuid.New()); !errors.Is(err, services.ErrRedemptionNotFound) {
		t.Fatalf("unknown id: err = %v", err)
	}
	if _, err := fx.engine.MarkUsedByCode(ctx, "NOPE"); !errors.Is(err, services.ErrRedemptionNotFound) {
		t.Fatalf("unknown code: err = %v", err)
	}
	if got := fx.balance(t, id); got != 70 {
		t.Fatalf("balance = %d, want 70 (use never refunds or re-debits)", got)
	}
}

func TestMarkUsed_ExpiredIsPersisted(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 100)
	r := fx.reward("Cookie", 30)

	red, err := fx.engine.Redeem(ctx, id, r.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	fx.now = fx.now.Add(25 * time.Hour)

	if _, err := fx.engine.MarkUsed(ctx, red.ID); !errors.Is(err, services.ErrRedemptionExpired) {
		t.Fatalf("err = %v, want ErrRedemptionExpired", err)
	}
	got, err := fx.store.GetRedemption(ctx, red.ID)
	if err != nil {
		t.Fatalf("GetRedemption: %v", err)
	}
	if got.Status != models.RedemptionExpired {
		t.Fatalf("status = %q, want expired", got.Status)
	}
	if _, err := fx.engine.MarkUsed(ctx, red.ID); !errors.Is(err, services.ErrRedemptionNotActive) {
		t.Fatalf("after expiry: err = %v, want ErrRedemptionNotActive", err)
	}
}

func TestExpireDue(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 100)
	r := fx.reward("Cookie", 10)

	first, err := fx.engine.Redeem(ctx, id, r.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	fx.now = fx.now.Add(12 * time.Hour)
	second, err := fx.engine.Redeem(ctx, id, r.ID)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}

	fx.now = fx.now.Add(12 * time.Hour)
	n, err := fx.engine.ExpireDue(ctx)
	if err != nil {
		t.Fatalf("ExpireDue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1 (expiry at exactly now counts)", n)
	}
	a, _ := fx.store.GetRedemption(ctx, first.ID)
	b, _ := fx.store.GetRedemption(ctx, second.ID)
	if a.Status != models.RedemptionExpired || b.Status != models.RedemptionActive {
		t.Fatalf("statuses = %q, %q", a.Status, b.Status)
	}

	reds, err := fx.engine.ListRedemptions(ctx, id)
	if err != nil {
		t.Fatalf("ListRedemptions: %v", err)
	}
	if len(reds) != 2 || reds[0].ID != second.ID {
		t.Fatalf("ListRedemptions order wrong: %+v", reds)
	}
}

func TestRedeem_RejectsNonPositiveCost(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 100)

	for _, cost := range []int64{0, -5} {
		r := fx.reward("Broken", cost)
		red, err := fx.engine.Redeem(ctx, id, r.ID)
		if !errors.Is(err, services.ErrInvalidDelta) {
			t.Fatalf("cost %d: err = %v, want ErrInvalidDelta", cost, err)
		}
		if red != nil {
			t.Fatalf("cost %d: got redemption %+v", cost, red)
		}
	}
	if n := len(fx.store.Entries(id)); n != 1 {
		t.Fatalf("entries = %d, want only the credit", n)
	}
	if got := fx.balance(t, id); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
}

func TestRedeem_RewardNameIsSnapshotted(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	id := fx.enroll(t, "u1")
	fx.credit(t, id, 100)
	r := fx.reward("Latte", 40)

	if _, err := fx.engine.Redeem(ctx, id, r.ID); err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	r.Name = "Oat Latte"
	fx.store.PutReward(r)

	reds, err := fx.engine.ListRedemptions(ctx, id)
	if err != nil {
		t.Fatalf("ListRedemptions: %v", err)
	}
	if len(reds) != 1 || reds[0].RewardName != "Latte" {
		t.Fatalf("redemptions = %+v, want name Latte kept", reds)
	}
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/metrics"
	"github.com/emberloaf/loyalty/internal/models"
	"github.com/emberloaf/loyalty/internal/tier"
)

// MaxOrderCents is the largest single order Earn accepts.
const MaxOrderCents = 100_000_000

// EarnRules configures point accrual at the point of sale.
type EarnRules struct {
	// FirstOrderBonus is credited with the first earned order of each local day. 0 disables it.
	FirstOrderBonus int64
	Location        *time.Location
}

// EarnResult describes the entries written for one order.
type EarnResult struct {
	Entries        []*models.LedgerEntry `json:"entries"`
	PointsAwarded  int64                 `json:"points_awarded"`
	Tier           string                `json:"tier"`
	EarnMultiplier int64                 `json:"earn_multiplier"`
}

// Earner credits points for purchases, bonuses and staff adjustments.
type Earner struct {
	Store  Store
	Ledger *Ledger
	Tiers  tier.Table
	Rules  EarnRules
	Retry  RetryPolicy
	Now    func() time.Time
}

func NewEarner(store Store, ledger *Ledger, tiers tier.Table, rules EarnRules) *Earner {
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	return &Earner{Store: store, Ledger: ledger, Tiers: tiers, Rules: rules, Retry: DefaultRetry, Now: time.Now}
}

// Earn credits an order of amountCents at the multiplier of the account's
// tier before this order. An order reference is credited at most once.
func (e *Earner) Earn(ctx context.Context, accountID uuid.UUID, amountCents int64, orderRef, actor string) (*EarnResult, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if amountCents > MaxOrderCents {
		return nil, fmt.Errorf("%w: %d cents exceeds %d", ErrInvalidAmount, amountCents, MaxOrderCents)
	}
	var res *EarnResult
	err := e.Retry.do(ctx, func() error {
		res = &EarnResult{}
		return e.Store.WithTx(ctx, func(tx StoreTx) error {
			acc, err := tx.LockAccount(ctx, accountID)
			if err != nil {
				return err
			}
			if orderRef != "" {
				dup, err := tx.HasOrderEntry(ctx, accountID, orderRef)
				if err != nil {
					return err
				}
				if dup {
					return fmt.Errorf("%w: %s", ErrDuplicateOrder, orderRef)
				}
			}
			cls := e.Tiers.Classify(acc.LifetimePoints)
			if cls.EarnMultiplier > MaxEntryPoints*100/MaxOrderCents {
				return fmt.Errorf("%w: multiplier %d", ErrPointsOutOfRange, cls.EarnMultiplier)
			}
			points := amountCents * cls.EarnMultiplier / 100
			if points <= 0 {
				return fmt.Errorf("%w: %d cents earns no points", ErrInvalidAmount, amountCents)
			}
			res.Tier, res.EarnMultiplier = cls.Tier, cls.EarnMultiplier

			now := e.Now()
			earnedToday, err := tx.CountEntriesSince(ctx, accountID, models.EntryEarned, startOfDay(now, e.Rules.Location))
			if err != nil {
				return err
			}
			desc := fmt.Sprintf("Order $%d.%02d", amountCents/100, amountCents%100)
			earn := newEntry(accountID, points, models.EntryEarned, desc, WithOrderRef(orderRef), WithActor(actor))
			if err := tx.AppendEntry(ctx, earn); err != nil {
				return err
			}
			res.Entries = append(res.Entries, earn)
			res.PointsAwarded += points

			if earnedToday == 0 && e.Rules.FirstOrderBonus > 0 {
				bonus := newEntry(accountID, e.Rules.FirstOrderBonus, models.EntryBonus, "First order of the day bonus",
					WithOrderRef(orderRef), WithActor(actor))
				if err := tx.AppendEntry(ctx, bonus); err != nil {
					return err
				}
				res.Entries = append(res.Entries, bonus)
				res.PointsAwarded += bonus.Delta
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("earn for account %s: %w", accountID, err)
	}
	for _, entry := range res.Entries {
		metrics.Loyalty().ObserveEntry(entry.Kind, entry.Delta)
	}
	return res, nil
}

// AwardBonus credits a positive bonus, e.g. for a referral.
func (e *Earner) AwardBonus(ctx context.Context, accountID uuid.UUID, points int64, description, actor string) (*models.LedgerEntry, error) {
	if points <= 0 {
		return nil, ErrInvalidAmount
	}
	return e.Ledger.RecordEntry(ctx, accountID, points, models.EntryBonus, description, WithActor(actor))
}

// Adjust applies a signed staff correction. Adjustments never count toward
// lifetime points and cannot take the balance below zero.
func (e *Earner) Adjust(ctx context.Context, accountID uuid.UUID, delta int64, description, actor string) (*models.LedgerEntry, error) {
	if actor == "" {
		return nil, ErrActorRequired
	}
	return e.Ledger.RecordEntry(ctx, accountID, delta, models.EntryAdjusted, description, WithActor(actor))
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

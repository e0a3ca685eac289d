package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/emberloaf/loyalty/internal/metrics"
	"github.com/emberloaf/loyalty/internal/models"
)

// CodeGenerator issues unique redemption codes.
type CodeGenerator interface {
	NewCode() string
}

// RedemptionEngine exchanges points for rewards. The balance check, the
// ledger debit and the redemption insert commit as one unit.
type RedemptionEngine struct {
	Store  Store
	Codes  CodeGenerator
	TTL    time.Duration
	Retry  RetryPolicy
	Now    func() time.Time
	Logger *slog.Logger
}

// NewRedemptionEngine returns an engine. ttl <= 0 issues redemptions that never expire.
func NewRedemptionEngine(store Store, codes CodeGenerator, ttl time.Duration, logger *slog.Logger) *RedemptionEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedemptionEngine{
		Store:  store,
		Codes:  codes,
		TTL:    ttl,
		Retry:  DefaultRetry,
		Now:    time.Now,
		Logger: logger,
	}
}

// Redeem claims rewardID for accountID. Checks, in order: the reward exists
// and is active, then the balance covers its cost. The balance is re-checked
// under the account lock at commit time, so two racing redemptions cannot
// both spend the same points.
func (e *RedemptionEngine) Redeem(ctx context.Context, accountID, rewardID uuid.UUID) (*models.Redemption, error) {
	var red *models.Redemption
	err := e.Retry.do(ctx, func() error {
		var err error
		red, err = e.redeemOnce(ctx, accountID, rewardID)
		return err
	})
	metrics.Loyalty().ObserveRedemption(redemptionOutcome(err))
	if err != nil {
		if errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrBackendUnavailable) {
			e.Logger.Warn("redemption failed after retries", "account_id", accountID, "reward_id", rewardID, "error", err)
		}
		return nil, fmt.Errorf("redeem reward %s: %w", rewardID, err)
	}
	metrics.Loyalty().ObserveEntry(models.EntryRedeemed, -red.PointsSpent)
	e.Logger.Info("reward redeemed",
		"account_id", accountID, "reward_id", rewardID, "redemption_id", red.ID, "points", red.PointsSpent)
	return red, nil
}

func (e *RedemptionEngine) redeemOnce(ctx context.Context, accountID, rewardID uuid.UUID) (*models.Redemption, error) {
	reward, err := e.Store.GetReward(ctx, rewardID)
	if err != nil {
		return nil, err
	}
	if !reward.IsActive {
		return nil, ErrRewardNotFound
	}
	// Snapshot the price; later catalog changes do not touch this redemption.
	cost := reward.PointsRequired
	if cost <= 0 {
		return nil, fmt.Errorf("reward %s costs %d: %w", reward.ID, cost, ErrInvalidDelta)
	}
	if err := validateEntry(-cost, models.EntryRedeemed); err != nil {
		return nil, fmt.Errorf("reward %s: %w", reward.ID, err)
	}
	now := e.Now()
	red := &models.Redemption{
		ID:          uuid.New(),
		AccountID:   accountID,
		RewardID:    reward.ID,
		RewardName:  reward.Name,
		PointsSpent: cost,
		Code:        e.Codes.NewCode(),
		Status:      models.RedemptionActive,
		RedeemedAt:  now,
	}
	if e.TTL > 0 {
		exp := now.Add(e.TTL)
		red.ExpiresAt = &exp
	}

	err = e.Store.WithTx(ctx, func(tx StoreTx) error {
		acc, err := tx.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.Points < cost {
			return ErrInsufficientPoints
		}
		debit := newEntry(accountID, -cost, models.EntryRedeemed, "Redeemed: "+reward.Name)
		debit.RedemptionID = &red.ID
		if err := tx.AppendEntry(ctx, debit); err != nil {
			return err
		}
		return tx.InsertRedemption(ctx, red)
	})
	if err != nil {
		return nil, err
	}
	return red, nil
}

// MarkUsed moves an active redemption to used. Invoked by the point of sale.
func (e *RedemptionEngine) MarkUsed(ctx context.Context, redemptionID uuid.UUID) (*models.Redemption, error) {
	var out *models.Redemption
	expired := false
	err := e.Retry.do(ctx, func() error {
		expired = false
		return e.Store.WithTx(ctx, func(tx StoreTx) error {
			red, err := tx.GetRedemptionForUpdate(ctx, redemptionID)
			if err != nil {
				return err
			}
			if red.Terminal() {
				return fmt.Errorf("%w: status is %s", ErrRedemptionNotActive, red.Status)
			}
			now := e.Now()
			if red.ExpiredAt(now) {
				// Persist the expiry; the caller still gets an error.
				expired = true
				red.Status = models.RedemptionExpired
				out = red
				return tx.UpdateRedemptionStatus(ctx, red.ID, models.RedemptionExpired, nil)
			}
			red.Status = models.RedemptionUsed
			red.UsedAt = &now
			out = red
			return tx.UpdateRedemptionStatus(ctx, red.ID, models.RedemptionUsed, &now)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("mark redemption %s used: %w", redemptionID, err)
	}
	if expired {
		metrics.Loyalty().ObserveExpired(1)
		return out, ErrRedemptionExpired
	}
	return out, nil
}

// MarkUsedByCode resolves a scanned redemption code, then marks it used.
func (e *RedemptionEngine) MarkUsedByCode(ctx context.Context, code string) (*models.Redemption, error) {
	red, err := e.Store.GetRedemptionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return e.MarkUsed(ctx, red.ID)
}

// ExpireDue moves all past-expiry active redemptions to expired.
func (e *RedemptionEngine) ExpireDue(ctx context.Context) (int64, error) {
	n, err := e.Store.ExpireRedemptions(ctx, e.Now())
	if err != nil {
		return 0, fmt.Errorf("expire redemptions: %w", err)
	}
	metrics.Loyalty().ObserveExpired(n)
	return n, nil
}

// ListRedemptions returns the account's redemptions, newest first.
func (e *RedemptionEngine) ListRedemptions(ctx context.Context, accountID uuid.UUID) ([]*models.Redemption, error) {
	if _, err := e.Store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.Store.ListRedemptions(ctx, accountID)
}

func redemptionOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRewardNotFound):
		return "reward_not_found"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, ErrConcurrencyConflict):
		return "conflict"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	default:
		return "error"
	}
}

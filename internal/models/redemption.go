package models

import (
	"time"

	"github.com/google/uuid"
)

// Redemption status values. Used and expired are terminal.
const (
	RedemptionActive  = "active"
	RedemptionUsed    = "used"
	RedemptionExpired = "expired"
)

type Redemption struct {
	ID          uuid.UUID  `json:"id"`
	AccountID   uuid.UUID  `json:"account_id"`
	RewardID    uuid.UUID  `json:"reward_id"`
	RewardName  string     `json:"reward_name,omitempty"`
	PointsSpent int64      `json:"points_spent"`
	Code        string     `json:"redemption_code"`
	Status      string     `json:"status"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	RedeemedAt  time.Time  `json:"redeemed_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
}

// Terminal reports whether no further status transition is allowed.
func (r *Redemption) Terminal() bool {
	return r.Status == RedemptionUsed || r.Status == RedemptionExpired
}

// ExpiredAt reports whether an active redemption is past its expiry at now.
func (r *Redemption) ExpiredAt(now time.Time) bool {
	return r.Status == RedemptionActive && r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry kinds. Mirrors the loyalty_transactions.transaction_type check constraint.
const (
	EntryEarned   = "earned"
	EntryRedeemed = "redeemed"
	EntryAdjusted = "adjusted"
	EntryBonus    = "bonus"
	EntryExpired  = "expired"
)

// ValidEntryKind reports whether kind is one of the five ledger kinds.
func ValidEntryKind(kind string) bool {
	switch kind {
	case EntryEarned, EntryRedeemed, EntryAdjusted, EntryBonus, EntryExpired:
		return true
	}
	return false
}

// CountsTowardLifetime reports whether an entry adds to lifetime points.
func CountsTowardLifetime(kind string, delta int64) bool {
	return delta > 0 && (kind == EntryEarned || kind == EntryBonus)
}

type LedgerEntry struct {
	ID             uuid.UUID  `json:"id"`
	AccountID      uuid.UUID  `json:"account_id"`
	Delta          int64      `json:"points_change"`
	Kind           string     `json:"transaction_type"`
	Description    string     `json:"description"`
	OrderReference *string    `json:"order_reference,omitempty"`
	CreatedBy      *string    `json:"created_by,omitempty"`
	RedemptionID   *uuid.UUID `json:"redemption_id,omitempty"`
	BalanceAfter   int64      `json:"balance_after"`
	CreatedAt      time.Time  `json:"created_at"`
}

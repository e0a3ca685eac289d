package services

import (
	"errors"
	"fmt"
)

// Validation errors are never retried.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrRewardNotFound     = errors.New("reward not found")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrInvalidDelta       = errors.New("invalid delta: must be non-zero")
	ErrInvalidKind        = errors.New("invalid ledger entry kind")
	ErrInvalidAmount      = errors.New("invalid amount: must be > 0")
	ErrActorRequired      = errors.New("actor required for adjustments")
	ErrDuplicateOrder     = errors.New("order already credited")
	ErrInvalidPayload     = errors.New("invalid identity payload")
	ErrPointsOutOfRange   = errors.New("points out of range")

	ErrRedemptionNotFound  = errors.New("redemption not found")
	ErrRedemptionNotActive = errors.New("redemption is not active")
	ErrRedemptionExpired   = errors.New("redemption has expired")

	ErrLedgerDrift = errors.New("ledger drift: materialized balance differs from entry sum")
)

// ErrConcurrencyConflict is returned when an atomic commit loses a race.
// Safe to retry with the same inputs; a retry re-validates the balance.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

// ErrBackendUnavailable matches any *BackendError.
var ErrBackendUnavailable = errors.New("backend unavailable")

// BackendError wraps a failure of the persistent store.
// Retryable is false when the outcome of a commit is unknown.
type BackendError struct {
	Op        string
	Err       error
	Retryable bool
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: backend unavailable: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackendUnavailable }

// retryable reports whether err may be retried by re-running the whole operation.
func retryable(err error) bool {
	if errors.Is(err, ErrConcurrencyConflict) {
		return true
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be.Retryable
	}
	return false
}

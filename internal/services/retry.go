package services

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryPolicy bounds how often a conflicting or transiently failing operation
// is re-run. Each attempt re-executes the full validation.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetry is used when a service is built with a zero policy.
var DefaultRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: 15 * time.Millisecond}

func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultRetry.MaxAttempts
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		delay := p.BaseDelay << i
		if delay > 0 {
			delay += rand.N(delay)
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
	return err
}

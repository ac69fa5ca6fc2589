// Package retry provides bounded exponential backoff for transient
// collaborator failures.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded exponential backoff schedule. The first retry
// waits BaseDelay, each subsequent retry doubles the wait up to MaxDelay.
type Policy struct {
	MaxAttempts int // total attempts including the first
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy is the retry budget used for token submission.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   200 * time.Millisecond,
	MaxDelay:    2 * time.Second,
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is exhausted. retryable decides which errors warrant another
// attempt. The last error is returned; context cancellation aborts the wait.
func (p Policy) Do(ctx context.Context, fn func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := p.BaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return err
}

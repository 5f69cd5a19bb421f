package transcribe

import (
	"context"
	"time"
)

// RetryPolicy retries an operation with exponential backoff. MaxRetries is
// the number of retries after the first attempt; BaseDelay doubles after
// every failed attempt (1s, 2s, 4s with the defaults).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do runs op until it succeeds, returns a permanent error, or attempts are
// exhausted, in which case the last error is returned. Backoff sleeps are
// context-aware.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := p.BaseDelay
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

package util

import (
	"context"
	"errors"
	"time"
)

// Backoff configures RetryWithBackoff. Delay doubles after every failed
// attempt and is capped at MaxDelay when that is set.
type Backoff struct {
	MaxTries int
	Delay    time.Duration
	MaxDelay time.Duration
}

// RetryWithBackoff calls fn until it succeeds, fails with an error that
// retryable rejects, or MaxTries attempts were made. A nil retryable retries
// every error. Context errors are never retried.
func RetryWithBackoff[T any](
	ctx context.Context,
	b Backoff,
	retryable func(error) bool,
	fn func(context.Context) (T, error),
) (T, error) {
	maxTries := b.MaxTries
	if maxTries <= 0 {
		maxTries = 1
	}
	delay := b.Delay

	var lastErr error
	var zero T
	for i := 0; i < maxTries; i++ {
		if i > 0 && delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, ctx.Err()
			case <-t.C:
			}
			delay *= 2
			if b.MaxDelay > 0 && delay > b.MaxDelay {
				delay = b.MaxDelay
			}
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return zero, err
		}
	}
	return zero, lastErr
}

package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	result, err := RetryWithBackoff(context.Background(), Backoff{MaxTries: 3}, nil, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 99, nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != 99 || calls != 3 {
		t.Fatalf("expected 99 after 3 calls, got %d after %d", result, calls)
	}
}

func TestRetryWithBackoff_MaxTriesZeroOrNegative(t *testing.T) {
	for _, n := range []int{0, -2} {
		calls := 0
		_, err := RetryWithBackoff(context.Background(), Backoff{MaxTries: n}, nil, func(ctx context.Context) (int, error) {
			calls++
			return 0, errors.New("fail")
		})
		if calls != 1 {
			t.Fatalf("expected 1 call for MaxTries=%d, got %d", n, calls)
		}
		if err == nil {
			t.Fatal("expected error, got nil")
		}
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := RetryWithBackoff(ctx, Backoff{MaxTries: 5}, nil, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_FunctionReturnsContextError(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), Backoff{MaxTries: 5}, nil, func(ctx context.Context) (int, error) {
		calls++
		return 0, context.DeadlineExceeded
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("context errors must not be retried, got %d calls", calls)
	}
}

func TestRetryWithBackoff_PersistentFailure(t *testing.T) {
	calls := 0
	_, err := RetryWithBackoff(context.Background(), Backoff{MaxTries: 3}, nil, func(ctx context.Context) (struct{}, error) {
		calls++
		return struct{}{}, errors.New("persistent")
	})
	if err == nil || err.Error() != "persistent" {
		t.Fatalf("expected persistent error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_OnlyRetryable(t *testing.T) {
	retryable := func(err error) bool { return errors.Is(err, errTransient) }

	calls := 0
	_, err := RetryWithBackoff(context.Background(), Backoff{MaxTries: 5}, retryable, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("malformed")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one call for a permanent error, got %d calls, err %v", calls, err)
	}

	calls = 0
	got, err := RetryWithBackoff(context.Background(), Backoff{MaxTries: 5, Delay: time.Millisecond}, retryable, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil || got != "ok" || calls != 3 {
		t.Fatalf("expected ok after 3 calls, got %q after %d calls, err %v", got, calls, err)
	}
}

func TestRetryWithBackoff_CancelDuringDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := RetryWithBackoff(ctx, Backoff{MaxTries: 3, Delay: time.Second}, nil, func(ctx context.Context) (int, error) {
		return 0, errTransient
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatal("backoff did not observe context cancellation")
	}
}

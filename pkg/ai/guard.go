package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/thirai-kg/backend/pkg/common"
	"github.com/thirai-kg/backend/pkg/logger"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// GuardedClient bounds every call to an underlying client with a timeout, a
// request rate limit and a concurrency limit, and classifies failures.
//
// A call that runs out of its own time budget, or that the provider reports
// as rate limited or overloaded, fails with a TransientService error. A call
// whose caller context ends returns the context error.
type GuardedClient struct {
	inner   GraphAIClient
	timeout time.Duration
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// GuardParams configure a GuardedClient. Zero values disable the
// corresponding bound.
type GuardParams struct {
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	MaxConcurrent  int64
}

// NewGuardedClient wraps inner.
func NewGuardedClient(inner GraphAIClient, params GuardParams) *GuardedClient {
	g := &GuardedClient{inner: inner, timeout: params.Timeout}
	if params.RequestsPerSec > 0 {
		burst := params.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(params.RequestsPerSec), burst)
	}
	if params.MaxConcurrent > 0 {
		g.sem = semaphore.NewWeighted(params.MaxConcurrent)
	}
	return g
}

func (g *GuardedClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...GenerateOption,
) (string, error) {
	var out string
	err := g.do(ctx, "completion", func(ctx context.Context) error {
		var err error
		out, err = g.inner.GenerateCompletion(ctx, prompt, opts...)
		return err
	})
	return out, err
}

func (g *GuardedClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...GenerateOption,
) error {
	return g.do(ctx, name, func(ctx context.Context) error {
		return g.inner.GenerateCompletionWithFormat(ctx, name, description, prompt, out, opts...)
	})
}

func (g *GuardedClient) ResetMetrics() {
	g.inner.ResetMetrics()
}

func (g *GuardedClient) GetMetrics() ModelMetrics {
	return g.inner.GetMetrics()
}

func (g *GuardedClient) do(ctx context.Context, op string, fn func(context.Context) error) error {
	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(callCtx); err != nil {
			return g.classify(ctx, op, err)
		}
	}
	if g.sem != nil {
		if err := g.sem.Acquire(callCtx, 1); err != nil {
			return g.classify(ctx, op, err)
		}
		defer g.sem.Release(1)
	}

	start := time.Now()
	err := fn(callCtx)
	if err != nil {
		logger.Debug("[AI] request failed", "op", op, "duration", time.Since(start), "err", err)
		return g.classify(ctx, op, err)
	}
	return nil
}

func (g *GuardedClient) classify(parent context.Context, op string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, ErrMalformedResponse) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// not wrapped: callers treat context errors as final
		return common.Errorf(common.KindTransientService, "llm "+op, "timed out after %s", g.timeout)
	}
	// rate.Limiter reports a wait that cannot fit the deadline without
	// wrapping context.DeadlineExceeded
	if g.limiter != nil && isLimiterDeadline(err) {
		return common.Wrap(common.KindTransientService, "llm "+op, err)
	}
	if tc, ok := g.inner.(TransientClassifier); ok && tc.IsTransient(err) {
		return common.Wrap(common.KindTransientService, "llm "+op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return common.Wrap(common.KindTransientService, "llm "+op, err)
	}
	return fmt.Errorf("llm %s failed: %w", op, err)
}

func isLimiterDeadline(err error) bool {
	return strings.Contains(err.Error(), "would exceed context deadline")
}

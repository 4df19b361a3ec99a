package ai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thirai-kg/backend/pkg/common"
)

var errOverloaded = errors.New("529 overloaded")

type fakeClient struct {
	fn       func(ctx context.Context) (string, error)
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeClient) GenerateCompletion(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	return f.fn(ctx)
}

func (f *fakeClient) GenerateCompletionWithFormat(ctx context.Context, name, description, prompt string, out any, opts ...GenerateOption) error {
	s, err := f.GenerateCompletion(ctx, prompt, opts...)
	if err != nil {
		return err
	}
	return DecodeResponse(s, out)
}

func (f *fakeClient) ResetMetrics()            {}
func (f *fakeClient) GetMetrics() ModelMetrics { return ModelMetrics{} }

func (f *fakeClient) IsTransient(err error) bool {
	return errors.Is(err, errOverloaded)
}

func TestGuardedClient_TimeoutIsTransient(t *testing.T) {
	inner := &fakeClient{fn: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	g := NewGuardedClient(inner, GuardParams{Timeout: 20 * time.Millisecond})

	_, err := g.GenerateCompletion(context.Background(), "who directed Jailer?")
	if !errors.Is(err, common.ErrTransientService) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestGuardedClient_CallerCancelIsNotTransient(t *testing.T) {
	inner := &fakeClient{fn: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	g := NewGuardedClient(inner, GuardParams{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := g.GenerateCompletion(ctx, "q")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, common.ErrTransientService) {
		t.Fatal("caller cancellation must not be reported as transient")
	}
}

func TestGuardedClient_ProviderClassification(t *testing.T) {
	inner := &fakeClient{fn: func(ctx context.Context) (string, error) {
		return "", errOverloaded
	}}
	g := NewGuardedClient(inner, GuardParams{})
	if _, err := g.GenerateCompletion(context.Background(), "q"); !errors.Is(err, common.ErrTransientService) {
		t.Fatalf("expected transient error, got %v", err)
	}

	inner.fn = func(ctx context.Context) (string, error) {
		return "", errors.New("401 unauthorized")
	}
	_, err := g.GenerateCompletion(context.Background(), "q")
	if err == nil || errors.Is(err, common.ErrTransientService) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestGuardedClient_MalformedPassesThrough(t *testing.T) {
	inner := &fakeClient{fn: func(ctx context.Context) (string, error) {
		return "not json at all", nil
	}}
	g := NewGuardedClient(inner, GuardParams{})

	var out movie
	err := g.GenerateCompletionWithFormat(context.Background(), "movie", "", "q", &out)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestGuardedClient_ConcurrencyLimit(t *testing.T) {
	inner := &fakeClient{fn: func(ctx context.Context) (string, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	}}
	g := NewGuardedClient(inner, GuardParams{MaxConcurrent: 2})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.GenerateCompletion(context.Background(), "q"); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := inner.maxSeen.Load(); got > 2 {
		t.Fatalf("expected at most 2 concurrent calls, saw %d", got)
	}
}

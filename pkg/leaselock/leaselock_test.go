package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

// fakeLocks mimics app_locks without expiry.
type fakeLocks struct {
	mu     sync.Mutex
	holder map[string]string
}

func (f *fakeLocks) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	switch sql {
	case tryAcquireSQL:
		if cur, ok := f.holder[key]; ok && cur != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.holder[key] = token
		return fakeRow{key: key}
	case renewSQL:
		if f.holder[key] != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{key: key}
	}
	return fakeRow{err: errors.New("unexpected statement")}
}

func (f *fakeLocks) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if f.holder[key] == token {
		delete(f.holder, key)
	}
	return pgconn.CommandTag{}, nil
}

func TestOptionsDefaults(t *testing.T) {
	tests := []struct {
		in        Options
		wantTTL   time.Duration
		wantRenew time.Duration
	}{
		{Options{}, 5 * time.Minute, 150 * time.Second},
		{Options{TTL: time.Minute, RenewEvery: 2 * time.Minute}, time.Minute, 30 * time.Second},
		{Options{TTL: time.Second}, time.Second, time.Second},
		{Options{TTL: time.Minute, RenewEvery: 10 * time.Second}, time.Minute, 10 * time.Second},
	}
	for _, tt := range tests {
		got := tt.in.withDefaults()
		if got.TTL != tt.wantTTL || got.RenewEvery != tt.wantRenew || got.WaitInterval <= 0 {
			t.Errorf("withDefaults(%+v) = %+v", tt.in, got)
		}
	}
}

func TestWithLease_Exclusive(t *testing.T) {
	db := &fakeLocks{holder: map[string]string{}}
	c := New(db)
	ctx := context.Background()

	ran := false
	err := c.WithLease(ctx, "ingest_job:j1", Options{}, func(ctx context.Context) error {
		if _, err := c.Acquire(ctx, "ingest_job:j1", Options{}); !errors.Is(err, ErrBusy) {
			t.Fatalf("expected ErrBusy while held, got %v", err)
		}
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("unexpected result ran=%v err=%v", ran, err)
	}

	lease, err := c.Acquire(ctx, "ingest_job:j1", Options{})
	if err != nil {
		t.Fatalf("lease must be free after release: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lease.Context.Err() == nil {
		t.Fatalf("lease context must end on release")
	}
}

func TestAcquire_WaitHonoursContext(t *testing.T) {
	db := &fakeLocks{holder: map[string]string{"k": "other"}}
	c := New(db)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Acquire(ctx, "k", Options{Wait: true, WaitInterval: 10 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestAcquire_EmptyKey(t *testing.T) {
	if _, err := New(&fakeLocks{holder: map[string]string{}}).Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatalf("expected an error for an empty key")
	}
}

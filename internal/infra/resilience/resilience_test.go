package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/wallet-insights-bfa/internal/domain"
	"github.com/boddenberg/wallet-insights-bfa/internal/infra/resilience"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_RetriesOnFailure(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     3,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		if callCount < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
	}

	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 10 * time.Millisecond,
	}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return &domain.ErrNotFound{Resource: "transactions", ID: "cust-1"}
	})

	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_ZeroBackoff(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2}

	callCount := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		callCount++
		return errors.New("boom")
	})

	if err == nil || callCount != 3 {
		t.Errorf("expected 3 calls and an error, got %d calls, err=%v", callCount, err)
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{
		MaxRetries:     5,
		InitialBackoff: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestCall_WrapsExternalErrors(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-wrap")
	cfg := resilience.Config{MaxRetries: 0}

	_, err := resilience.Call(context.Background(), cb, cfg, "supabase/transactions", func(context.Context) (int, error) {
		return 0, errors.New("connection refused")
	})

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %T: %v", err, err)
	}
	if ext.Service != "supabase/transactions" {
		t.Errorf("expected service label, got '%s'", ext.Service)
	}
}

func TestCall_ReturnsValue(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-value")

	v, err := resilience.Call(context.Background(), cb, resilience.Config{}, "x", func(context.Context) ([]string, error) {
		return []string{"a"}, nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(v) != 1 || v[0] != "a" {
		t.Errorf("unexpected value %v", v)
	}
}

func TestCall_OpenBreaker(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-open")
	cfg := resilience.Config{MaxRetries: 0}
	fail := func(context.Context) (int, error) { return 0, errors.New("down") }

	for i := 0; i < 5; i++ {
		_, _ = resilience.Call(context.Background(), cb, cfg, "svc", fail)
	}

	_, err := resilience.Call(context.Background(), cb, cfg, "svc", fail)
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen after repeated failures, got %v", err)
	}
}

func TestCall_NotFoundDoesNotTripBreaker(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test-notfound")
	cfg := resilience.Config{MaxRetries: 0}
	missing := func(context.Context) (int, error) {
		return 0, &domain.ErrNotFound{Resource: "wallet", ID: "w1"}
	}

	for i := 0; i < 10; i++ {
		_, err := resilience.Call(context.Background(), cb, cfg, "svc", missing)
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			t.Fatalf("call %d: expected ErrNotFound, got %v", i, err)
		}
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	// Third acquire should block; test with timeout context
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bh.Acquire(ctx)
	if err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	// Release one slot
	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}

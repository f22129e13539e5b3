package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNewBucket_StartsFull(t *testing.T) {
	t.Parallel()
	b := NewBucket(50, 10)

	if b.Available() < 9.9 {
		t.Errorf("expected bucket to start full (~10), got %v", b.Available())
	}
}

func TestNewBucket_ZeroBurstDefaultsToRate(t *testing.T) {
	t.Parallel()
	b := NewBucket(25, 0)

	if b.Available() < 24.9 {
		t.Errorf("expected bucket to start full (~25), got %v", b.Available())
	}
}

func TestAllow_SucceedsWhenTokensAvailable(t *testing.T) {
	t.Parallel()
	b := NewBucket(100, 5)

	if !b.Allow() {
		t.Error("expected Allow to return true when tokens are available")
	}
}

func TestAllow_FailsWhenEmpty(t *testing.T) {
	t.Parallel()
	// Very slow refill so the bucket stays empty within the test.
	b := NewBucket(0.001, 2)

	if !b.Allow() || !b.Allow() {
		t.Fatal("expected first two Allow calls to succeed")
	}
	if b.Allow() {
		t.Error("expected Allow to return false once the bucket is drained")
	}
}

func TestWait_ReturnsImmediatelyWhenTokensAvailable(t *testing.T) {
	t.Parallel()
	b := NewBucket(100, 5)

	start := time.Now()
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Wait should not block when tokens are available")
	}
}

func TestWait_RespectsContextCancellation(t *testing.T) {
	t.Parallel()
	b := NewBucket(0.001, 1)
	b.Allow() // drain

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := b.Wait(ctx); err == nil {
		t.Error("expected Wait to fail once the context is cancelled")
	}
}

func TestWait_BlocksUntilRefill(t *testing.T) {
	t.Parallel()
	b := NewBucket(50, 1)
	b.Allow() // drain

	start := time.Now()
	if err := b.Wait(context.Background()); err != nil {
		t.Fatalf("Wait returned error: %v", err)
	}
	// One token at 50/s accrues in ~20ms.
	if time.Since(start) > time.Second {
		t.Error("Wait took far longer than the refill interval")
	}
}

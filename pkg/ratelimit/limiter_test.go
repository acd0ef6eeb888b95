package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(0, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("disabled limiter took %v, want no delay", elapsed)
	}
}

func TestLimiter_BurstThenWait(t *testing.T) {
	l := NewLimiter(20, 2)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait() #%d error = %v", i+1, err)
		}
	}
	// Two tokens are available immediately, the third arrives after ~50ms.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("third request after %v, want it delayed", elapsed)
	}
}

func TestLimiter_ContextCancelled(t *testing.T) {
	l := NewLimiter(0.1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	cancel()
	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() on cancelled context should fail")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

package limiter

import (
	"context"
	"testing"
	"time"
)

func TestNewFileLimiter_Unlimited(t *testing.T) {
	for _, r := range []float64{0, -1} {
		if l := NewFileLimiter(r); l != nil {
			t.Errorf("NewFileLimiter(%v) should be nil", r)
		}
	}

	var l *FileLimiter
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("nil limiter Wait returned %v", err)
	}
	if l.Rate() != 0 {
		t.Errorf("nil limiter Rate = %v", l.Rate())
	}
	l.SetRate(5)
}

func TestFileLimiter_Paces(t *testing.T) {
	l := NewFileLimiter(20)
	ctx := context.Background()

	// Burst of 20 is free; the next 5 are paced at 50ms each
	start := time.Now()
	for i := 0; i < 25; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected pacing, finished in %v", elapsed)
	}
}

func TestFileLimiter_CancelledContext(t *testing.T) {
	l := NewFileLimiter(0.1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("expected error from cancelled context")
	}

	var nilLimiter *FileLimiter
	if err := nilLimiter.Wait(ctx); err == nil {
		t.Error("nil limiter should still honor cancellation")
	}
}

func TestFileLimiter_SetRate(t *testing.T) {
	l := NewFileLimiter(2)
	l.SetRate(10)
	if l.Rate() != 10 {
		t.Errorf("Rate = %v, want 10", l.Rate())
	}
	l.SetRate(0)
	if l.Rate() != 10 {
		t.Errorf("SetRate(0) should be ignored, got %v", l.Rate())
	}
}

package utils

import (
	"context"
	"testing"
	"time"
)

func TestKeySetNoDuplicates(t *testing.T) {
	s := NewKeySet()

	tests := []struct {
		key  string
		want bool
	}{
		{"B0CHX1W1XY", true},
		{"B0CHX1W1XY", false},
		{"B0CHX1W1XZ", true},
		{"", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := s.Add(tt.key); got != tt.want {
			t.Errorf("Add(%q) = %v; want %v", tt.key, got, tt.want)
		}
	}
}

func TestRateLimiterSpacing(t *testing.T) {
	rateLimitMs := 50
	rl := NewRateLimiter(rateLimitMs)
	ctx := context.Background()

	var timestamps []time.Time
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		timestamps = append(timestamps, time.Now())
	}

	// Allow a little timer slack below the nominal interval.
	min := time.Duration(rateLimitMs)*time.Millisecond - 5*time.Millisecond
	for i := 1; i < len(timestamps); i++ {
		gap := timestamps[i].Sub(timestamps[i-1])
		if gap < min {
			t.Errorf("gap between call %d and %d: %v < minimum %v", i-1, i, gap, min)
		}
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("disabled limiter should not block")
	}
}

func TestRateLimiterHonoursCancel(t *testing.T) {
	rl := NewRateLimiter(10_000)
	ctx, cancel := context.WithCancel(context.Background())

	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first Wait should pass immediately: %v", err)
	}
	cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("expected context error on cancelled wait")
	}
}

package utils

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces out calls so that consecutive Wait returns are at least
// interval apart. A zero interval disables limiting.
type RateLimiter struct {
	lim *rate.Limiter
}

// NewRateLimiter creates a RateLimiter with the given minimum spacing in ms.
func NewRateLimiter(rateLimitMs int) *RateLimiter {
	if rateLimitMs <= 0 {
		return &RateLimiter{}
	}
	interval := time.Duration(rateLimitMs) * time.Millisecond
	return &RateLimiter{lim: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the caller may proceed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.lim == nil {
		return ctx.Err()
	}
	return rl.lim.Wait(ctx)
}

// KeySet tracks keys already seen while building one page. It is not safe
// for concurrent use.
type KeySet struct {
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

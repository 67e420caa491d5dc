package security

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter over request timestamps. The
// window is pruned lazily on each check, never by a background timer.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	timestamps  []time.Time
	now         func() time.Time
}

// NewRateLimiter creates a sliding-window rate limiter.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Allow records the request and returns true, or returns false without
// recording when the window is already full.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	if len(rl.timestamps) >= rl.maxRequests {
		return false
	}
	rl.timestamps = append(rl.timestamps, now)
	return true
}

// Remaining reports how many requests are still available in the window.
func (rl *RateLimiter) Remaining() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.prune(rl.now())
	return rl.maxRequests - len(rl.timestamps)
}

func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.window)
	keep := rl.timestamps[:0]
	for _, ts := range rl.timestamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	rl.timestamps = keep
}

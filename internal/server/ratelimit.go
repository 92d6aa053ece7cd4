package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL is how long an unused per-key limiter is kept.
	limiterIdleTTL = 10 * time.Minute
	sweepInterval  = time.Minute
)

type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key. Buckets idle for longer than limiterIdleTTL are
// swept, so the number of tracked keys stays bounded by recent traffic.
type RateLimiter struct {
	mu        sync.Mutex
	limits    map[string]*keyLimiter
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per key with the given burst.
// rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limits: make(map[string]*keyLimiter),
		rps:    limit,
		burst:  burst,
		now:    time.Now,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= sweepInterval {
		rl.sweepLocked(now)
	}
	if kl, ok := rl.limits[key]; ok {
		kl.lastSeen = now
		return kl.limiter
	}
	limiter := rate.NewLimiter(rl.rps, rl.burst)
	rl.limits[key] = &keyLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, kl := range rl.limits {
		if now.Sub(kl.lastSeen) > limiterIdleTTL {
			delete(rl.limits, key)
		}
	}
	rl.lastSweep = now
}

// Allow reports whether a request for key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	if rl.rps == rate.Inf {
		return true
	}
	return rl.getLimiter(key).Allow()
}

// Len returns the number of keys currently tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// agora/models/services.go
package models

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// --- Stateful Services ---

// RateLimiter keeps one token bucket per client key. Idle buckets are pruned on access.
type RateLimiter struct {
	Mu        sync.Mutex
	Limiters  map[string]*rate.Limiter
	LastSeen  map[string]time.Time
	every     time.Duration
	burst     int
	expire    time.Duration
	lastPrune time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing burst events, refilled once per every.
func NewRateLimiter(every time.Duration, burst int, expire time.Duration) *RateLimiter {
	return &RateLimiter{
		Limiters: make(map[string]*rate.Limiter),
		LastSeen: make(map[string]time.Time),
		every:    every,
		burst:    burst,
		expire:   expire,
		now:      time.Now,
	}
}

// GetLimiter retrieves or creates the bucket for key.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.Mu.Lock()
	defer rl.Mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastPrune) > rl.expire {
		rl.prune(now)
	}
	limiter, exists := rl.Limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(rl.every), rl.burst)
		rl.Limiters[key] = limiter
	}
	rl.LastSeen[key] = now
	return limiter
}

// Allow reports whether key may act now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.GetLimiter(key).Allow()
}

func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.expire)
	for key, lastSeen := range rl.LastSeen {
		if lastSeen.Before(cutoff) {
			delete(rl.Limiters, key)
			delete(rl.LastSeen, key)
		}
	}
	rl.lastPrune = now
}

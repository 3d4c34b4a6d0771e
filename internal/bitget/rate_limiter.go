package bitget

import (
	"sync"
	"time"
)

// Bitget enforces per-endpoint request frequency limits; most mix endpoints
// allow 10-20 requests per second per IP. A shared per-second budget with a
// throttle-aware cooldown keeps us comfortably inside that.
const (
	defaultRequestsPerSecond = 10
	throttleCooldown         = 10 * time.Second
	errorBackoffThreshold    = 5
)

// RateLimiter implements a simple per-second request budget with a cooldown
// after the exchange reports throttling
type RateLimiter struct {
	mu sync.Mutex

	requestsThisSecond int
	windowStart        time.Time
	maxPerSecond       int

	cooldownUntil     time.Time
	consecutiveErrors int
}

// NewRateLimiter creates a rate limiter with default limits
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		maxPerSecond: defaultRequestsPerSecond,
		windowStart:  time.Now(),
	}
}

// WaitForSlot blocks until a request slot is available or the deadline passes.
// Returns false if no slot became available within maxWait.
func (r *RateLimiter) WaitForSlot(endpoint string, maxWait time.Duration) bool {
	deadline := time.Now().Add(maxWait)

	for {
		if r.tryAcquire() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func (r *RateLimiter) tryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if now.Before(r.cooldownUntil) {
		return false
	}

	if now.Sub(r.windowStart) >= time.Second {
		r.requestsThisSecond = 0
		r.windowStart = now
	}

	if r.requestsThisSecond >= r.maxPerSecond {
		return false
	}

	r.requestsThisSecond++
	return true
}

// RecordThrottle notes a 429 from the exchange and enters cooldown
func (r *RateLimiter) RecordThrottle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cooldownUntil = time.Now().Add(throttleCooldown)
}

// RecordError tracks consecutive transport errors; sustained failures
// trigger a short cooldown so a flapping connection doesn't hammer the API
func (r *RateLimiter) RecordError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveErrors++
	if r.consecutiveErrors >= errorBackoffThreshold {
		r.cooldownUntil = time.Now().Add(throttleCooldown)
		r.consecutiveErrors = 0
	}
}

// RecordSuccess resets the consecutive error counter
func (r *RateLimiter) RecordSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consecutiveErrors = 0
}

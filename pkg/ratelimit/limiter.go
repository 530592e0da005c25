// Package ratelimit provides per-webhook-target token accounting for
// outbound calls.
package ratelimit

import (
	"sync"
	"time"

	"github.com/workstack/macrod/pkg/models"
)

// Decision is the outcome of a token acquisition attempt. Denial is not an
// error: callers honor RetryAfter and either delay or fail the step.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// Limiter implements token-bucket accounting per webhook target: a target
// may perform RateLimit calls per RateLimitPeriod, with tokens replenishing
// continuously. Safe for concurrent use; concurrent executions targeting
// the same webhook serialize their token checks on the limiter's lock.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	clock   func() time.Time
}

// NewLimiter creates a limiter using the wall clock.
func NewLimiter() *Limiter {
	return NewLimiterWithClock(time.Now)
}

// NewLimiterWithClock creates a limiter with an injectable clock for tests.
func NewLimiterWithClock(clock func() time.Time) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		clock:   clock,
	}
}

// TryAcquire attempts to take one token for the target described by config.
// When rate limiting is disabled for the target, the call is always
// allowed. On denial, RetryAfter is the minimum wait until a token will be
// available.
func (l *Limiter) TryAcquire(config *models.WebhookConfig) Decision {
	if !config.RateLimitEnabled {
		return Decision{Allowed: true}
	}

	config.Normalize()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()

	b, ok := l.buckets[config.ID]
	if !ok {
		b = &bucket{
			tokens:     float64(config.RateLimit),
			capacity:   float64(config.RateLimit),
			refillRate: float64(config.RateLimit) / config.RateLimitPeriod.Seconds(),
			lastRefill: now,
		}
		l.buckets[config.ID] = b
	}

	b.refill(now)

	if b.tokens >= 1 {
		b.tokens--

		return Decision{Allowed: true}
	}

	deficit := 1 - b.tokens
	// Pad the wait so that waiting exactly RetryAfter is always sufficient;
	// the float conversion truncates.
	wait := time.Duration(deficit/b.refillRate*float64(time.Second)) + time.Millisecond

	return Decision{Allowed: false, RetryAfter: wait}
}

// Reset drops the accumulated state for a target, typically after its
// configuration changed.
func (l *Limiter) Reset(targetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, targetID)
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}

	b.lastRefill = now
}

package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/tendant/simple-2fa/pkg/clock"
)

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	capacity   int     // Maximum number of tokens
	tokens     float64 // Current number of tokens
	refillRate float64 // Tokens added per second
	lastRefill time.Time
	clock      clock.Clocker
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
// capacity: Maximum number of requests allowed in a burst
// refillRate: Number of requests allowed per second
func NewTokenBucket(capacity int, refillRate float64, clk clock.Clocker) *TokenBucket {
	if clk == nil {
		clk = clock.New()
	}
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: clk.Now(),
		clock:      clk,
	}
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = math.Min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
	}
	tb.lastRefill = now
}

// Allow takes a token if one is available.
func (tb *TokenBucket) Allow() bool {
	ok, _ := tb.Reserve()
	return ok
}

// Reserve takes a token if one is available. When it is not, it returns how
// long until the next token.
func (tb *TokenBucket) Reserve() (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(tb.clock.Now())
	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, 0
	}
	if tb.refillRate <= 0 {
		return false, 0
	}
	missing := 1.0 - tb.tokens
	return false, time.Duration(math.Ceil(missing / tb.refillRate * float64(time.Second)))
}

// Tokens returns the current number of available tokens
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill(tb.clock.Now())
	return tb.tokens
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = float64(tb.capacity)
	tb.lastRefill = tb.clock.Now()
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate float64
	ttl        time.Duration // Time to keep inactive buckets in memory (0 = forever)
	clock      clock.Clocker
	mu         sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
}

type Option func(*RateLimiter)

func WithClock(c clock.Clocker) Option {
	return func(rl *RateLimiter) {
		if c != nil {
			rl.clock = c
		}
	}
}

// NewRateLimiter creates a new rate limiter
// capacity: Maximum number of requests allowed in a burst per key
// refillRate: Number of requests allowed per second per key
// ttl: Time to keep inactive buckets in memory (0 = forever)
func NewRateLimiter(capacity int, refillRate float64, ttl time.Duration, opts ...Option) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		clock:      clock.New(),
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}

	if ttl > 0 {
		go rl.cleanupLoop()
	}
	return rl
}

func (rl *RateLimiter) bucket(key string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, exists := rl.buckets[key]
	if !exists {
		b = NewTokenBucket(rl.capacity, rl.refillRate, rl.clock)
		rl.buckets[key] = b
	}
	return b
}

// Allow checks if a request for the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

// Reserve is Allow that also reports the wait until the next token.
func (rl *RateLimiter) Reserve(key string) (bool, time.Duration) {
	return rl.bucket(key).Reserve()
}

// Reset resets the rate limiter for a specific key
func (rl *RateLimiter) Reset(key string) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if b, exists := rl.buckets[key]; exists {
		b.Reset()
	}
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Cleanup removes buckets that have not been used for longer than the TTL.
func (rl *RateLimiter) Cleanup() {
	if rl.ttl <= 0 {
		return
	}
	now := rl.clock.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if now.Sub(b.idleSince()) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
}

// Stats returns statistics about the rate limiter
type Stats struct {
	ActiveBuckets int
	TotalCapacity int
	RefillRate    float64
}

// GetStats returns current statistics
func (rl *RateLimiter) GetStats() Stats {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return Stats{
		ActiveBuckets: len(rl.buckets),
		TotalCapacity: rl.capacity,
		RefillRate:    rl.refillRate,
	}
}

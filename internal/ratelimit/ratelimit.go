package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	mu         sync.Mutex
	tokens     int
	capacity   int
	rate       int // tokens per second
	lastRefill time.Time
}

// NewTokenBucket creates a new token bucket with the given rate and capacity
func NewTokenBucket(rate, capacity int) *TokenBucket {
	return &TokenBucket{
		tokens:     capacity,
		capacity:   capacity,
		rate:       rate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request can be allowed and consumes a token if available
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	// Add tokens based on elapsed time
	tokensToAdd := int(elapsed.Seconds() * float64(tb.rate))
	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}

	// Check if we have tokens available
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Limiter throttles tunnel connection attempts, globally and per remote IP.
// A nil *Limiter or zero rates mean no limiting.
type Limiter struct {
	mu        sync.Mutex
	global    *TokenBucket
	perKey    map[string]*TokenBucket
	keyRate   int
	burstSize int
}

// NewLimiter creates a limiter with the given per-second rates and burst size.
// A rate of 0 disables that arm.
func NewLimiter(globalRate, perKeyRate, burstSize int) *Limiter {
	l := &Limiter{
		perKey:    make(map[string]*TokenBucket),
		keyRate:   perKeyRate,
		burstSize: burstSize,
	}
	if globalRate > 0 {
		l.global = NewTokenBucket(globalRate, burstSize)
	}
	return l
}

// Allow checks if a connection attempt from key is allowed.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	if l.global != nil && !l.global.Allow() {
		return false
	}
	if l.keyRate > 0 {
		l.mu.Lock()
		bucket, exists := l.perKey[key]
		if !exists {
			bucket = NewTokenBucket(l.keyRate, l.burstSize)
			l.perKey[key] = bucket
		}
		l.mu.Unlock()

		if !bucket.Allow() {
			return false
		}
	}
	return true
}

// Cleanup removes buckets for keys not in active, to keep the map from
// growing with every remote IP ever seen.
func (l *Limiter) Cleanup(active map[string]bool) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.perKey {
		if !active[key] {
			delete(l.perKey, key)
		}
	}
}

package ratelimit

import (
	"sync"
	"time"
)

// KeyedLimiter keeps one token bucket per key (actor id, client address).
// Buckets idle for longer than idleTTL are evicted by a background sweep.
type KeyedLimiter struct {
	limiters   map[string]*TokenBucket
	mu         sync.Mutex
	maxTokens  float64
	refillRate float64
	idleTTL    time.Duration
	now        func() time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewKeyedLimiter creates a KeyedLimiter and starts its eviction loop.
func NewKeyedLimiter(maxTokens, refillRate float64, idleTTL time.Duration) *KeyedLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}

	l := &KeyedLimiter{
		limiters:   make(map[string]*TokenBucket),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		idleTTL:    idleTTL,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow checks if a request for key can proceed
func (l *KeyedLimiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Len returns the number of tracked keys
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *KeyedLimiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.limiters[key]
	if !ok {
		b = NewTokenBucket(l.maxTokens, l.refillRate)
		b.now = l.now
		b.lastRefillTime = l.now()
		l.limiters[key] = b
	}
	return b
}

// evictIdle drops buckets that have not been used within idleTTL.
func (l *KeyedLimiter) evictIdle() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idleTTL)
	evicted := 0
	for key, b := range l.limiters {
		if b.lastUsed().Before(cutoff) {
			delete(l.limiters, key)
			evicted++
		}
	}
	return evicted
}

func (l *KeyedLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stopChan:
			return
		}
	}
}

// Stop stops the eviction loop
func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

package http

import (
	"math"
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

// RateLimiter is a token bucket per client key with idle buckets pruned after the TTL.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	capacity   float64
	refillRate float64
	ttl        time.Duration
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRateLimiter constructs a rate limiter and starts its pruning loop.
func NewRateLimiter(burst int, refillPerSecond float64, ttl time.Duration) *RateLimiter {
	rl := &RateLimiter{
		buckets:    make(map[string]*bucket),
		capacity:   float64(burst),
		refillRate: refillPerSecond,
		ttl:        ttl,
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	if ttl > 0 {
		go rl.pruneLoop()
	}

	return rl
}

// Allow consumes a token for the key if one is available.
func (rl *RateLimiter) Allow(key string) bool {
	_, ok := rl.take(key)
	return ok
}

// Reserve consumes a token like Allow and, when denied, reports how long until the next token.
func (rl *RateLimiter) Reserve(key string) (time.Duration, bool) {
	return rl.take(key)
}

// Stop ends the pruning loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) take(key string) (time.Duration, bool) {
	if key == "" {
		key = "unknown"
	}

	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity, last: now}
		rl.buckets[key] = b
	}
	b.lastSeen = now

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(rl.capacity, b.tokens+elapsed*rl.refillRate)
		b.last = now
	}

	if b.tokens < 1 {
		missing := 1 - b.tokens
		return time.Duration(missing / rl.refillRate * float64(time.Second)), false
	}

	b.tokens--
	return 0, true
}

func (rl *RateLimiter) pruneLoop() {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.pruneStale()
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) pruneStale() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
}

package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Token Bucket Rate Limiter
// ──────────────────────────────────────────────────────────────────────────────

const (
	evictEvery = 5 * time.Minute
	evictAfter = 10 * time.Minute
)

// bucket is a token bucket for one client IP.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// rateLimiter holds per-IP buckets.
type rateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64
	now     func() time.Time
}

// newRateLimiter creates a limiter allowing rps requests per second with a
// burst of max(5, rps).
func newRateLimiter(rps int) *rateLimiter {
	if rps < 1 {
		rps = 1
	}
	burst := float64(rps)
	if burst < 5 {
		burst = 5
	}
	return &rateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(rps),
		burst:   burst,
		now:     time.Now,
	}
}

// allow deducts one token from key's bucket and reports whether one was
// available.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		if b, ok = rl.buckets[key]; !ok {
			b = &bucket{tokens: rl.burst, lastRefill: rl.now()}
			rl.buckets[key] = b
		}
		rl.mu.Unlock()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * rl.rate
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evict drops buckets idle since before cutoff.
func (rl *rateLimiter) evict(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		b.mu.Lock()
		if b.lastRefill.Before(cutoff) {
			delete(rl.buckets, ip)
		}
		b.mu.Unlock()
	}
}

// RateLimitMiddleware enforces a per-IP token bucket of rps requests per
// second. Clients over the limit get 429 in the standard error envelope. Idle
// buckets are evicted until ctx is cancelled.
func RateLimitMiddleware(ctx context.Context, rps int) gin.HandlerFunc {
	rl := newRateLimiter(rps)

	go func() {
		ticker := time.NewTicker(evictEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.evict(rl.now().Add(-evictAfter))
			}
		}
	}()

	retryAfter := strconv.Itoa(int(1/rl.rate) + 1)
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
				"code":    "ERR_RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

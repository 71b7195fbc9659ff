package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/response"
)

// RateLimiter is an in-memory token bucket keyed by client IP.
type RateLimiter struct {
	capacity   int
	perMinute  int
	maxBuckets int
	mu         sync.Mutex
	buckets    map[string]*bucket
	lastSweep  time.Time
	now        func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewRateLimiter allows bursts of capacity requests refilled at perMinute.
func NewRateLimiter(capacity, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	if capacity <= 0 {
		capacity = perMinute
	}
	return &RateLimiter{
		capacity:   capacity,
		perMinute:  perMinute,
		maxBuckets: 10000,
		buckets:    make(map[string]*bucket),
		now:        time.Now,
	}
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.Allow(key) {
			c.Header("Retry-After", "60")
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Allow consumes a token for key.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: float64(l.capacity - 1), last: now}
		l.evict(now)
		return true
	}
	b.tokens += now.Sub(b.last).Minutes() * float64(l.perMinute)
	if b.tokens > float64(l.capacity) {
		b.tokens = float64(l.capacity)
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// evict drops buckets that have been idle long enough to be full again.
// Sweeps run at most once per idle window.
func (l *RateLimiter) evict(now time.Time) {
	if len(l.buckets) < l.maxBuckets {
		return
	}
	idle := time.Duration(float64(time.Minute) * float64(l.capacity) / float64(l.perMinute))
	if !l.lastSweep.IsZero() && now.Sub(l.lastSweep) < idle {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.last) > idle {
			delete(l.buckets, key)
		}
	}
}

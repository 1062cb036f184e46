package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

// DefaultLimiterIdleTTL is how long an unused bucket is kept.
const DefaultLimiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per key. Buckets idle for longer
// than the idle TTL are dropped.
type KeyedRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	r         rate.Limit
	b         int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewKeyedRateLimiter builds a limiter allowing r events per second with
// burst b for each key.
func NewKeyedRateLimiter(r rate.Limit, b int) *KeyedRateLimiter {
	return &KeyedRateLimiter{
		limiters: make(map[string]*limiterEntry),
		r:        r,
		b:        b,
		idleTTL:  DefaultLimiterIdleTTL,
		now:      time.Now,
	}
}

// Allow consumes one token for key.
func (k *KeyedRateLimiter) Allow(key string) bool {
	k.mu.Lock()
	now := k.now()
	if now.Sub(k.lastSweep) >= k.idleTTL {
		k.sweep(now)
	}
	entry, ok := k.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(k.r, k.b)}
		k.limiters[key] = entry
	}
	entry.lastSeen = now
	k.mu.Unlock()
	return entry.limiter.AllowN(now, 1)
}

// Len reports how many buckets are tracked.
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

func (k *KeyedRateLimiter) sweep(now time.Time) {
	for key, entry := range k.limiters {
		if now.Sub(entry.lastSeen) >= k.idleTTL {
			delete(k.limiters, key)
		}
	}
	k.lastSweep = now
}

// RateLimitByIP rejects callers that exceed the limiter.
func RateLimitByIP(limiter *KeyedRateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !limiter.Allow(c.IP()) {
			return apperrors.NewRateLimited("too many requests from this address")
		}
		return c.Next()
	}
}

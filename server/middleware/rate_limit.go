// Package middleware holds echo middlewares shared by the API routes.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	aierrors "github.com/hrygo/notesrag/internal/errors"
)

const (
	// DefaultRate is the sustained per-user ask rate.
	DefaultRate = rate.Limit(1)
	// DefaultBurst is how many asks a user may send back to back.
	DefaultBurst = 5
)

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*limiterEntry
	rate   rate.Limit
	burst  int
	now    func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. Non-positive values fall back to the defaults.
func NewRateLimiter(r rate.Limit, burst int) *RateLimiter {
	if r <= 0 {
		r = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &RateLimiter{
		limits: make(map[string]*limiterEntry),
		rate:   r,
		burst:  burst,
		now:    time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limits[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limits[key] = entry
	}
	entry.lastSeen = rl.now()
	return entry.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).AllowN(rl.now(), 1)
}

// Prune drops limiters idle for longer than idle and returns how many were dropped.
func (rl *RateLimiter) Prune(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-idle)
	pruned := 0
	for key, entry := range rl.limits {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limits, key)
			pruned++
		}
	}
	return pruned
}

// Middleware rejects requests over the key's budget with 429.
func (rl *RateLimiter) Middleware(key func(c echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(key(c)) {
				err := aierrors.RateLimitExceeded("too many requests, slow down")
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"code":  string(err.Code),
					"error": err.Message,
				})
			}
			return next(c)
		}
	}
}

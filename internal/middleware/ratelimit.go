// ratelimit.go implements a per-IP rate limiter using a fixed window
// counter stored in memory. Designed for the code issuance and verification
// endpoints, on top of the per-phone pending-code limit.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// rateLimitEntry tracks request counts for a single IP within a time window.
type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// rateLimiter holds the shared state for one rate-limited route group.
// Stale entries are swept opportunistically on the request path, so the
// limiter owns no goroutine.
type rateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*rateLimitEntry
	max       int
	window    time.Duration
	lastSweep time.Time
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		entries: make(map[string]*rateLimitEntry),
		max:     maxRequests,
		window:  window,
	}
}

// allow records a request from ip at time now and reports whether it fits
// the window. At most once per window it also sweeps entries stale for two
// windows or more.
func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > rl.window {
		for key, entry := range rl.entries {
			if now.Sub(entry.windowStart) > rl.window*2 {
				delete(rl.entries, key)
			}
		}
		rl.lastSweep = now
	}

	entry, exists := rl.entries[ip]
	if !exists || now.Sub(entry.windowStart) > rl.window {
		rl.entries[ip] = &rateLimitEntry{count: 1, windowStart: now}
		return true
	}

	entry.count++
	return entry.count <= rl.max
}

// RateLimit returns middleware that limits requests per IP to maxRequests
// within the given window duration. Returns 429 when exceeded.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	rl := newRateLimiter(maxRequests, window)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.allow(c.RealIP(), time.Now()) {
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"success": false,
					"type":    "rate_limited",
					"message": "too many requests; try again later",
				})
			}
			return next(c)
		}
	}
}

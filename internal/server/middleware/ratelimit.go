package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter implements an in-memory sliding-window limit on session
// starts. The bridge is a single local process, so no shared store is
// needed; all clients count against one window.
type RateLimiter struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	starts []time.Time
}

// NewRateLimiter creates a rate limiter allowing limit requests per window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: window,
	}
}

// Middleware returns an HTTP middleware that enforces the rate limit.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := rl.allow(time.Now())
			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "rate_limit_exceeded",
					"message": fmt.Sprintf("rate limit exceeded, retry after %ds", int(retryAfter.Seconds())),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) allow(now time.Time) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	windowStart := now.Add(-rl.window)
	kept := rl.starts[:0]
	for _, t := range rl.starts {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}
	rl.starts = kept

	if len(rl.starts) >= rl.limit {
		retryAfter := rl.starts[0].Add(rl.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	rl.starts = append(rl.starts, now)
	return true, 0
}

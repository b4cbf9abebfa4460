package middleware

import (
	"net/http"
	"time"

	"github.com/scanpay-verify/internal/pkg/clientip"
	"github.com/scanpay-verify/internal/pkg/logging"
	"github.com/scanpay-verify/internal/pkg/store"
)

// RateLimiter is a fixed-window per-IP limiter backed by a shared counter,
// so every process behind the load balancer sees the same window.
type RateLimiter struct {
	counter store.Counter
	limit   int64
	window  time.Duration
}

// NewRateLimiter allows limit requests per IP in each window.
func NewRateLimiter(counter store.Counter, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{counter: counter, limit: int64(limit), window: window}
}

// Limit is the middleware handler that enforces the rate limit per client IP.
// A counter failure lets the request through.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.Resolve(r)
		n, err := rl.counter.Incr(r.Context(), "rl_"+ip, rl.window)
		if err != nil {
			logging.FromContext(r.Context()).Error("rate limit counter failed", "ip", ip, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if n > rl.limit {
			logging.FromContext(r.Context()).Warn("Rate limit exceeded", "ip", ip, "count", n, "path", r.URL.Path)
			writeJSONError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many attempts. Please wait a minute and try again.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

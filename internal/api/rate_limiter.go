package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/cleanward/internal/auth"
)

// RateLimiter manages per-client rate limiting for API requests. Idle
// limiters expire so the table does not grow without bound.
type RateLimiter struct {
	limiters *cache.Cache
	mu       sync.Mutex

	limit     rate.Limit
	burstSize int
}

// NewRateLimiter creates a rate limiter allowing requestsPerMinute per client
func NewRateLimiter(requestsPerMinute, burst int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 120
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		limiters:  cache.New(10*time.Minute, 5*time.Minute),
		limit:     rate.Limit(float64(requestsPerMinute) / 60),
		burstSize: burst,
	}
}

// getLimiter returns the rate limiter for a client key
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	var limiter *rate.Limiter
	if v, ok := rl.limiters.Get(key); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(rl.limit, rl.burstSize)
	}
	// refresh the idle expiry on every request
	rl.limiters.SetDefault(key, limiter)
	return limiter
}

// RateLimitMiddleware enforces rate limiting per signed-in user, or per
// client IP for anonymous requests
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if s := auth.SessionFromContext(r.Context()); s.Authenticated {
				key = "user:" + s.UserID
			}

			limiter := rl.getLimiter(key)
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "Too many requests. Please wait a moment and try again.", map[string]interface{}{
					"limitPerMinute": float64(limiter.Limit()) * 60,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

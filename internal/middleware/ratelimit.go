package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"yieldwallet/pkg/logger"
)

// Counter is a shared expiring counter; pkg/cache.RedisCache implements it.
type Counter interface {
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimiter applies a fixed-window rate limit backed by Redis.
type RateLimiter struct {
	cache  Counter
	limit  int
	window time.Duration
	logger logger.Logger
}

// NewRateLimiter constructs a RateLimiter with the given limit and window.
func NewRateLimiter(cache Counter, limit int, window time.Duration, log logger.Logger) *RateLimiter {
	return &RateLimiter{
		cache:  cache,
		limit:  limit,
		window: window,
		logger: log,
	}
}

// Limit enforces the rate limit, keyed by client IP and, when available, user ID.
// When Redis is unreachable the request is let through.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.key(r)

		count, err := rl.cache.Increment(r.Context(), key)
		if err == nil && count == 1 {
			err = rl.cache.Expire(r.Context(), key, rl.window)
		}
		if err != nil {
			rl.logger.Warn("Rate limiter unavailable", map[string]interface{}{
				"error": err.Error(),
				"key":   key,
			})
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.limit))
		if count > int64(rl.limit) {
			w.Header().Set("X-RateLimit-Remaining", "0")
			jsonError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", int64(rl.limit)-count))

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) key(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	if userID, ok := UserIDFromContext(r.Context()); ok && userID != uuid.Nil {
		return fmt.Sprintf("ratelimit:%s:%s", ip, userID.String())
	}
	return fmt.Sprintf("ratelimit:%s", ip)
}

package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	KeyPrefix         string
}

// RateLimiter is a fixed-window counter per client kept in Redis
type RateLimiter struct {
	client redis.Cmdable
	config RateLimitConfig
	logger *zap.Logger
}

func NewRateLimiter(client redis.Cmdable, config RateLimitConfig, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{client: client, config: config, logger: logger}
}

// Take counts one request for clientID and reports how many are left in the
// current window and when it resets
func (l *RateLimiter) Take(ctx context.Context, clientID string) (remaining int, reset time.Duration, err error) {
	key := fmt.Sprintf("%s:%s", l.config.KeyPrefix, clientID)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// The window starts with the first request; later ones only count
		pipe.SetNX(ctx, key, 0, l.config.Window)
		incr = pipe.Incr(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	reset = ttl.Val()
	if reset <= 0 {
		reset = l.config.Window
	}
	return l.config.RequestsPerWindow - int(incr.Val()), reset, nil
}

// clientID prefers the authenticated user and falls back to the peer address
func clientID(r *http.Request) string {
	if userID, ok := GetUserID(r.Context()); ok {
		return userID.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Middleware rejects requests over the limit with 429. Redis failures let
// the request through.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(l.config.RequestsPerWindow)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := clientID(r)

		remaining, reset, err := l.Take(r.Context(), id)
		if err != nil {
			l.logger.Error("Rate limiter unavailable", zap.Error(err), zap.String("client_id", id))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", limit)
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if remaining < 0 {
			l.logger.Warn("Rate limit exceeded",
				zap.String("client_id", id),
				zap.String("path", r.URL.Path),
			)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(int(reset.Round(time.Second).Seconds())))
			RespondWithRequestError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	})
}

// RateLimitMiddleware builds a RateLimiter and returns its middleware
func RateLimitMiddleware(client redis.Cmdable, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return NewRateLimiter(client, config, logger).Middleware
}

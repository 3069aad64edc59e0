// Package ratelimit implements fixed-window request budgets backed by Redis
// counters: INCR on every hit, EXPIRE on the first hit of a window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	// ErrRateLimited is returned once a key exceeds its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Policy is a single named budget.
type Policy struct {
	Name    string
	Max     int
	Window  time.Duration
	Message string
}

// Limiter counts hits per key in Redis.
type Limiter struct {
	redis redis.UniversalClient
}

func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// Allow records a hit for key under policy and reports ErrRateLimited when
// the window's budget is exhausted.
func (l *Limiter) Allow(ctx context.Context, policy Policy, key string) error {
	count, err := l.incrementWithTTL(ctx, counterKey(policy.Name, key), policy.Window)
	if err != nil {
		return err
	}
	if count > int64(policy.Max) {
		return ErrRateLimited
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func counterKey(policy, key string) string {
	return "rl:" + policy + ":" + key
}

// Middleware enforces policy per client IP. Redis failures let the request
// through and are logged.
func (l *Limiter) Middleware(policy Policy, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	retryAfter := humanWindow(policy.Window)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := l.Allow(r.Context(), policy, clientIP(r))
			switch {
			case err == nil:
			case errors.Is(err, ErrRateLimited):
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(policy.Window.Seconds())))
				writeLimited(w, policy.Message, retryAfter)
				return
			default:
				logger.Warn("rate limiter unavailable, allowing request",
					zap.String("policy", policy.Name),
					zap.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func humanWindow(d time.Duration) string {
	if d%time.Minute == 0 {
		minutes := int(d / time.Minute)
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	return d.String()
}

func writeLimited(w http.ResponseWriter, message, retryAfter string) {
	if message == "" {
		message = "Too many requests, please try again later."
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, "{\"error\":%q,\"retry_after\":%q}\n", message, retryAfter)
}

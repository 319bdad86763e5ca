// Package middleware provides the cross-cutting Fiber middleware: structured
// logging, tracing, metrics and rate limiting.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"nerdtalk/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// rateLimitTimeout bounds how long a request waits on Redis before the
// limiter fails open.
const rateLimitTimeout = 200 * time.Millisecond

// CheckRateLimit counts one hit for id against resource and reports whether
// it is still within limit for the current window.
func CheckRateLimit(ctx context.Context, rdb redis.Cmdable, resource, id string, limit int, window time.Duration) (bool, error) {
	if rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, rateLimitTimeout)
	defer cancel()

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return cnt <= int64(limit), nil
}

// RateLimiter builds per-route limits backed by Redis counters.
type RateLimiter struct {
	rdb     redis.Cmdable
	enabled bool
}

// NewRateLimiter returns a limiter. A disabled limiter or a nil client lets
// every request through.
func NewRateLimiter(rdb redis.Cmdable, enabled bool) *RateLimiter {
	if c, ok := rdb.(*redis.Client); ok && c == nil {
		rdb = nil
	}
	return &RateLimiter{rdb: rdb, enabled: enabled}
}

// Limit enforces limit requests per window for resource. Requests are keyed
// by the authenticated user when present, otherwise by remote IP. Redis
// failures fail open.
func (l *RateLimiter) Limit(resource string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.enabled || l.rdb == nil {
			return c.Next()
		}

		id := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(string); ok && uid != "" {
			id = "user:" + uid
		}

		allowed, err := CheckRateLimit(c.UserContext(), l.rdb, resource, id, limit, window)
		if err != nil {
			observability.RedisErrorRate.WithLabelValues("rate_limit").Inc()
			Logger.WarnContext(c.UserContext(), "rate limit check failed, allowing request",
				slog.String("resource", resource), slog.String("error", err.Error()))
			return c.Next()
		}
		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}

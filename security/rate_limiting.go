package security

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int64
	window time.Duration
}

// NewRateLimiter allows limit requests per client IP per minute. A nil redis
// client disables counting; the user agent check still applies.
func NewRateLimiter(redisClient *redis.Client, limit int) *RateLimiter {
	if limit <= 0 {
		limit = 30
	}
	return &RateLimiter{redis: redisClient, limit: int64(limit), window: time.Minute}
}

// AntiBot rejects crawler user agents and throttles each client IP. The IP
// honours the app's trusted proxy headers.
func (r *RateLimiter) AntiBot(e *core.RequestEvent) error {
	if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
		return e.JSON(http.StatusForbidden, map[string]string{
			"error": "Access denied",
		})
	}

	if r.redis == nil {
		return e.Next()
	}

	ctx := e.Request.Context()
	key := fmt.Sprintf("antibot:%s", e.RealIP())

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Error("r.redis.Incr()", "key", key, "error", err)
		return e.Next()
	}
	if count == 1 {
		r.redis.Expire(ctx, key, r.window)
	}
	if count > r.limit {
		return e.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Too many requests",
		})
	}

	return e.Next()
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}

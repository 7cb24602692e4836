package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/humanmixer/api/pkg/response"
)

// RateLimiter throttles expensive endpoints per client IP using Redis
// counters. Separation runs are far more expensive than mixes, so they
// get separate budgets.
type RateLimiter struct {
	redis *redis.Client
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient}
}

// Limit creates a rate limiting middleware
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, c.IP())
		ctx := context.Background()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// If Redis fails, allow the request rather than block mixing.
			return c.Next()
		}

		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// SeparationLimit returns a rate limiter for separation starts.
func (rl *RateLimiter) SeparationLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("separation", maxPerHour, time.Hour)
}

// MixLimit returns a rate limiter for mix requests.
func (rl *RateLimiter) MixLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("mix", maxPerMin, time.Minute)
}

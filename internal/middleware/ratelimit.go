package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// KeyByBodyEmail keys the limiter by the email field of the request body,
// falling back to the client IP.
func KeyByBodyEmail(c *fiber.Ctx) string {
	var req struct {
		Email string `json:"email"`
	}
	_ = c.BodyParser(&req)
	if email := strings.TrimSpace(req.Email); email != "" {
		return email
	}
	return c.IP()
}

// KeyByIP keys the limiter by the client IP.
func KeyByIP(c *fiber.Ctx) string {
	return c.IP()
}

// KeyByUser keys the limiter by the authenticated user, falling back to the
// client IP. It must run after Auth.
func KeyByUser(c *fiber.Ctx) string {
	if uid, _ := c.Locals("user_id").(string); uid != "" {
		return uid
	}
	return c.IP()
}

// RateLimit caps requests per key per minute using Redis if available.
func RateLimit(cache *redis.Client, scope string, maxPerMin int, key func(*fiber.Ctx) string) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next() // no-op without Redis
		}
		cacheKey := "rl:" + scope + ":" + key(c)
		cnt, err := cache.Incr(c.UserContext(), cacheKey).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), cacheKey, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many attempts, try again later")
		}
		return c.Next()
	}
}

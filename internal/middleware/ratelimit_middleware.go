package middleware

import (
	"context"
	"net/http"
	"strconv"

	"relay-chat/internal/redis"
	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type APILimiter interface {
	AllowAPI(ctx context.Context, client string) (*redis.RateLimitResult, error)
}

// RateLimitMiddleware applies the per-minute API window, keyed by the authenticated user or
// else the client IP. The limiter failing lets the request through.
func RateLimitMiddleware(limiter APILimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			client = "ip:" + c.ClientIP()
		}

		result, err := limiter.AllowAPI(c.Request.Context(), client)
		if err != nil {
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}

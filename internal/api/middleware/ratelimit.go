package middleware

import (
	"fmt"
	"net/http"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware limits each caller per endpoint. The caller is the
// authenticated caller id when OptionalAuthMiddleware ran before it,
// otherwise the client IP.
func RateLimitMiddleware(limiter ratelimit.Limiter, general ratelimit.RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		config := getRateLimitConfig(path, general)

		caller := "ip:" + c.ClientIP()
		if id, ok := c.Get(CallerIDKey); ok {
			caller = fmt.Sprintf("caller:%v", id)
		}
		key := fmt.Sprintf("ratelimit:%s:%s", caller, path)

		info, err := limiter.CheckLimitWithInfo(c.Request.Context(), key, config)
		if err != nil {
			logger.Error("Rate limit check failed", zap.Error(err))
			// Fail open
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", info.Reset.Unix()))

		if !info.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))

			logger.Warn("Rate limit exceeded",
				zap.String("caller", caller),
				zap.String("path", path),
				zap.Int("limit", info.Limit),
			)
			metrics.RecordRateLimitRejection(path)

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "RATE_LIMITED",
				"message":     "Rate limit exceeded",
				"limit":       info.Limit,
				"retry_after": fmt.Sprintf("%d seconds", int(info.RetryAfter.Seconds())),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// getRateLimitConfig returns appropriate rate limit based on endpoint
func getRateLimitConfig(path string, general ratelimit.RateLimitConfig) ratelimit.RateLimitConfig {
	switch path {
	case "/api/validate-batch":
		return ratelimit.BatchRateLimit
	case "/api/authorize-card", "/api/refund/:chargeId":
		return ratelimit.AuthorizationRateLimit
	default:
		if general.Requests <= 0 || general.Window <= 0 {
			return ratelimit.GeneralRateLimit
		}
		return general
	}
}

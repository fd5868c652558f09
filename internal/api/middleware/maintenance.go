package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
)

// MaintenanceKey holds "true" while the service is in maintenance mode.
const MaintenanceKey = "system:maintenance"

// MaintenanceMiddleware checks if the system is in maintenance mode.
// A nil client disables the check.
func MaintenanceMiddleware(redisClient *redis.Client, bypassToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil {
			c.Next()
			return
		}

		// Public health/metrics endpoints should always be accessible
		path := c.Request.URL.Path
		if path == "/health" || path == "/ready" || path == "/metrics" || path == "/" {
			c.Next()
			return
		}

		// Short timeout so a slow Redis never blocks requests
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		val, err := redisClient.Get(ctx, MaintenanceKey).Result()
		if err != nil && err != redis.Nil {
			// Fail open
			logger.Error("Failed to check maintenance mode", zap.Error(err))
			c.Next()
			return
		}

		if val == "true" {
			if bypassToken != "" && c.GetHeader("X-Maintenance-Bypass") == bypassToken {
				c.Next()
				return
			}

			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "SERVICE_UNAVAILABLE",
				"message": "Payment validation is under maintenance. Please try again later.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

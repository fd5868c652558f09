package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/ddos"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DDoSMiddleware rejects client IPs over the traffic threshold. A nil
// protection disables the check.
func DDoSMiddleware(protection *ddos.Protection) gin.HandlerFunc {
	return func(c *gin.Context) {
		if protection == nil {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		ip := c.ClientIP()
		count, blocked, err := protection.Track(ctx, ip)
		if err != nil {
			// Fail open
			logger.Warn("Traffic tracking failed", zap.Error(err))
			c.Next()
			return
		}

		if blocked {
			metrics.RecordAbuseBlock()
			logger.Warn("Client IP blocked",
				zap.String("ip", ip),
				zap.Int64("requests", count),
			)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "TOO_MANY_REQUESTS",
				"message": "Too many requests from this address",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

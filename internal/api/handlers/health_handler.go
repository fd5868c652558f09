package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/gateway"
	"github.com/gin-gonic/gin"
)

// ReadinessCheck reports whether one dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// ProcessorHealth is satisfied by service.AuthorizationService.
type ProcessorHealth interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	version        string
	processor      ProcessorHealth
	fraudProviders []string
	checks         map[string]ReadinessCheck
}

func NewHealthHandler(version string, processor ProcessorHealth, fraudProviders []string, checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		version:        version,
		processor:      processor,
		fraudProviders: fraudProviders,
		checks:         checks,
	}
}

func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Payment Risk API",
		"version": h.version,
		"status":  "operational",
	})
}

func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"version":   h.version,
	})
}

// Ready runs every readiness check with a short deadline.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status":         state,
		"checks":         results,
		"fraudProviders": h.fraudProviders,
	})
}

// StripeHealth godoc
// @Summary Payment processor connectivity
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/stripe-health [get]
func (h *HealthHandler) StripeHealth(c *gin.Context) {
	err := h.processor.Health(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	case errors.Is(err, gateway.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_configured"})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
	}
}

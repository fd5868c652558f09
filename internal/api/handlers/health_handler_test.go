package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/gateway"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupHealthRouter(processor ProcessorHealth, checks map[string]ReadinessCheck) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewHealthHandler("1.2.3", processor, []string{"minfraud", "ipqs"}, checks)
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/api/stripe-health", h.StripeHealth)
	return router
}

func TestHealthHandler_Health(t *testing.T) {
	router := setupHealthRouter(new(MockAuthorizationService), nil)

	w := get(router, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)
}

func TestHealthHandler_Root(t *testing.T) {
	router := setupHealthRouter(new(MockAuthorizationService), nil)

	w := get(router, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "operational")
}

func TestHealthHandler_Ready(t *testing.T) {
	router := setupHealthRouter(new(MockAuthorizationService), map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return nil },
	})

	w := get(router, "/ready")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"ok"`)
	assert.Contains(t, w.Body.String(), "minfraud")
}

func TestHealthHandler_NotReady(t *testing.T) {
	router := setupHealthRouter(new(MockAuthorizationService), map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})

	w := get(router, "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_ready")
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestHealthHandler_StripeHealth(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"not configured", gateway.ErrNotConfigured, http.StatusServiceUnavailable, "not_configured"},
		{"unhealthy", gateway.ErrProcessorUnavailable, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockAuthorizationService)
			mockService.On("Health", mock.Anything).Return(tt.err)
			router := setupHealthRouter(mockService, nil)

			w := get(router, "/api/stripe-health")

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

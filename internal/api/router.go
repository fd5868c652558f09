package api

import (
	"context"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/api/handlers"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/api/middleware"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/config"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/ddos"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/jwt"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/ratelimit"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Dependencies are the collaborators the HTTP surface is built from.
// Security, Redis, DDoS and JWT are optional.
type Dependencies struct {
	Config         *config.Config
	Validation     service.ValidationService
	Authorization  service.AuthorizationService
	Security       service.SecurityService
	Limiter        ratelimit.Limiter
	Redis          *redis.Client
	DDoS           *ddos.Protection
	JWT            *jwt.JWTService
	FraudProviders []string
	Version        string
}

func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.MetricsMiddleware(),
		middleware.CORSMiddleware(cfg.Server.AllowedOrigins...),
		middleware.MaintenanceMiddleware(deps.Redis, cfg.Security.MaintenanceBypass),
	)

	checks := map[string]handlers.ReadinessCheck{}
	if deps.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}
	}

	var decrypter handlers.CardDecrypter
	if deps.Security != nil {
		decrypter = deps.Security
	}

	exposeDetail := !cfg.IsProduction()
	health := handlers.NewHealthHandler(deps.Version, deps.Authorization, deps.FraudProviders, checks)
	validation := handlers.NewValidationHandler(deps.Validation, decrypter, exposeDetail)
	authorization := handlers.NewAuthorizationHandler(deps.Authorization, decrypter, exposeDetail)

	router.GET("/", health.Root)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(
		middleware.DDoSMiddleware(deps.DDoS),
		middleware.TimeoutMiddleware(cfg.Server.RequestTimeout),
	)
	if deps.JWT != nil {
		api.Use(middleware.OptionalAuthMiddleware(deps.JWT))
	}
	api.Use(middleware.RateLimitMiddleware(deps.Limiter, ratelimit.RateLimitConfig{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
	}))
	{
		api.POST("/validate-payment", validation.ValidatePayment)
		api.POST("/validate-batch", validation.ValidateBatch)
		api.GET("/bin-lookup/:bin", validation.LookupBIN)
		api.POST("/detect-card-type", validation.DetectCardType)
		api.GET("/stats", validation.Stats)

		api.POST("/authorize-card", authorization.AuthorizeCard)
		api.GET("/authorization/:authId", authorization.GetAuthorization)
		api.GET("/refund-status/:chargeId", authorization.RefundStatus)
		api.GET("/authorization-stats", authorization.Stats)
		api.GET("/stripe-health", health.StripeHealth)

		if deps.Security != nil {
			api.GET("/public-key", handlers.NewSecurityHandler(deps.Security).GetPublicKey)
		}

		// Manual refunds move money and need a scoped token when JWT is configured
		refunds := api.Group("/refund")
		if deps.JWT != nil {
			refunds.Use(middleware.AuthMiddleware(deps.JWT), middleware.RequireScope(jwt.ScopeRefund))
		}
		refunds.POST("/:chargeId", authorization.Refund)
	}

	return router
}

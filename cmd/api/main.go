package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/api"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/binlookup"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/config"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/events"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/fraud"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/gateway"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/cache"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/crypto"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/ddos"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/jwt"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/metrics"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/ratelimit"
	"github.com/1-ManArmy/onelast-ai-sub000/internal/service"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "1.0.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "paymentd",
		Short:   "Payment validation and fraud-risk API server",
		Version: version,
		Long: `Serves the payment validation API.

Configuration comes from environment variables (a .env file is loaded when
present) and an optional config file passed with --config.`,
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "optional path to a config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Server.Env)
	defer logger.Sync()

	metrics.SetSystemInfo(version, runtime.Version())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Redis is optional; without it every backend falls back to memory
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		defer redisClient.Close()
	}

	var (
		store   cache.Store
		limiter ratelimit.Limiter
		counter fraud.Counter
	)
	if redisClient != nil {
		store = cache.NewRedisStore(redisClient)
		counter = fraud.NewRedisCounter(redisClient)
	} else {
		mem := cache.NewMemoryStore(cfg.Cache.MaxEntries)
		go mem.Run(ctx, time.Minute)
		store = mem
		counter = fraud.NewMemoryCounter()
	}
	if cfg.RateLimit.Backend == "redis" {
		limiter = ratelimit.NewRedisLimiter(redisClient)
	} else {
		mem := ratelimit.NewMemoryLimiter(cfg.RateLimit.IdleTTL)
		go mem.Run(ctx)
		limiter = mem
	}

	binProviders, err := binlookup.BuildProviders(cfg.BIN)
	if err != nil {
		logger.Fatal("Invalid BIN provider configuration", zap.Error(err))
	}
	resolver := binlookup.NewResolver(
		binProviders,
		binlookup.DefaultStaticTable(),
		cache.New(store, "bin"),
		cfg.Cache.BinTTL,
		cfg.BIN.Timeout,
	)

	fraudProviders := fraud.BuildProviders(cfg.Fraud, counter)
	for _, p := range fraudProviders {
		if v, ok := p.(*fraud.VelocityProvider); ok {
			go v.Monitor(ctx, time.Minute)
		}
	}
	weights, _ := cfg.Fraud.ProviderWeights()
	aggregator := fraud.NewAggregator(fraudProviders, weights, cfg.Fraud.Timeout)
	logger.Info("Fraud providers configured", zap.Strings("providers", aggregator.Configured()))

	fingerprinter, err := crypto.NewFingerprinter(cfg.Security.FingerprintKey)
	if err != nil {
		logger.Fatal("Invalid fingerprint key", zap.Error(err))
	}

	producer, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, !cfg.Kafka.Enabled)
	if err != nil {
		logger.Fatal("Failed to create event producer", zap.Error(err))
	}

	validationService := service.NewValidationService(
		resolver,
		aggregator,
		service.NewRiskScorer(cfg.Scoring),
		cache.New(store, "validation"),
		fingerprinter,
		producer,
		service.ValidationConfig{
			CacheTTL:    cfg.Cache.ValidationTTL,
			MaxBatch:    cfg.Batch.MaxSize,
			Concurrency: cfg.Batch.Concurrency,
		},
	)

	amount, _ := cfg.Stripe.VerificationAmountDecimal()
	authService := service.NewAuthorizationService(
		gateway.NewStripeProcessor(cfg.Stripe.SecretKey),
		cache.New(store, "authorization"),
		producer,
		service.AuthorizationConfig{
			Amount:          amount,
			Currency:        cfg.Stripe.VerificationCurrency,
			AutoRefund:      cfg.Stripe.AutoRefundEnabled,
			AutoRefundDelay: cfg.Stripe.AutoRefundDelay,
			CacheTTL:        cfg.Cache.AuthorizationTTL,
			ExposeDetail:    !cfg.IsProduction(),
		},
	)

	securityService, err := service.NewSecurityService(cfg.Security.CardEncryptionKey)
	if err != nil {
		logger.Fatal("Invalid card encryption key", zap.Error(err))
	}

	var protection *ddos.Protection
	if redisClient != nil {
		protection = ddos.NewProtection(redisClient, cfg.Security.IPThreshold, cfg.Security.IPWindow)
		go protection.Monitor(ctx, 10*time.Second)
	}

	var jwtService *jwt.JWTService
	if cfg.JWT.Secret != "" {
		jwtService = jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpiryHours)
	} else {
		logger.Warn("JWT_SECRET not set, manual refunds are unauthenticated")
	}

	router := api.NewRouter(api.Dependencies{
		Config:         cfg,
		Validation:     validationService,
		Authorization:  authService,
		Security:       securityService,
		Limiter:        limiter,
		Redis:          redisClient,
		DDoS:           protection,
		JWT:            jwtService,
		FraudProviders: aggregator.Configured(),
		Version:        version,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("version", version),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Pending auto-refunds are flushed before the producer they report to closes
	if err := authService.Shutdown(shutdownCtx); err != nil {
		logger.Error("Pending auto-refunds did not complete", zap.Error(err))
	}
	if err := producer.Close(); err != nil {
		logger.Error("Failed to close event producer", zap.Error(err))
	}
	stop()

	logger.Info("Server exited")
	return nil
}

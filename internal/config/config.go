package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	BIN       BINConfig       `mapstructure:"bin"`
	Fraud     FraudConfig     `mapstructure:"fraud"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Scoring   risk.Weights    `mapstructure:"scoring"`
	Batch     BatchConfig     `mapstructure:"batch"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Security  SecurityConfig  `mapstructure:"security"`
}

type ServerConfig struct {
	Env             string        `mapstructure:"env"`
	Port            string        `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	BinTTL           time.Duration `mapstructure:"bin_ttl"`
	ValidationTTL    time.Duration `mapstructure:"validation_ttl"`
	AuthorizationTTL time.Duration `mapstructure:"authorization_ttl"`
	MaxEntries       int           `mapstructure:"max_entries"`
}

type BINConfig struct {
	Providers      []string      `mapstructure:"providers"`
	Timeout        time.Duration `mapstructure:"timeout"`
	BinlistURL     string        `mapstructure:"binlist_url"`
	NeutrinoURL    string        `mapstructure:"neutrino_url"`
	NeutrinoUserID string        `mapstructure:"neutrino_user_id"`
	NeutrinoAPIKey string        `mapstructure:"neutrino_api_key"`
	APILayerURL    string        `mapstructure:"apilayer_url"`
	APILayerKey    string        `mapstructure:"apilayer_key"`
}

type FraudConfig struct {
	Timeout                time.Duration `mapstructure:"timeout"`
	Weights                string        `mapstructure:"weights"`
	MinFraudURL            string        `mapstructure:"minfraud_url"`
	MinFraudAccountID      string        `mapstructure:"minfraud_account_id"`
	MinFraudLicenseKey     string        `mapstructure:"minfraud_license_key"`
	IPQSURL                string        `mapstructure:"ipqs_url"`
	IPQSKey                string        `mapstructure:"ipqs_key"`
	DecisionManagerURL     string        `mapstructure:"decision_manager_url"`
	DecisionManagerMerchID string        `mapstructure:"decision_manager_merchant_id"`
	DecisionManagerKey     string        `mapstructure:"decision_manager_key"`
	VelocityWindow         time.Duration `mapstructure:"velocity_window"`
	VelocityCardLimit      int           `mapstructure:"velocity_card_limit"`
	VelocityBINLimit       int           `mapstructure:"velocity_bin_limit"`
}

type StripeConfig struct {
	SecretKey            string        `mapstructure:"secret_key"`
	VerificationAmount   string        `mapstructure:"verification_amount"`
	VerificationCurrency string        `mapstructure:"verification_currency"`
	AutoRefundEnabled    bool          `mapstructure:"auto_refund_enabled"`
	AutoRefundDelay      time.Duration `mapstructure:"auto_refund_delay"`
}

type BatchConfig struct {
	MaxSize     int `mapstructure:"max_size"`
	Concurrency int `mapstructure:"concurrency"`
}

type RateLimitConfig struct {
	Backend  string        `mapstructure:"backend"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	IdleTTL  time.Duration `mapstructure:"idle_ttl"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type SecurityConfig struct {
	FingerprintKey    string        `mapstructure:"fingerprint_key"`
	MaintenanceBypass string        `mapstructure:"maintenance_bypass"`
	CardEncryptionKey string        `mapstructure:"card_encryption_key"` // PEM; empty generates a key per process
	IPThreshold       int64         `mapstructure:"ip_threshold"`
	IPWindow          time.Duration `mapstructure:"ip_window"`
}

// IsProduction reports whether raw processor detail must be withheld.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// VerificationAmountDecimal parses the configured authorization amount.
func (s StripeConfig) VerificationAmountDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(s.VerificationAmount)
}

// ProviderWeights parses "name=weight,name=weight" into a map. An empty
// string yields nil, meaning every provider counts equally.
func (f FraudConfig) ProviderWeights() (map[string]float64, error) {
	if strings.TrimSpace(f.Weights) == "" {
		return nil, nil
	}
	weights := make(map[string]float64)
	for _, pair := range strings.Split(f.Weights, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid fraud weight %q", pair)
		}
		w, err := strconv.ParseFloat(raw, 64)
		if err != nil || w < 0 {
			return nil, fmt.Errorf("invalid fraud weight %q", pair)
		}
		weights[name] = w
	}
	return weights, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Batch.MaxSize <= 0 || c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch max_size and concurrency must be positive")
	}
	if c.RateLimit.Backend != "redis" && c.RateLimit.Backend != "memory" {
		return fmt.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("redis rate limit backend requires redis to be enabled")
	}
	if _, err := c.Stripe.VerificationAmountDecimal(); err != nil {
		return fmt.Errorf("invalid stripe verification amount: %w", err)
	}
	if _, err := c.Fraud.ProviderWeights(); err != nil {
		return err
	}
	if c.IsProduction() && c.Security.FingerprintKey == "" {
		return fmt.Errorf("FINGERPRINT_KEY is required in production")
	}
	return nil
}

// Load reads configuration from an optional config file and the environment.
// Environment variables win over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

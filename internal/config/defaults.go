package config

import (
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/domain/risk"
	"github.com/spf13/viper"
)

type envBinding struct {
	key string
	env string
}

var envBindings = []envBinding{
	{"server.env", "ENV"},
	{"server.port", "PORT"},
	{"server.request_timeout", "REQUEST_TIMEOUT"},
	{"server.shutdown_timeout", "SHUTDOWN_TIMEOUT"},
	{"server.allowed_origins", "ALLOWED_ORIGINS"},

	{"redis.enabled", "REDIS_ENABLED"},
	{"redis.addr", "REDIS_ADDR"},
	{"redis.password", "REDIS_PASSWORD"},
	{"redis.db", "REDIS_DB"},

	{"cache.bin_ttl", "CACHE_BIN_TTL"},
	{"cache.validation_ttl", "CACHE_VALIDATION_TTL"},
	{"cache.authorization_ttl", "CACHE_AUTHORIZATION_TTL"},
	{"cache.max_entries", "CACHE_MAX_ENTRIES"},

	{"bin.providers", "BIN_PROVIDERS"},
	{"bin.timeout", "BIN_PROVIDER_TIMEOUT"},
	{"bin.binlist_url", "BINLIST_URL"},
	{"bin.neutrino_url", "NEUTRINO_URL"},
	{"bin.neutrino_user_id", "NEUTRINO_USER_ID"},
	{"bin.neutrino_api_key", "NEUTRINO_API_KEY"},
	{"bin.apilayer_url", "APILAYER_URL"},
	{"bin.apilayer_key", "APILAYER_KEY"},

	{"fraud.timeout", "FRAUD_PROVIDER_TIMEOUT"},
	{"fraud.weights", "FRAUD_PROVIDER_WEIGHTS"},
	{"fraud.minfraud_url", "MINFRAUD_URL"},
	{"fraud.minfraud_account_id", "MINFRAUD_ACCOUNT_ID"},
	{"fraud.minfraud_license_key", "MINFRAUD_LICENSE_KEY"},
	{"fraud.ipqs_url", "IPQS_URL"},
	{"fraud.ipqs_key", "IPQS_API_KEY"},
	{"fraud.decision_manager_url", "DECISION_MANAGER_URL"},
	{"fraud.decision_manager_merchant_id", "DECISION_MANAGER_MERCHANT_ID"},
	{"fraud.decision_manager_key", "DECISION_MANAGER_KEY"},
	{"fraud.velocity_window", "VELOCITY_WINDOW"},
	{"fraud.velocity_card_limit", "VELOCITY_CARD_LIMIT"},
	{"fraud.velocity_bin_limit", "VELOCITY_BIN_LIMIT"},

	{"stripe.secret_key", "STRIPE_SECRET_KEY"},
	{"stripe.verification_amount", "AUTH_VERIFICATION_AMOUNT"},
	{"stripe.verification_currency", "AUTH_VERIFICATION_CURRENCY"},
	{"stripe.auto_refund_enabled", "AUTO_REFUND_ENABLED"},
	{"stripe.auto_refund_delay", "AUTO_REFUND_DELAY"},

	{"scoring.format", "SCORE_WEIGHT_FORMAT"},
	{"scoring.luhn", "SCORE_WEIGHT_LUHN"},
	{"scoring.expiry", "SCORE_WEIGHT_EXPIRY"},
	{"scoring.cvv", "SCORE_WEIGHT_CVV"},
	{"scoring.amount", "SCORE_WEIGHT_AMOUNT"},
	{"scoring.billing_address", "SCORE_WEIGHT_BILLING_ADDRESS"},
	{"scoring.fraud_high", "SCORE_WEIGHT_FRAUD_HIGH"},
	{"scoring.fraud_medium", "SCORE_WEIGHT_FRAUD_MEDIUM"},
	{"scoring.prepaid", "SCORE_WEIGHT_PREPAID"},
	{"scoring.bin_country", "SCORE_WEIGHT_BIN_COUNTRY"},
	{"scoring.minor_factor", "SCORE_WEIGHT_MINOR_FACTOR"},

	{"batch.max_size", "BATCH_MAX_SIZE"},
	{"batch.concurrency", "BATCH_CONCURRENCY"},

	{"ratelimit.backend", "RATE_LIMIT_BACKEND"},
	{"ratelimit.requests", "RATE_LIMIT_REQUESTS"},
	{"ratelimit.window", "RATE_LIMIT_WINDOW"},
	{"ratelimit.idle_ttl", "RATE_LIMIT_IDLE_TTL"},

	{"jwt.secret", "JWT_SECRET"},
	{"jwt.expiry_hours", "JWT_EXPIRY_HOURS"},

	{"kafka.enabled", "KAFKA_ENABLED"},
	{"kafka.brokers", "KAFKA_BROKERS"},
	{"kafka.topic", "KAFKA_TOPIC"},

	{"security.fingerprint_key", "FINGERPRINT_KEY"},
	{"security.maintenance_bypass", "MAINTENANCE_BYPASS_TOKEN"},
	{"security.card_encryption_key", "CARD_ENCRYPTION_PRIVATE_KEY"},
	{"security.ip_threshold", "DDOS_IP_THRESHOLD"},
	{"security.ip_window", "DDOS_IP_WINDOW"},
}

func bindEnv(v *viper.Viper) {
	for _, b := range envBindings {
		_ = v.BindEnv(b.key, b.env)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.env", "development")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout", 25*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.bin_ttl", 24*time.Hour)
	v.SetDefault("cache.validation_ttl", 5*time.Minute)
	v.SetDefault("cache.authorization_ttl", time.Hour)
	v.SetDefault("cache.max_entries", 10000)

	v.SetDefault("bin.providers", []string{"binlist", "neutrino", "apilayer"})
	v.SetDefault("bin.timeout", 5*time.Second)
	v.SetDefault("bin.binlist_url", "https://lookup.binlist.net")
	v.SetDefault("bin.neutrino_url", "https://neutrinoapi.net/bin-lookup")
	v.SetDefault("bin.apilayer_url", "https://api.apilayer.com/bincheck")

	v.SetDefault("fraud.timeout", 10*time.Second)
	v.SetDefault("fraud.minfraud_url", "https://minfraud.maxmind.com/minfraud/v2.0/score")
	v.SetDefault("fraud.ipqs_url", "https://www.ipqualityscore.com/api/json/ip")
	v.SetDefault("fraud.velocity_window", time.Hour)
	v.SetDefault("fraud.velocity_card_limit", 5)
	v.SetDefault("fraud.velocity_bin_limit", 50)

	v.SetDefault("stripe.verification_amount", "1.00")
	v.SetDefault("stripe.verification_currency", "usd")
	v.SetDefault("stripe.auto_refund_enabled", true)
	v.SetDefault("stripe.auto_refund_delay", 5*time.Second)

	w := risk.DefaultWeights()
	v.SetDefault("scoring.format", w.Format)
	v.SetDefault("scoring.luhn", w.Luhn)
	v.SetDefault("scoring.expiry", w.Expiry)
	v.SetDefault("scoring.cvv", w.CVV)
	v.SetDefault("scoring.amount", w.Amount)
	v.SetDefault("scoring.billing_address", w.BillingAddress)
	v.SetDefault("scoring.fraud_high", w.FraudHigh)
	v.SetDefault("scoring.fraud_medium", w.FraudMedium)
	v.SetDefault("scoring.prepaid", w.Prepaid)
	v.SetDefault("scoring.bin_country", w.BinCountry)
	v.SetDefault("scoring.minor_factor", w.MinorFactor)

	v.SetDefault("batch.max_size", 50)
	v.SetDefault("batch.concurrency", 5)

	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.requests", 100)
	v.SetDefault("ratelimit.window", time.Minute)
	v.SetDefault("ratelimit.idle_ttl", 10*time.Minute)

	v.SetDefault("jwt.expiry_hours", 24)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "payment-risk-events")

	v.SetDefault("security.ip_threshold", 1000)
	v.SetDefault("security.ip_window", time.Minute)
}

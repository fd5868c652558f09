package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrisk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payrisk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrisk_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)

	// Validation Metrics
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrisk_validations_total",
			Help: "Total number of payment validations",
		},
		[]string{"result", "risk_level"},
	)

	ValidationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payrisk_validation_duration_seconds",
			Help:    "Payment validation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"path"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payrisk_batch_size",
			Help:    "Number of payments per batch request",
			Buckets: []float64{1, 5, 10, 20, 30, 40, 50},
		},
	)

	// Provider Metrics
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrisk_provider_calls_total",
			Help: "Total number of external provider calls",
		},
		[]string{"component", "provider", "outcome"},
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payrisk_provider_call_duration_seconds",
			Help:    "External provider call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"component", "provider"},
	)

	BinLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrisk_bin_lookups_total",
			Help: "Total number of BIN lookups by resolving source",
		},
		[]string{"source"},
	)

	// Cache Metrics
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrisk_cache_requests_total",
			Help: "Total number of cache reads",
		},
		[]string{"namespace", "result"},
	)

	// Authorization Metrics
	AuthorizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrisk_authorizations_total",
			Help: "Total number of card authorizations",
		},
		[]string{"status"},
	)

	AuthorizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payrisk_authorization_duration_seconds",
			Help:    "Card authorization duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
		},
	)

	RefundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrisk_refunds_total",
			Help: "Total number of refunds by trigger and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	// Event Metrics
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payrisk_events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"type", "outcome"},
	)

	// Abuse Metrics
	AbuseBlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payrisk_abuse_blocks_total",
			Help: "Requests rejected because the client IP exceeded the traffic threshold",
		},
	)

	SuspiciousIPs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "payrisk_suspicious_ips",
			Help: "Client IPs over the traffic threshold at the last scan",
		},
	)

	// System Metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payrisk_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, status int, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

func RecordRateLimitRejection(endpoint string) {
	RateLimitRejections.WithLabelValues(endpoint).Inc()
}

// RecordValidation records the outcome of one payment validation
func RecordValidation(success bool, riskLevel, path string, duration float64) {
	result := "failed"
	if success {
		result = "success"
	}
	ValidationsTotal.WithLabelValues(result, riskLevel).Inc()
	ValidationDuration.WithLabelValues(path).Observe(duration)
}

func RecordBatch(size int) {
	BatchSize.Observe(float64(size))
}

// RecordProviderCall records an external provider attempt
func RecordProviderCall(component, provider, outcome string, duration float64) {
	ProviderCallsTotal.WithLabelValues(component, provider, outcome).Inc()
	ProviderCallDuration.WithLabelValues(component, provider).Observe(duration)
}

func RecordBinLookup(source string) {
	BinLookupsTotal.WithLabelValues(source).Inc()
}

// RecordCacheRead records a cache hit or miss
func RecordCacheRead(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsTotal.WithLabelValues(namespace, result).Inc()
}

func RecordAuthorization(status string, duration float64) {
	AuthorizationsTotal.WithLabelValues(status).Inc()
	AuthorizationDuration.Observe(duration)
}

func RecordRefund(trigger, outcome string) {
	RefundsTotal.WithLabelValues(trigger, outcome).Inc()
}

func RecordEventPublished(eventType string, success bool) {
	outcome := "failed"
	if success {
		outcome = "success"
	}
	EventsPublishedTotal.WithLabelValues(eventType, outcome).Inc()
}

func RecordAbuseBlock() {
	AbuseBlocksTotal.Inc()
}

func SetSuspiciousIPs(n int) {
	SuspiciousIPs.Set(float64(n))
}

// SetSystemInfo sets system information metrics
func SetSystemInfo(version, goVersion string) {
	SystemInfo.WithLabelValues(version, goVersion).Set(1)
}

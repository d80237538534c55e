package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	AudienceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audience_requests_total",
			Help: "Total number of audience size requests (count)",
		},
		[]string{"status"},
	)

	AudienceCompileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audience_compile_duration_ms",
			Help:    "Duration of rule validation and filter compilation in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100},
		},
		[]string{"status"},
	)

	AudienceQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audience_query_duration_ms",
			Help:    "Duration of audience count queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"store"},
	)

	AudienceRulesPerRequest = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audience_rules_per_request",
			Help:    "Number of rules per audience request (count)",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50},
		},
	)

	AudienceOrCollapseTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audience_or_collapse_total",
			Help: "Total number of requests where an OR tag reduced the filter to the first rule (count)",
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "operation"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

var registerOnce sync.Once

// RegisterAudienceMetrics registers every collector with the default
// registry. Safe to call more than once.
func RegisterAudienceMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(AudienceRequestsTotal)
		prometheus.MustRegister(AudienceCompileDuration)
		prometheus.MustRegister(AudienceQueryDuration)
		prometheus.MustRegister(AudienceRulesPerRequest)
		prometheus.MustRegister(AudienceOrCollapseTotal)
		prometheus.MustRegister(RateLimitRequestsTotal)
		prometheus.MustRegister(RetryAttemptsTotal)
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
		RegisterCircuitBreakerMetrics()
	})
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func IncAudienceRequest(status string) {
	AudienceRequestsTotal.WithLabelValues(status).Inc()
}

func ObserveCompileDuration(duration time.Duration, status string) {
	AudienceCompileDuration.WithLabelValues(status).Observe(float64(duration.Microseconds()) / 1000)
}

func ObserveQueryDuration(store string, duration time.Duration) {
	AudienceQueryDuration.WithLabelValues(store).Observe(float64(duration.Milliseconds()))
}

func ObserveRulesPerRequest(count int) {
	AudienceRulesPerRequest.Observe(float64(count))
}

func IncOrCollapse() {
	AudienceOrCollapseTotal.Inc()
}

func IncRetryAttempt(service, operation string) {
	RetryAttemptsTotal.WithLabelValues(service, operation).Inc()
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}

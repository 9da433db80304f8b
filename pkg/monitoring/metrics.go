package monitoring

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the advertisement lifecycle service
var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// Lifecycle metrics
	FacetTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_facet_transitions_total",
			Help: "Facet transitions by facet, target value and result",
		},
		[]string{"facet", "to", "result"},
	)

	ConflictingTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_conflicting_transitions_total",
			Help: "Contradictory facts about the same advertisement; operator alert",
		},
		[]string{"facet"},
	)

	OptimisticRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_optimistic_lock_retries_total",
			Help: "Retries caused by concurrent writers on the same advertisement",
		},
		[]string{"operation"},
	)

	// Payment metrics
	PaymentCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Payment gateway notifications by event type and outcome",
		},
		[]string{"event", "outcome"},
	)

	UnknownSessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_unknown_sessions_total",
			Help: "Notifications for session ids the store does not know; operator alert",
		},
	)

	PaymentSessionsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sessions_created_total",
			Help: "Payment sessions opened at the gateway",
		},
		[]string{"kind"},
	)

	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_call_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"provider", "status"},
	)

	// Business metrics
	AdsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ads_submitted_total",
			Help: "Advertisements submitted",
		},
		[]string{"placement", "format", "region"},
	)

	ModerationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_moderation_decisions_total",
			Help: "Editorial decisions",
		},
		[]string{"decision", "result"},
	)

	ContentSafetyResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ad_content_safety_results_total",
			Help: "Content-safety verdicts received",
		},
		[]string{"result"},
	)

	AdsArchivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ads_archived_total",
			Help: "Advertisements taken out of circulation",
		},
		[]string{"reason"},
	)

	ServingSelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serving_selections_total",
			Help: "Serving selections by placement and whether anything qualified",
		},
		[]string{"placement", "empty"},
	)

	ServingCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serving_candidates",
			Help:    "Number of eligible advertisements per selection",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"placement"},
	)

	// Worker metrics
	WorkerSweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_sweep_duration_seconds",
			Help:    "Duration of background sweeps",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"sweep"},
	)

	WorkerSweepItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_sweep_items_total",
			Help: "Items handled by background sweeps",
		},
		[]string{"sweep", "result"},
	)

	// Database metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query execution time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"query_type", "table"},
	)

	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"error_type", "table"},
	)

	// Redis metrics
	RedisCommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_command_duration_seconds",
			Help:    "Redis command execution time",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"command"},
	)

	RedisErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Total number of Redis errors",
		},
		[]string{"error_type"},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_cache_requests_total",
			Help: "Session outcome cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	SystemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "system_errors_total",
			Help: "Total number of system errors",
		},
		[]string{"component", "severity"},
	)
)

// MetricsMiddleware creates a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		// Route templates keep label cardinality bounded
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = normalizePath(c.Request.URL.Path)
		}

		HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
		HTTPRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
	}
}

// normalizePath groups unmatched paths
func normalizePath(path string) string {
	switch {
	case path == "/", path == "/health", path == "/ready", path == "/metrics":
		return path
	case strings.HasPrefix(path, "/api/v1/"):
		return "/api/v1/other"
	default:
		return "/other"
	}
}

// PrometheusHandler returns the Prometheus metrics handler
func PrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTransition records one facet transition attempt
func RecordTransition(facet, to string, changed bool, err error) {
	result := "noop"
	switch {
	case err != nil:
		result = "error"
	case changed:
		result = "applied"
	}
	FacetTransitionsTotal.WithLabelValues(facet, to, result).Inc()
}

// RecordConflict raises the conflicting transition alert for facet
func RecordConflict(facet string) {
	ConflictingTransitionsTotal.WithLabelValues(facet).Inc()
}

// RecordOptimisticRetry records a version conflict retry
func RecordOptimisticRetry(operation string) {
	OptimisticRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordPaymentCallback records a gateway notification outcome
func RecordPaymentCallback(event, outcome string) {
	PaymentCallbacksTotal.WithLabelValues(event, outcome).Inc()
}

// RecordUnknownSession raises the unknown session alert
func RecordUnknownSession() {
	UnknownSessionsTotal.Inc()
}

// RecordSessionCreated records a new gateway session; kind is initial or retry
func RecordSessionCreated(kind string) {
	PaymentSessionsCreatedTotal.WithLabelValues(kind).Inc()
}

// RecordGatewayCall records payment gateway latency
func RecordGatewayCall(provider string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	GatewayCallDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
}

// RecordAdSubmitted records a new advertisement
func RecordAdSubmitted(placement, format, region string) {
	AdsSubmittedTotal.WithLabelValues(placement, format, region).Inc()
}

// RecordModeration records an editorial decision attempt
func RecordModeration(decision, result string) {
	ModerationDecisionsTotal.WithLabelValues(decision, result).Inc()
}

// RecordContentSafety records a content-safety verdict
func RecordContentSafety(result string) {
	ContentSafetyResultsTotal.WithLabelValues(result).Inc()
}

// RecordArchived records an advertisement leaving circulation
func RecordArchived(reason string) {
	AdsArchivedTotal.WithLabelValues(reason).Inc()
}

// RecordSelection records one serving selection
func RecordSelection(placement string, candidates int) {
	ServingSelectionsTotal.WithLabelValues(placement, strconv.FormatBool(candidates == 0)).Inc()
	ServingCandidates.WithLabelValues(placement).Observe(float64(candidates))
}

// RecordSweep records a background sweep
func RecordSweep(sweep string, duration time.Duration, handled, failed int) {
	WorkerSweepDuration.WithLabelValues(sweep).Observe(duration.Seconds())
	WorkerSweepItemsTotal.WithLabelValues(sweep, "ok").Add(float64(handled))
	WorkerSweepItemsTotal.WithLabelValues(sweep, "failed").Add(float64(failed))
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(queryType, table string, duration time.Duration, err error) {
	DatabaseQueryDuration.WithLabelValues(queryType, table).Observe(duration.Seconds())
	if err != nil {
		DatabaseErrorsTotal.WithLabelValues("query_error", table).Inc()
	}
}

// RecordRedisCommand records Redis command metrics
func RecordRedisCommand(command string, duration time.Duration, err error) {
	RedisCommandDuration.WithLabelValues(command).Observe(duration.Seconds())
	if err != nil {
		RedisErrorsTotal.WithLabelValues("command_error").Inc()
	}
}

// RecordCacheLookup records a session cache lookup
func RecordCacheLookup(tier string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequestsTotal.WithLabelValues(tier, result).Inc()
}

// RecordSystemError records system errors
func RecordSystemError(component, severity string) {
	SystemErrors.WithLabelValues(component, severity).Inc()
}

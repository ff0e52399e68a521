package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcomes recorded on QuestionsResolved
const (
	OutcomeCacheHit        = "hit"
	OutcomeStored          = "store"
	OutcomeValidationError = "validation_error"
	OutcomeExhausted       = "exhausted"
)

var (
	// Question metrics
	QuestionsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insidebi_questions_resolved_total", Help: "Questions resolved, by outcome.",
	}, []string{"outcome"})
	QuestionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "insidebi_question_duration_seconds", Help: "End-to-end resolution latency.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})
	GenerationAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "insidebi_generation_attempts", Help: "Generator attempts used per resolution that reached the generator.",
		Buckets: []float64{1, 2, 3, 4, 5},
	})
	UnsafeSQLRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insidebi_unsafe_sql_rejected_total", Help: "Generated SQL rejected by the keyword guard.",
	})

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insidebi_cache_lookups_total", Help: "Question cache lookups, by result.",
	}, []string{"result"})
	CacheStaleHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "insidebi_cache_stale_hits_total", Help: "Cache hits whose SQL no longer executed.",
	})
	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "insidebi_cache_entries", Help: "Entries currently held by the question cache.",
	})

	// LLM metrics
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insidebi_llm_requests_total", Help: "LLM completion requests, by provider and status.",
	}, []string{"provider", "status"})
	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "insidebi_llm_request_duration_seconds", Help: "LLM completion latency.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"provider"})
	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insidebi_llm_tokens_total", Help: "Tokens consumed, by provider and direction.",
	}, []string{"provider", "direction"})

	// Database metrics
	DBQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insidebi_db_queries_total", Help: "Database operations, by operation and status.",
	}, []string{"operation", "status"})
	DBDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "insidebi_db_query_duration_seconds", Help: "Database operation latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insidebi_http_requests_total", Help: "HTTP requests, by method, path and status.",
	}, []string{"method", "path", "status"})
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "insidebi_http_request_duration_seconds", Help: "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
	HTTPResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "insidebi_http_response_size_bytes", Help: "HTTP response sizes.",
		Buckets: prometheus.ExponentialBuckets(64, 4, 8),
	}, []string{"method", "path"})
)

// MetricsHandler serves the default prometheus registry
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordQueryMetrics records metrics for a resolved (or failed) question
func RecordQueryMetrics(duration time.Duration, outcome string, attempts int) {
	QuestionsResolved.WithLabelValues(outcome).Inc()
	QuestionDuration.Observe(duration.Seconds())
	if attempts > 0 {
		GenerationAttempts.Observe(float64(attempts))
	}
	if outcome == OutcomeValidationError {
		UnsafeSQLRejected.Inc()
	}
}

// RecordCacheLookup records a cache lookup result
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}

// RecordLLMMetrics records metrics for LLM operations
func RecordLLMMetrics(provider string, duration time.Duration, inputTokens, outputTokens int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	LLMRequests.WithLabelValues(provider, status).Inc()
	LLMDuration.WithLabelValues(provider).Observe(duration.Seconds())

	if inputTokens > 0 {
		LLMTokens.WithLabelValues(provider, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		LLMTokens.WithLabelValues(provider, "output").Add(float64(outputTokens))
	}
}

// RecordDBMetrics records metrics for database operations
func RecordDBMetrics(operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DBQueries.WithLabelValues(operation, status).Inc()
	DBDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPMetrics records metrics for HTTP requests
func RecordHTTPMetrics(method, path string, statusCode int, duration time.Duration, responseSize int) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

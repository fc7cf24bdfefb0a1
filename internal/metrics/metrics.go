package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_http_requests_total",
		Help: "Total HTTP requests by method, path, and status code",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reflex_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// Detection

	PIIDetectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reflex_pii_detection_duration_seconds",
		Help:    "PII detection latency",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})

	PIIDetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_pii_detections_total",
		Help: "PII matches by type",
	}, []string{"pii_type"})

	InjectionDetectionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reflex_injection_detection_duration_seconds",
		Help:    "Injection detection latency",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
	}, []string{"detection_mode"})

	InjectionDetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_injection_detections_total",
		Help: "Injection matches by severity",
	}, []string{"severity"})

	RequestsBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_requests_blocked_total",
		Help: "Requests blocked by reason",
	}, []string{"reason"})

	// Cache

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflex_cache_hits_total",
		Help: "Decision cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflex_cache_misses_total",
		Help: "Decision cache misses",
	})

	CacheOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reflex_cache_operation_duration_seconds",
		Help:    "Cache operation latency",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
	}, []string{"operation"})

	// Rate limiting

	RateLimitAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reflex_rate_limit_allowed_total",
		Help: "Requests allowed by the rate limiter",
	})

	RateLimitRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reflex_rate_limit_rejected_total",
		Help: "Requests rejected by the rate limiter, by dimension",
	}, []string{"dimension"})

	RateLimitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reflex_rate_limit_duration_seconds",
		Help:    "Rate limit check latency",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
	})
)

// ObserveCacheOp times a cache operation
func ObserveCacheOp(operation string, start time.Time) {
	CacheOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

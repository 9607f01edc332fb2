// Package obs exposes Prometheus metrics for the request pipeline.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptohub_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ptohub_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	rateLimitViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptohub_rate_limit_violations_total",
			Help: "Requests rejected by the rate limiter.",
		},
		[]string{"tier"},
	)

	cacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ptohub_cache_events_total",
			Help: "Response cache hits and misses.",
		},
		[]string{"outcome"},
	)
)

// Init registers the pipeline metrics on the default registry.
func Init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, rateLimitViolations, cacheEvents)
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRateLimitViolation counts one 429 for the given tier.
func RecordRateLimitViolation(tier string) {
	rateLimitViolations.WithLabelValues(tier).Inc()
}

// RecordCacheHit counts one response-cache hit.
func RecordCacheHit() { cacheEvents.WithLabelValues("hit").Inc() }

// RecordCacheMiss counts one response-cache miss.
func RecordCacheMiss() { cacheEvents.WithLabelValues("miss").Inc() }

// Instrument measures request counts and latency. Request paths are not a
// label so metric cardinality stays bounded.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := strconv.Itoa(ww.Status())
		httpRequestsTotal.WithLabelValues(r.Method, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, status).Observe(time.Since(start).Seconds())
	})
}

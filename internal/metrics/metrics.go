// Package metrics provides Prometheus metrics for the diagram service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "openapi_diagram"

// Metrics holds all Prometheus metrics for the diagram service.
type Metrics struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Document metrics
	PackagesTotal  prometheus.Gauge
	DocumentsTotal prometheus.Gauge
	PublishesTotal *prometheus.CounterVec

	// Build metrics
	BuildsTotal      *prometheus.CounterVec
	BuildDuration    prometheus.Histogram
	GraphClasses     prometheus.Histogram
	GraphRelations   prometheus.Histogram
	NavigationsTotal *prometheus.CounterVec

	// Storage metrics
	StorageOperations *prometheus.CounterVec
	StorageLatency    *prometheus.HistogramVec
	StorageErrors     *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	CacheSize   *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	m.PackagesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "packages_total",
			Help:      "Total number of packages",
		},
	)

	m.DocumentsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Total number of stored document versions",
		},
	)

	m.PublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Total number of document publish attempts",
		},
		[]string{"status"},
	)

	m.BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Total number of diagram builds",
		},
		[]string{"result"},
	)

	m.BuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Diagram build latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.GraphClasses = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_classes",
			Help:      "Number of classes per built graph",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	m.GraphRelations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graph_relations",
			Help:      "Number of relations per built graph",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	m.NavigationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "navigations_total",
			Help:      "Total number of scope navigations by result",
		},
		[]string{"result"},
	)

	m.StorageOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"backend", "operation"},
	)

	m.StorageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_latency_seconds",
			Help:      "Storage operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	m.StorageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Total number of storage errors",
		},
		[]string{"backend", "operation"},
	)

	m.CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache"},
	)

	m.CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache"},
	)

	m.CacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_size",
			Help:      "Current cache size",
		},
		[]string{"cache"},
	)

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.PackagesTotal,
		m.DocumentsTotal,
		m.PublishesTotal,
		m.BuildsTotal,
		m.BuildDuration,
		m.GraphClasses,
		m.GraphRelations,
		m.NavigationsTotal,
		m.StorageOperations,
		m.StorageLatency,
		m.StorageErrors,
		m.CacheHits,
		m.CacheMisses,
		m.CacheSize,
	)

	// Also register the default collectors (go runtime, process info)
	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Middleware returns HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip metrics endpoint itself
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		m.RequestsInFlight.Inc()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		m.RequestsInFlight.Dec()
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		m.RequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routePattern returns the matched chi route, falling back to a normalized path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}

// normalizePath normalizes a URL path to reduce cardinality.
func normalizePath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] != "packages" {
		return path
	}
	switch {
	case len(parts) == 2:
		return "/packages/{package}"
	case len(parts) == 3 && parts[2] == "versions":
		return "/packages/{package}/versions"
	case len(parts) == 4 && parts[2] == "versions":
		return "/packages/{package}/versions/{version}"
	case len(parts) == 5 && parts[2] == "versions" && parts[4] == "diagram":
		return "/packages/{package}/versions/{version}/diagram"
	}
	return path
}

// RecordPublish records a document publish attempt.
func (m *Metrics) RecordPublish(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.PublishesTotal.WithLabelValues(status).Inc()
}

// RecordBuild records a diagram build and the size of its graph.
func (m *Metrics) RecordBuild(duration time.Duration, classes, relations int, err error) {
	m.BuildDuration.Observe(duration.Seconds())
	if err != nil {
		m.BuildsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.BuildsTotal.WithLabelValues("success").Inc()
	m.GraphClasses.Observe(float64(classes))
	m.GraphRelations.Observe(float64(relations))
}

// RecordNavigation records a navigation result: "matched" or a failure reason.
func (m *Metrics) RecordNavigation(result string) {
	m.NavigationsTotal.WithLabelValues(result).Inc()
}

// RecordStorageOperation records a storage operation.
func (m *Metrics) RecordStorageOperation(backend, operation string, duration time.Duration, err error) {
	m.StorageOperations.WithLabelValues(backend, operation).Inc()
	m.StorageLatency.WithLabelValues(backend, operation).Observe(duration.Seconds())
	if err != nil {
		m.StorageErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordCacheAccess records a cache access.
func (m *Metrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHits.WithLabelValues(cache).Inc()
	} else {
		m.CacheMisses.WithLabelValues(cache).Inc()
	}
}

// UpdateDocumentCounts updates the package and document gauges.
func (m *Metrics) UpdateDocumentCounts(packages, documents int) {
	m.PackagesTotal.Set(float64(packages))
	m.DocumentsTotal.Set(float64(documents))
}

// UpdateCacheSize updates the cache size.
func (m *Metrics) UpdateCacheSize(cache string, size int) {
	m.CacheSize.WithLabelValues(cache).Set(float64(size))
}

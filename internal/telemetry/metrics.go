package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsNamespace = "staybook"
	cacheResultHit   = "hit"
	cacheResultMiss  = "miss"
	errorClassNone   = "none"
)

// Metrics holds the Prometheus collectors of the booking engine on a private registry.
type Metrics struct {
	registry          *prometheus.Registry
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	httpRequests      *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Booking operations by outcome and error class.",
		}, []string{"operation", "status", "error_class"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of booking operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "calendar_cache_lookups_total",
			Help:      "Calendar cache lookups by result.",
		}, []string{"result"}),
		httpRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// Registry exposes the registry backing the collectors.
func (metrics *Metrics) Registry() *prometheus.Registry {
	return metrics.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (metrics *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{Registry: metrics.registry})
}

// LogOperation implements booking.OperationLogger.
func (metrics *Metrics) LogOperation(_ context.Context, entry booking.OperationLog) {
	errorClass := errorClassNone
	if entry.Error != nil {
		errorClass = string(booking.Classify(entry.Error))
	}
	metrics.operations.WithLabelValues(entry.Operation, entry.Status, errorClass).Inc()
	metrics.operationDuration.WithLabelValues(entry.Operation).Observe(entry.Duration.Seconds())
}

// ObserveCacheLookup counts one calendar cache lookup.
func (metrics *Metrics) ObserveCacheLookup(hit bool) {
	result := cacheResultMiss
	if hit {
		result = cacheResultHit
	}
	metrics.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records one served request. route is the matched pattern, not the raw path.
func (metrics *Metrics) ObserveHTTPRequest(method string, route string, status int, elapsed time.Duration) {
	metrics.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

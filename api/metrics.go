package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors on a private registry, so
// several servers (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	allocationsTotal   *prometheus.CounterVec
	allocationErrors   *prometheus.CounterVec
	allocationDuration *prometheus.HistogramVec
	shortfallTotal     *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
}

// NewMetrics registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		allocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "allocations_total",
			Help:      "Allocations served, by severity level, status and solve method.",
		}, []string{"severity_level", "status", "method"}),
		allocationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "allocation_errors_total",
			Help:      "Allocation requests that failed, by error code.",
		}, []string{"code"}),
		allocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relief",
			Name:      "allocation_duration_seconds",
			Help:      "Time spent building, solving and formatting an allocation.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 10),
		}, []string{"method"}),
		shortfallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "budget_shortfall_total",
			Help:      "Sum of reported budget shortfalls in currency units.",
		}, []string{"currency"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relief",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.allocationsTotal,
		m.allocationErrors,
		m.allocationDuration,
		m.shortfallTotal,
		m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics collects the repository and HTTP counters exposed on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	repoOps      *prometheus.CounterVec
	repoDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	healthState  *prometheus.GaugeVec
}

// NewMetrics builds a fresh registry with the process collectors plus the
// application series.
func NewMetrics(provider string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	constLabels := prometheus.Labels{"provider": provider}

	m := &Metrics{
		registry: registry,
		repoOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "idp_repository_operations_total",
			Help:        "Repository operations by entity, operation and outcome.",
			ConstLabels: constLabels,
		}, []string{"entity", "operation", "outcome"}),
		repoDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "idp_repository_operation_seconds",
			Help:        "Repository operation latency.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"entity", "operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idp_http_requests_total",
			Help: "HTTP requests by route, method and status class.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idp_http_request_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		healthState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "idp_backend_health",
			Help:        "Backend health by state: 1 for the current state, 0 otherwise.",
			ConstLabels: constLabels,
		}, []string{"state"}),
	}

	registry.MustRegister(m.repoOps, m.repoDuration, m.httpRequests, m.httpDuration, m.healthState)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRepoOp records one repository call.
func (m *Metrics) ObserveRepoOp(entity, operation, outcome string, elapsed time.Duration) {
	m.repoOps.WithLabelValues(entity, operation, outcome).Inc()
	m.repoDuration.WithLabelValues(entity, operation).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// SetHealthState flips the health gauge to the given state.
func (m *Metrics) SetHealthState(state string) {
	for _, s := range []string{"available", "degraded", "unavailable"} {
		v := 0.0
		if s == state {
			v = 1.0
		}
		m.healthState.WithLabelValues(s).Set(v)
	}
}

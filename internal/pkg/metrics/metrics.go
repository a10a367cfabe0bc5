package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accredit"

// Metrics groups the collectors exported on /metrics. A nil *Metrics is a no-op.
type Metrics struct {
	Registry *prometheus.Registry

	upstreamRequests   *prometheus.CounterVec
	upstreamLatency    *prometheus.HistogramVec
	aggregationSkipped *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
}

// New creates a private registry with process and runtime collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Record store requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Record store request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		aggregationSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_skipped_total",
			Help:      "Received records left out of statistics, by kind and reason.",
		}, []string{"kind", "reason"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_cache_lookups_total",
			Help:      "Record list cache lookups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.upstreamRequests,
		m.upstreamLatency,
		m.aggregationSkipped,
		m.cacheLookups,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveUpstream(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamRequests.WithLabelValues(operation, outcome).Inc()
	m.upstreamLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) AggregationSkipped(kind, reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.aggregationSkipped.WithLabelValues(kind, reason).Add(float64(n))
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

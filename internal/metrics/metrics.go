// Package metrics owns the Prometheus collectors for the news service. A nil
// *Metrics is valid and records nothing, so components can be built without
// instrumentation in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsagg"

// Metrics groups every collector exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups    *prometheus.CounterVec
	upstreamFetches *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	refreshCycles   prometheus.Counter
	refreshOutcomes *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New creates a Metrics instance with its own registry, including the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by endpoint and result.",
		}, []string{"endpoint", "result"}),
		upstreamFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_fetches_total",
			Help:      "Calls to the news provider by outcome.",
		}, []string{"outcome"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_fetch_duration_seconds",
			Help:      "Latency of news provider calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		refreshCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Background refresh cycles run.",
		}),
		refreshOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_entries_total",
			Help:      "Background refresh decisions per cache entry.",
		}, []string{"outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
	}
}

// RegisterCacheSize exports fn as the current number of cache entries.
func (m *Metrics) RegisterCacheSize(fn func() int) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_entries",
		Help:      "Entries currently held by the response cache.",
	}, func() float64 { return float64(fn()) })
}

func (m *Metrics) CacheLookup(endpoint string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(endpoint, result).Inc()
}

func (m *Metrics) UpstreamFetch(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.upstreamFetches.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(took.Seconds())
}

func (m *Metrics) RefreshCycle() {
	if m == nil {
		return
	}
	m.refreshCycles.Inc()
}

func (m *Metrics) RefreshOutcome(outcome string) {
	if m == nil {
		return
	}
	m.refreshOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Package metrics exposes Prometheus counters for area resolution, geocode
// caching, upstream calls and API requests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/airtable-api/internal/geoarea"
)

const namespace = "airtable_api"

// Metrics holds the collectors registered for one process.
type Metrics struct {
	Resolutions      *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
	APIRequests      *prometheus.CounterVec
	APIDuration      *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Area resolutions by kind and matching tier.",
		}, []string{"kind", "match"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_lookups_total",
			Help:      "Geocode cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Outbound HTTP requests by service, method and status code.",
		}, []string{"service", "code", "method"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Outbound HTTP request latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"service", "code", "method"}),
		APIRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
		APIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.Resolutions,
		m.CacheLookups,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.APIRequests,
		m.APIDuration,
	)
	return m
}

// NewDefault creates Metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return New(reg)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// MatchObserver returns a resolver callback that counts matches for kind.
func (m *Metrics) MatchObserver(kind geoarea.Kind) func(geoarea.Match) {
	return func(match geoarea.Match) {
		m.Resolutions.WithLabelValues(string(kind), string(match)).Inc()
	}
}

// CacheLookup implements geocode.Observer.
func (m *Metrics) CacheLookup(layer string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(layer, result).Inc()
}

// InstrumentTransport wraps next so every request to service is counted and
// timed.
func (m *Metrics) InstrumentTransport(service string, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	labels := prometheus.Labels{"service": service}
	return promhttp.InstrumentRoundTripperCounter(m.UpstreamRequests.MustCurryWith(labels),
		promhttp.InstrumentRoundTripperDuration(m.UpstreamDuration.MustCurryWith(labels), next))
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(route string, code int, elapsed time.Duration) {
	m.APIRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.APIDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

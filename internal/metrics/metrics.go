// Package metrics holds the Prometheus collectors of WaySave on a dedicated registry.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "waysave"

// Fetch outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeCache = "cache"
)

var (
	// Registry is the dedicated registry served on /metrics.
	Registry = prometheus.NewRegistry()

	// SourceFetches counts station source fetches by source and outcome.
	SourceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "source_fetches_total", Help: "Station source fetches by source and outcome."},
		[]string{"source", "outcome"},
	)
	// StaleResponses counts async results dropped because the user navigated away.
	StaleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "stale_responses_total", Help: "Async results discarded after navigation."},
		[]string{"kind"},
	)
	// AuthRestores counts session restore outcomes.
	AuthRestores = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "auth_restores_total", Help: "Session restore outcomes."},
		[]string{"status"},
	)
	// StationUpdates counts submitted station updates by outcome.
	StationUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "station_updates_total", Help: "Station update submissions by outcome."},
		[]string{"outcome"},
	)
	// HTTPRequests counts requests by method, route and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)
)

var regOnce sync.Once

// Register adds the collectors to Registry. It is safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(SourceFetches)
		Registry.MustRegister(StaleResponses)
		Registry.MustRegister(AuthRestores)
		Registry.MustRegister(StationUpdates)
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

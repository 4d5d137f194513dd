// ABOUTME: Prometheus metrics for the scope screens
// ABOUTME: Counts rendered frames, state transitions, location updates and asset fetches
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing, so components can take it as an optional dependency.
type Metrics struct {
	FramesSampled    prometheus.Counter
	StateTransitions *prometheus.CounterVec
	LocationUpdates  prometheus.Counter
	AssetFetches     *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	registry         *prometheus.Registry
}

// New creates the collectors and registers them with registry
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register scope metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.FramesSampled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scope_frames_sampled_total",
		Help: "Total number of analyser frames sampled by the visualizer.",
	})

	m.StateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scope_state_transitions_total",
		Help: "State machine transitions by component and target state.",
	}, []string{"component", "state"})

	m.LocationUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scope_location_updates_total",
		Help: "Total number of position updates applied to the map region.",
	})

	m.AssetFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scope_asset_fetches_total",
		Help: "Asset fetches by result (memory, disk, network, error).",
	}, []string{"result"})

	m.FetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scope_asset_fetch_duration_seconds",
		Help:    "Duration of network asset fetches in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
}

// IncFrames records one sampled frame
func (m *Metrics) IncFrames() {
	if m == nil {
		return
	}
	m.FramesSampled.Inc()
}

// RecordTransition records a component entering state
func (m *Metrics) RecordTransition(component, state string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(component, state).Inc()
}

// IncLocationUpdates records one applied position
func (m *Metrics) IncLocationUpdates() {
	if m == nil {
		return
	}
	m.LocationUpdates.Inc()
}

// RecordFetch records an asset fetch result
func (m *Metrics) RecordFetch(result string) {
	if m == nil {
		return
	}
	m.AssetFetches.WithLabelValues(result).Inc()
}

// ObserveFetchDuration records a network fetch duration in seconds
func (m *Metrics) ObserveFetchDuration(seconds float64) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(seconds)
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesSampled.Collect(ch)
	m.StateTransitions.Collect(ch)
	m.LocationUpdates.Collect(ch)
	m.AssetFetches.Collect(ch)
	m.FetchDuration.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesSampled.Describe(ch)
	m.StateTransitions.Describe(ch)
	m.LocationUpdates.Describe(ch)
	m.AssetFetches.Describe(ch)
	m.FetchDuration.Describe(ch)
}

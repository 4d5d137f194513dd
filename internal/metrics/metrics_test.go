// ABOUTME: Tests for scope metrics
// ABOUTME: Checks counters and the promhttp handler
package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(t, err)

	m.IncFrames()
	m.IncFrames()
	m.RecordTransition("session", "running")
	m.IncLocationUpdates()
	m.RecordFetch("network")
	m.ObserveFetchDuration(0.2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.FramesSampled))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.StateTransitions.WithLabelValues("session", "running")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LocationUpdates))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AssetFetches.WithLabelValues("network")))
}

func TestDoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := New(registry)
	require.NoError(t, err)

	_, err = New(registry)
	assert.Error(t, err)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncFrames()
		m.RecordTransition("tracker", "tracking")
		m.IncLocationUpdates()
		m.RecordFetch("error")
		m.ObserveFetchDuration(1)
	})
}

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := New(registry)
	require.NoError(t, err)
	m.IncFrames()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "scope_frames_sampled_total 1"))
}

// ABOUTME: Tests for position filtering
// ABOUTME: Covers haversine distance, update filtering and timestamp stamping
package location

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	a := Position{Latitude: 0, Longitude: 0}
	b := Position{Latitude: 1, Longitude: 0}

	// one degree of latitude is about 111.2km
	assert.InDelta(t, 111195, Haversine(a, b), 100)
	assert.Equal(t, 0.0, Haversine(a, a))
}

func TestUpdateFilter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewUpdateFilter(DefaultWatchOptions())

	p0 := Position{Latitude: 40.7128, Longitude: -74.006, Timestamp: start}
	assert.True(t, f.Accept(p0), "first position is always accepted")

	tooSoon := Position{Latitude: 40.7138, Longitude: -74.006, Timestamp: start.Add(500 * time.Millisecond)}
	assert.False(t, f.Accept(tooSoon))

	tooClose := Position{Latitude: 40.712801, Longitude: -74.006, Timestamp: start.Add(2 * time.Second)}
	assert.False(t, f.Accept(tooClose))

	moved := Position{Latitude: 40.7129, Longitude: -74.006, Timestamp: start.Add(2 * time.Second)}
	assert.True(t, f.Accept(moved))
}

func TestRouteStepsAreWalkingDistance(t *testing.T) {
	r := NewRoute(DefaultRouteConfig())
	now := time.Now()

	p0 := r.At(now)
	p1 := r.Next(time.Second, now.Add(time.Second))

	assert.InDelta(t, 1.4, Haversine(p0, p1), 0.05)
	assert.InDelta(t, 150, Haversine(DefaultRouteConfig().Center, p1), 0.5)
}

func TestStamped(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	p := Stamped(Position{Latitude: 1}, now)
	assert.Equal(t, now, p.Timestamp)

	earlier := now.Add(-time.Minute)
	p = Stamped(Position{Latitude: 1, Timestamp: earlier}, now)
	assert.Equal(t, earlier, p.Timestamp)
}

// ABOUTME: Distance and interval filtering for position streams
// ABOUTME: Drops updates closer than the minimum distance or sooner than the minimum interval
package location

import (
	"math"
	"sync"
	"time"
)

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance between two positions in meters
func Haversine(a, b Position) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// UpdateFilter applies WatchOptions to a stream of positions
type UpdateFilter struct {
	opts WatchOptions

	mu   sync.Mutex
	last *Position
}

// NewUpdateFilter creates a filter for opts
func NewUpdateFilter(opts WatchOptions) *UpdateFilter {
	return &UpdateFilter{opts: opts}
}

// Accept reports whether p should be delivered. The first position is
// always accepted.
func (f *UpdateFilter) Accept(p Position) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last != nil {
		if p.Timestamp.Sub(f.last.Timestamp) < f.opts.TimeInterval {
			return false
		}
		if Haversine(*f.last, p) < f.opts.DistanceInterval {
			return false
		}
	}

	f.last = &p
	return true
}

// Stamped fills a zero timestamp with now
func Stamped(p Position, now time.Time) Position {
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}
	return p
}

// ABOUTME: Simulated walking route
// ABOUTME: Generates positions around a circle at a steady walking pace
package location

import (
	"math"
	"sync"
	"time"
)

// RouteConfig describes a circular walk
type RouteConfig struct {
	Center Position
	// Radius in meters
	Radius float64
	// Speed in meters per second
	Speed float64
}

// DefaultRouteConfig walks a 150m circle around the default region
func DefaultRouteConfig() RouteConfig {
	r := DefaultRegion()
	return RouteConfig{
		Center: Position{Latitude: r.Latitude, Longitude: r.Longitude},
		Radius: 150,
		Speed:  1.4,
	}
}

// Route produces positions along a circle. Each call to Next advances the
// walker by the elapsed time.
type Route struct {
	cfg RouteConfig

	mu    sync.Mutex
	angle float64
}

// NewRoute creates a route starting due north of the center
func NewRoute(cfg RouteConfig) *Route {
	def := DefaultRouteConfig()
	if cfg.Radius <= 0 {
		cfg.Radius = def.Radius
	}
	if cfg.Speed <= 0 {
		cfg.Speed = def.Speed
	}
	return &Route{cfg: cfg}
}

// At returns the position at the current angle without moving
func (r *Route) At(now time.Time) Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position(now)
}

// Next advances by elapsed walking time and returns the new position
func (r *Route) Next(elapsed time.Duration, now time.Time) Position {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.angle += r.cfg.Speed * elapsed.Seconds() / r.cfg.Radius
	r.angle = math.Mod(r.angle, 2*math.Pi)
	return r.position(now)
}

// position must hold r.mu
func (r *Route) position(now time.Time) Position {
	lat0 := r.cfg.Center.Latitude * math.Pi / 180
	dNorth := r.cfg.Radius * math.Cos(r.angle)
	dEast := r.cfg.Radius * math.Sin(r.angle)

	return Position{
		Latitude:  r.cfg.Center.Latitude + dNorth/earthRadiusMeters*180/math.Pi,
		Longitude: r.cfg.Center.Longitude + dEast/(earthRadiusMeters*math.Cos(lat0))*180/math.Pi,
		Accuracy:  5,
		Timestamp: now,
	}
}

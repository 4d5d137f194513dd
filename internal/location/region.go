// ABOUTME: Map regions and eased region animation
// ABOUTME: Animates the displayed viewport toward new fixes with a cubic-bezier curve
package location

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	// DefaultDelta is the zoom used for fixes, in degrees
	DefaultDelta = 0.01

	// RegionAnimationDuration is how long a region change eases
	RegionAnimationDuration = 600 * time.Millisecond
)

// MapRegion is a viewport: a center coordinate plus zoom deltas in degrees
type MapRegion struct {
	Latitude       float64
	Longitude      float64
	LatitudeDelta  float64
	LongitudeDelta float64
}

func (r MapRegion) String() string {
	return fmt.Sprintf("%.5f, %.5f (±%.4f, ±%.4f)", r.Latitude, r.Longitude, r.LatitudeDelta/2, r.LongitudeDelta/2)
}

// DefaultRegion is shown before the first fix
func DefaultRegion() MapRegion {
	return MapRegion{
		Latitude:       40.7128,
		Longitude:      -74.006,
		LatitudeDelta:  DefaultDelta,
		LongitudeDelta: DefaultDelta,
	}
}

// RegionAround centers a region on p with the default zoom
func RegionAround(p Position) MapRegion {
	return MapRegion{
		Latitude:       p.Latitude,
		Longitude:      p.Longitude,
		LatitudeDelta:  DefaultDelta,
		LongitudeDelta: DefaultDelta,
	}
}

// Contains reports whether p lies inside the region
func (r MapRegion) Contains(p Position) bool {
	return math.Abs(p.Latitude-r.Latitude) <= r.LatitudeDelta/2 &&
		math.Abs(p.Longitude-r.Longitude) <= r.LongitudeDelta/2
}

func lerpRegion(a, b MapRegion, t float64) MapRegion {
	lerp := func(x, y float64) float64 { return x + (y-x)*t }
	return MapRegion{
		Latitude:       lerp(a.Latitude, b.Latitude),
		Longitude:      lerp(a.Longitude, b.Longitude),
		LatitudeDelta:  lerp(a.LatitudeDelta, b.LatitudeDelta),
		LongitudeDelta: lerp(a.LongitudeDelta, b.LongitudeDelta),
	}
}

// CubicBezier is a CSS-style easing curve through (0,0), (X1,Y1), (X2,Y2), (1,1)
type CubicBezier struct {
	X1, Y1, X2, Y2 float64
}

// RegionEasing is the curve used for region animation
var RegionEasing = CubicBezier{X1: 0.44, Y1: 0.66, X2: 0, Y2: 0.99}

func bezier(p1, p2, t float64) float64 {
	u := 1 - t
	return 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t
}

// At returns the eased progress for linear progress x in [0, 1]
func (c CubicBezier) At(x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	// x(t) is monotone for control x in [0, 1], so bisection always converges
	lo, hi := 0.0, 1.0
	t := x
	for i := 0; i < 50; i++ {
		bx := bezier(c.X1, c.X2, t)
		if math.Abs(bx-x) < 1e-7 {
			break
		}
		if bx < x {
			lo = t
		} else {
			hi = t
		}
		t = (lo + hi) / 2
	}
	return bezier(c.Y1, c.Y2, t)
}

// AnimatedRegion eases between regions over time
type AnimatedRegion struct {
	mu       sync.Mutex
	from     MapRegion
	to       MapRegion
	start    time.Time
	duration time.Duration
	easing   CubicBezier
	now      func() time.Time
}

// NewAnimatedRegion starts at initial with no animation running
func NewAnimatedRegion(initial MapRegion) *AnimatedRegion {
	return &AnimatedRegion{
		from:     initial,
		to:       initial,
		duration: RegionAnimationDuration,
		easing:   RegionEasing,
		now:      time.Now,
	}
}

func (a *AnimatedRegion) valueAt(now time.Time) MapRegion {
	if a.duration <= 0 {
		return a.to
	}
	progress := float64(now.Sub(a.start)) / float64(a.duration)
	if progress >= 1 {
		return a.to
	}
	return lerpRegion(a.from, a.to, a.easing.At(progress))
}

// Set jumps to r immediately
func (a *AnimatedRegion) Set(r MapRegion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.from = r
	a.to = r
	a.start = time.Time{}
}

// AnimateTo eases from the currently displayed value to r
func (a *AnimatedRegion) AnimateTo(r MapRegion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.from = a.valueAt(now)
	a.to = r
	a.start = now
}

// Value returns the region to display now
func (a *AnimatedRegion) Value() MapRegion {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.valueAt(a.now())
}

// Target returns the region being animated toward
func (a *AnimatedRegion) Target() MapRegion {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.to
}

// Animating reports whether an animation is in progress
func (a *AnimatedRegion) Animating() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.start.IsZero() && a.now().Sub(a.start) < a.duration
}

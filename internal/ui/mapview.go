// ABOUTME: Braille map of the tracked region
// ABOUTME: Projects the recent trail into the animated region with a center crosshair
package ui

import (
	"math"

	"github.com/Resonate-Protocol/resonate-scope/internal/location"
)

// Project maps p into a dotW x dotH surface covering region. ok is false
// when p lies outside the region.
func Project(region location.MapRegion, p location.Position, dotW, dotH int) (x, y int, ok bool) {
	if dotW <= 0 || dotH <= 0 || region.LatitudeDelta <= 0 || region.LongitudeDelta <= 0 {
		return 0, 0, false
	}
	if !region.Contains(p) {
		return 0, 0, false
	}

	west := region.Longitude - region.LongitudeDelta/2
	north := region.Latitude + region.LatitudeDelta/2

	fx := (p.Longitude - west) / region.LongitudeDelta
	fy := (north - p.Latitude) / region.LatitudeDelta

	return int(math.Round(fx * float64(dotW-1))), int(math.Round(fy * float64(dotH-1))), true
}

// RenderMap draws the trail, the latest fix and a crosshair at the region
// center onto a cols x rows braille canvas
func RenderMap(region location.MapRegion, trail []location.Position, cols, rows int) *Canvas {
	canvas := NewCanvas(cols, rows)
	dotW, dotH := canvas.DotWidth(), canvas.DotHeight()
	if dotW == 0 || dotH == 0 {
		return canvas
	}

	cx, cy := dotW/2, dotH/2
	for d := -3; d <= 3; d++ {
		if d == -1 || d == 0 || d == 1 {
			continue
		}
		canvas.Set(cx+d, cy)
		canvas.Set(cx, cy+d)
	}

	var prevX, prevY int
	prevOK := false
	for _, p := range trail {
		x, y, ok := Project(region, p, dotW, dotH)
		if ok && prevOK {
			canvas.Line(prevX, prevY, x, y)
		} else if ok {
			canvas.Set(x, y)
		}
		prevX, prevY, prevOK = x, y, ok
	}

	if len(trail) > 0 {
		if x, y, ok := Project(region, trail[len(trail)-1], dotW, dotH); ok {
			for dx := -1; dx <= 1; dx++ {
				for dy := -1; dy <= 1; dy++ {
					canvas.Set(x+dx, y+dy)
				}
			}
		}
	}

	return canvas
}

// ABOUTME: Waveform renderer for analyser time-domain frames
// ABOUTME: Maps sample bytes to inset screen points and draws them as a braille polyline
package ui

import (
	"math"
	"strings"
	"sync"
)

// Inset is the horizontal padding on each side of the waveform, in dots
const Inset = 20

// Point is a position on the drawing surface in dot units
type Point struct {
	X, Y float64
}

// ComputePoints maps time-domain bytes to screen points. X runs from the
// left inset toward the right inset; Y is 0 at the top and height for a
// zero byte. A surface narrower than both insets draws in a zero-width
// column at the left inset.
func ComputePoints(samples []byte, width, height float64) []Point {
	if width <= 0 || height <= 0 || len(samples) == 0 {
		return []Point{}
	}

	drawWidth := math.Max(0, width-2*Inset)
	step := drawWidth / float64(len(samples))

	points := make([]Point, len(samples))
	for i, v := range samples {
		points[i] = Point{
			X: Inset + float64(i)*step,
			Y: height - float64(v)/255*height,
		}
	}
	return points
}

// Waveform holds the current layout and the points of the latest frame
type Waveform struct {
	mu      sync.Mutex
	width   float64
	height  float64
	samples []byte
	points  []Point
}

// NewWaveform creates an empty waveform
func NewWaveform() *Waveform {
	return &Waveform{points: []Point{}}
}

// Layout records the drawing bounds in dots and recomputes the points
func (w *Waveform) Layout(width, height float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.width, w.height = width, height
	w.points = ComputePoints(w.samples, width, height)
}

// SetSamples replaces the frame and recomputes the points
func (w *Waveform) SetSamples(samples []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = samples
	w.points = ComputePoints(samples, w.width, w.height)
}

// Points returns the computed points of the latest frame
func (w *Waveform) Points() []Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.points
}

// Size returns the laid out bounds in dots
func (w *Waveform) Size() (float64, float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// Render draws the points as a connected polyline on a braille canvas
// covering the layout. Without points it renders a blank surface.
func (w *Waveform) Render() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	cols := int(math.Ceil(w.width / 2))
	rows := int(math.Ceil(w.height / 4))
	if cols <= 0 || rows <= 0 {
		return ""
	}

	canvas := NewCanvas(cols, rows)
	maxY := canvas.DotHeight() - 1

	toDot := func(p Point) (int, int) {
		y := int(math.Round(p.Y))
		if y > maxY {
			y = maxY
		}
		if y < 0 {
			y = 0
		}
		return int(math.Round(p.X)), y
	}

	for i, p := range w.points {
		x, y := toDot(p)
		if i == 0 {
			canvas.Set(x, y)
			continue
		}
		px, py := toDot(w.points[i-1])
		canvas.Line(px, py, x, y)
	}

	return strings.Join(canvas.Rows(), "\n")
}

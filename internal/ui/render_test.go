// ABOUTME: Tests for the braille canvas, waveform, spectrum and map renderers
// ABOUTME: Checks point mapping edge cases and dot placement
package ui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanvasSetBits(t *testing.T) {
	c := NewCanvas(1, 1)
	c.Set(0, 0)
	assert.Equal(t, "⠁", c.String())

	c.Set(1, 3)
	assert.Equal(t, string(rune(0x2800|1|1<<7)), c.String())

	c.Set(5, 5)
	c.Set(-1, 0)
	assert.True(t, c.IsSet(0, 0))
	assert.False(t, c.IsSet(0, 1))
	assert.False(t, c.IsSet(5, 5))
}

func TestCanvasLine(t *testing.T) {
	c := NewCanvas(4, 1)
	c.Line(0, 0, 7, 3)

	assert.True(t, c.IsSet(0, 0))
	assert.True(t, c.IsSet(7, 3))
	for x := 0; x < 8; x++ {
		lit := 0
		for y := 0; y < 4; y++ {
			if c.IsSet(x, y) {
				lit++
			}
		}
		assert.Equal(t, 1, lit, "column %d", x)
	}
}

func TestCanvasRows(t *testing.T) {
	c := NewCanvas(3, 2)
	rows := c.Rows()
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, 3, utf8.RuneCountInString(r))
		assert.Equal(t, strings.Repeat("⠀", 3), r)
	}
}

func TestComputePoints(t *testing.T) {
	points := ComputePoints([]byte{0, 128, 255, 64}, 140, 100)
	require.Len(t, points, 4)

	assert.InDelta(t, 20, points[0].X, 1e-9)
	assert.InDelta(t, 45, points[1].X, 1e-9)
	assert.InDelta(t, 70, points[2].X, 1e-9)
	assert.InDelta(t, 95, points[3].X, 1e-9)

	assert.InDelta(t, 100, points[0].Y, 1e-9)
	assert.InDelta(t, 100-128.0/255*100, points[1].Y, 1e-9)
	assert.InDelta(t, 0, points[2].Y, 1e-9)
}

func TestComputePointsBounds(t *testing.T) {
	samples := make([]byte, 512)
	for i := range samples {
		samples[i] = byte(i * 7)
	}

	points := ComputePoints(samples, 300, 80)
	require.Len(t, points, 512)
	for i, p := range points {
		assert.GreaterOrEqual(t, p.Y, 0.0)
		assert.LessOrEqual(t, p.Y, 80.0)
		assert.GreaterOrEqual(t, p.X, float64(Inset))
		assert.Less(t, p.X, 300.0-Inset)
		if i > 0 {
			assert.GreaterOrEqual(t, p.X, points[i-1].X)
		}
	}
}

func TestComputePointsDegenerate(t *testing.T) {
	samples := []byte{1, 2, 3}

	assert.Empty(t, ComputePoints(samples, 0, 100))
	assert.Empty(t, ComputePoints(samples, 100, 0))
	assert.Empty(t, ComputePoints(samples, -5, 100))
	assert.Empty(t, ComputePoints(nil, 100, 100))
	assert.NotNil(t, ComputePoints(nil, 100, 100))

	narrow := ComputePoints(samples, 30, 10)
	require.Len(t, narrow, 3)
	for _, p := range narrow {
		assert.InDelta(t, float64(Inset), p.X, 1e-9)
	}
}

func TestWaveformLayoutRecomputes(t *testing.T) {
	w := NewWaveform()
	w.SetSamples([]byte{128, 128})
	assert.Empty(t, w.Points())

	w.Layout(100, 40)
	require.Len(t, w.Points(), 2)

	w.Layout(200, 40)
	assert.InDelta(t, 20+80, w.Points()[1].X, 1e-9)
}

func TestWaveformRender(t *testing.T) {
	w := NewWaveform()
	w.Layout(80, 16)

	samples := make([]byte, 40)
	for i := range samples {
		samples[i] = 128
	}
	w.SetSamples(samples)

	rows := strings.Split(w.Render(), "\n")
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, 40, utf8.RuneCountInString(r))
	}

	// a flat line at byte 128 sits on dot row 8, the third cell row
	blank := strings.Repeat("⠀", 40)
	assert.Equal(t, blank, rows[0])
	assert.Equal(t, blank, rows[1])
	assert.NotEqual(t, blank, rows[2])
	assert.Equal(t, blank, rows[3])
}

func TestWaveformRenderClampsBottom(t *testing.T) {
	w := NewWaveform()
	w.Layout(60, 8)
	w.SetSamples([]byte{0, 0, 0})

	rows := strings.Split(w.Render(), "\n")
	require.Len(t, rows, 2)
	assert.NotEqual(t, strings.Repeat("⠀", 30), rows[1])
}

func TestWaveformRenderEmptyLayout(t *testing.T) {
	assert.Equal(t, "", NewWaveform().Render())
}

func TestSpectrumLevels(t *testing.T) {
	freq := make([]byte, 256)
	freq[0] = 255

	levels := SpectrumLevels(freq, 16)
	require.Len(t, levels, 16)
	assert.InDelta(t, 1, levels[0], 1e-9)
	for _, l := range levels[1:] {
		assert.InDelta(t, 0, l, 1e-9)
	}

	assert.Nil(t, SpectrumLevels(nil, 10))
	assert.Nil(t, SpectrumLevels(freq, 0))
}

func TestProject(t *testing.T) {
	region := location.MapRegion{Latitude: 10, Longitude: 20, LatitudeDelta: 2, LongitudeDelta: 4}

	x, y, ok := Project(region, location.Position{Latitude: 10, Longitude: 20}, 101, 51)
	require.True(t, ok)
	assert.Equal(t, 50, x)
	assert.Equal(t, 25, y)

	x, y, ok = Project(region, location.Position{Latitude: 11, Longitude: 18}, 101, 51)
	require.True(t, ok)
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)

	_, _, ok = Project(region, location.Position{Latitude: 12, Longitude: 20}, 101, 51)
	assert.False(t, ok)
}

func TestRenderMap(t *testing.T) {
	region := location.DefaultRegion()
	trail := []location.Position{
		{Latitude: region.Latitude + 0.002, Longitude: region.Longitude - 0.002},
		{Latitude: region.Latitude + 0.002, Longitude: region.Longitude + 0.002},
	}

	c := RenderMap(region, trail, 20, 10)
	cx, cy := c.DotWidth()/2, c.DotHeight()/2

	assert.True(t, c.IsSet(cx+3, cy), "crosshair arm")
	assert.False(t, c.IsSet(cx, cy), "crosshair center stays open")

	x, y, ok := Project(region, trail[1], c.DotWidth(), c.DotHeight())
	require.True(t, ok)
	assert.True(t, c.IsSet(x, y))
	assert.True(t, c.IsSet(x+1, y+1), "latest fix marker")
}

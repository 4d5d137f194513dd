// ABOUTME: Spectrum strip drawn from analyser frequency bytes
// ABOUTME: Groups bins into log-spaced columns rendered as block characters
package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Unicode block elements for bar height (9 levels including space)
var barBlocks = []string{" ", "▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// SpectrumLevels groups frequency bytes into columns levels in [0,1].
// Column edges are log spaced so low bins get their own columns.
func SpectrumLevels(freq []byte, columns int) []float64 {
	if columns <= 0 || len(freq) == 0 {
		return nil
	}

	levels := make([]float64, columns)
	n := float64(len(freq))
	prev := 0
	for c := 0; c < columns; c++ {
		hi := int(math.Pow(n, float64(c+1)/float64(columns)))
		if hi <= prev {
			hi = prev + 1
		}
		if hi > len(freq) {
			hi = len(freq)
		}
		lo := prev
		if lo >= hi {
			// more columns than bins, repeat the last one
			lo = hi - 1
		}

		var peak byte
		for _, v := range freq[lo:hi] {
			if v > peak {
				peak = v
			}
		}
		levels[c] = float64(peak) / 255
		prev = hi
	}
	return levels
}

// RenderSpectrum draws one row of colored bars
func RenderSpectrum(freq []byte, width int) string {
	levels := SpectrumLevels(freq, width)
	if levels == nil {
		return strings.Repeat(" ", max(0, width))
	}

	var sb strings.Builder
	for _, level := range levels {
		idx := int(level * float64(len(barBlocks)-1))
		idx = max(0, min(idx, len(barBlocks)-1))

		var style lipgloss.Style
		switch {
		case level > 0.75:
			style = specHighStyle
		case level > 0.45:
			style = specMidStyle
		default:
			style = specLowStyle
		}
		sb.WriteString(style.Render(barBlocks[idx]))
	}
	return sb.String()
}

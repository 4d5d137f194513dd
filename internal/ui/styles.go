// ABOUTME: Lip Gloss palette and styles for the scope screens
// ABOUTME: Uses the 16 ANSI colors so the UI follows the terminal theme
package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorBorder  = lipgloss.ANSIColor(8)
	colorTitle   = lipgloss.ANSIColor(10)
	colorText    = lipgloss.ANSIColor(7)
	colorDim     = lipgloss.ANSIColor(8)
	colorAccent  = lipgloss.ANSIColor(11)
	colorPlaying = lipgloss.ANSIColor(10)
	colorError   = lipgloss.ANSIColor(9)
	colorTrail   = lipgloss.ANSIColor(14)

	// spectrum gradient: green -> yellow -> red
	spectrumLow  = lipgloss.ANSIColor(10)
	spectrumMid  = lipgloss.ANSIColor(11)
	spectrumHigh = lipgloss.ANSIColor(9)
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorTitle).
			Bold(true)

	tabActiveStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true).
			Underline(true)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(colorDim)

	waveStyle = lipgloss.NewStyle().
			Foreground(colorPlaying)

	trailStyle = lipgloss.NewStyle().
			Foreground(colorTrail)

	timeStyle = lipgloss.NewStyle().
			Foreground(colorText)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorPlaying).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorText).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	specLowStyle  = lipgloss.NewStyle().Foreground(spectrumLow)
	specMidStyle  = lipgloss.NewStyle().Foreground(spectrumMid)
	specHighStyle = lipgloss.NewStyle().Foreground(spectrumHigh)
)

// ABOUTME: View rendering for the scope screens
// ABOUTME: Composes the tab bar, the map screen and the audio visualizer screen
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/location"
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	if m.tab == tabAudio {
		b.WriteString(m.renderAudio())
	} else {
		b.WriteString(m.renderMap())
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return frameStyle.Render(b.String())
}

func (m Model) renderTabs() string {
	tabs := []tab{tabMap, tabAudio}
	parts := make([]string, len(tabs))
	for i, t := range tabs {
		label := fmt.Sprintf("%d %s", i+1, t)
		if t == m.tab {
			parts[i] = tabActiveStyle.Render(label)
		} else {
			parts[i] = tabInactiveStyle.Render(label)
		}
	}
	return titleStyle.Render("resonate-scope") + "  " + strings.Join(parts, "  ")
}

func (m Model) renderAudio() string {
	var b strings.Builder
	cols, rows := m.canvasSize()

	sess := m.cfg.Session
	if sess == nil || m.cfg.AudioURL == "" {
		b.WriteString(dimStyle.Render("No audio source configured"))
		b.WriteString(strings.Repeat("\n", rows+1))
		return b.String()
	}

	st := sess.Status()

	wave := m.waveform.Render()
	if wave == "" {
		wave = strings.Repeat("\n", rows-1)
	}
	b.WriteString(waveStyle.Render(wave))
	b.WriteString("\n")
	b.WriteString(RenderSpectrum(m.spectrum, cols))
	b.WriteString("\n")

	glyph := "▶"
	if st.Playing {
		glyph = "⏸"
	}
	b.WriteString(statusStyle.Render(glyph))
	b.WriteString(" ")
	b.WriteString(timeStyle.Render(fmt.Sprintf("%s / %s", formatClock(st.CurrentTime), formatClock(st.Duration))))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(st.State.String()))

	if m.loading {
		b.WriteString("  ")
		b.WriteString(dimStyle.Render("loading " + st.SourceURL))
	}

	vol, muted := sess.Volume()
	b.WriteString("  ")
	if muted {
		b.WriteString(labelStyle.Render("muted"))
	} else {
		b.WriteString(labelStyle.Render(fmt.Sprintf("vol %d%%", vol)))
	}
	b.WriteString("\n")

	switch {
	case m.audioErr != nil:
		b.WriteString(errorStyle.Render(m.audioErr.Error()))
	case st.Err != nil:
		b.WriteString(errorStyle.Render(st.Err.Error()))
	}

	return b.String()
}

func (m Model) renderMap() string {
	var b strings.Builder
	cols, rows := m.canvasSize()

	tracker := m.cfg.Tracker
	if tracker == nil {
		b.WriteString(dimStyle.Render("No location provider configured"))
		b.WriteString(strings.Repeat("\n", rows+1))
		b.WriteString(m.renderPreview())
		return b.String()
	}

	region := tracker.Region()
	canvas := RenderMap(region, tracker.Trail(), cols, rows)
	b.WriteString(trailStyle.Render(canvas.String()))
	b.WriteString("\n")

	b.WriteString(labelStyle.Render("center "))
	b.WriteString(timeStyle.Render(region.String()))
	if m.cfg.FeedName != "" {
		b.WriteString("  ")
		b.WriteString(dimStyle.Render("feed " + m.cfg.FeedName))
	}
	b.WriteString("\n")

	if last, ok := tracker.Last(); ok {
		b.WriteString(labelStyle.Render("fix    "))
		b.WriteString(timeStyle.Render(fmt.Sprintf("%s ±%.0fm", last, last.Accuracy)))
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d updates  %s", tracker.Updates(), tracker.State())))
	} else {
		b.WriteString(dimStyle.Render("waiting for first fix  " + tracker.State().String()))
	}
	b.WriteString("\n")

	if m.cfg.Sun != nil {
		if sun, err := m.cfg.Sun.ForRegion(region, time.Now()); err == nil {
			b.WriteString(labelStyle.Render("sun    "))
			b.WriteString(timeStyle.Render(fmt.Sprintf("↑ %s  ↓ %s", sun.Sunrise.Format("15:04"), sun.Sunset.Format("15:04"))))
		} else {
			b.WriteString(dimStyle.Render("sun    " + err.Error()))
		}
		b.WriteString("\n")
	}

	if err := tracker.Err(); err != nil {
		b.WriteString(errorStyle.Render(locationErrorText(err)))
	} else {
		b.WriteString(m.renderPreview())
	}

	return b.String()
}

func (m Model) renderPreview() string {
	if m.preview.status == "" {
		return ""
	}
	return dimStyle.Render("preview " + m.preview.status)
}

func (m Model) renderHelp() string {
	keys := "tab/1/2:screen  q:quit"
	if m.tab == tabAudio {
		keys = "space/p:play/pause  +/-:volume  m:mute  " + keys
	} else if m.cfg.NewPreview != nil && m.cfg.AudioURL != "" {
		keys = "a:play audio  " + keys
	}
	return helpStyle.Render(keys)
}

// locationErrorText turns tracker errors into the message shown on the map
func locationErrorText(err error) string {
	if errors.Is(err, location.ErrPermissionDenied) {
		return "Permission to access location was denied"
	}
	return err.Error()
}

// formatClock renders whole seconds as m:ss
func formatClock(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

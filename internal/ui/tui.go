// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the scope screens
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the TUI and blocks until the user quits
func Run(cfg Config) error {
	p := tea.NewProgram(NewModel(cfg), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}

	// a preview left running by a forced exit
	if m, ok := final.(Model); ok {
		m.stopPreview()
	}
	return nil
}

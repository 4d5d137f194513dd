// ABOUTME: Feed server TUI showing connected clients and the current walk position
// ABOUTME: Real-time status display using bubbletea
package feed

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerTUI manages the feed server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{}

	mu      sync.Mutex
	stopped bool
}

// ServerStatus holds server state for the TUI
type ServerStatus struct {
	Name       string
	Port       int
	Permission string
	Uptime     time.Duration
	Position   location.Position
	Clients    []PeerInfo
}

// PeerInfo describes one connected client
type PeerInfo struct {
	Name    string
	ID      string
	Watches int
}

type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg ServerStatus

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	clientHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("220"))

	deniedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down feed...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("Position Feed"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(headerStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	row("Feed: ", m.status.Name)
	row("Port: ", fmt.Sprintf("%d", m.status.Port))
	row("Uptime: ", time.Since(m.startTime).Round(time.Second).String())

	b.WriteString(headerStyle.Render("Permission: "))
	if m.status.Permission == location.PermissionDenied.String() {
		b.WriteString(deniedStyle.Render(m.status.Permission))
	} else {
		b.WriteString(valueStyle.Render(m.status.Permission))
	}
	b.WriteString("\n")

	row("Position: ", m.status.Position.String())
	b.WriteString("\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Connected Clients (%d)", len(m.status.Clients))))
	b.WriteString("\n\n")

	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No clients connected"))
		b.WriteString("\n")
	} else {
		for _, c := range m.status.Clients {
			b.WriteString(fmt.Sprintf("  • %s", c.Name))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (%d watching)", c.Watches)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(initial ServerStatus) error {
	m := tuiModel{
		status:    initial,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.mu.Lock()
	t.program = tea.NewProgram(m, tea.WithAltScreen())
	program := t.program
	t.mu.Unlock()

	go func() {
		for status := range t.updates {
			program.Send(statusMsg(status))
		}
	}()

	_, err := program.Run()
	return err
}

// Update sends a status update to the TUI without blocking
func (t *ServerTUI) Update(status ServerStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	select {
	case t.updates <- status:
	default:
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true

	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan returns the channel that signals when the user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}

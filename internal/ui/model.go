// ABOUTME: Bubbletea model for the scope screens
// ABOUTME: Drives the audio visualizer and the live map from one event loop
package ui

import (
	"context"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/frame"
	"github.com/Resonate-Protocol/resonate-scope/internal/location"
	"github.com/Resonate-Protocol/resonate-scope/internal/session"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	// FrameInterval paces analyser sampling while audio runs
	FrameInterval = 16 * time.Millisecond

	// MapInterval paces map redraws while the region animates
	MapInterval = 50 * time.Millisecond

	// PreviewLength is how much of the asset the map screen preview plays
	PreviewLength = 10 * time.Second

	previewInterval = 250 * time.Millisecond
	volumeStep      = 5
)

type tab int

const (
	tabMap tab = iota
	tabAudio
)

func (t tab) String() string {
	if t == tabAudio {
		return "audio"
	}
	return "map"
}

// Config wires the model to its components
type Config struct {
	Session  *session.Session
	AudioURL string
	Tracker  *location.Tracker
	Sun      *location.SunCalc
	// NewPreview creates a throwaway session for the map screen preview.
	// Nil disables the preview.
	NewPreview func() *session.Session
	// PreviewLength defaults to PreviewLength
	PreviewLength time.Duration
	FeedName      string
	StartTab      string
}

// Messages
type (
	loadRequestMsg struct{}

	loadedMsg struct {
		buf *audio.Buffer
		err error
	}

	frameMsg struct {
		tok frame.Token
	}

	mapTickMsg time.Time

	trackerStartedMsg struct {
		err error
	}

	previewLoadedMsg struct {
		sess *session.Session
		buf  *audio.Buffer
		err  error
	}

	previewTickMsg struct {
		sess *session.Session
		tok  frame.Token
	}
)

// preview is the map screen's throwaway playback
type preview struct {
	sess   *session.Session
	status string
}

// Model is the root TUI model
type Model struct {
	cfg Config
	tab tab

	waveform *Waveform
	spectrum []byte
	loading  bool
	audioErr error

	preview *preview

	width    int
	height   int
	quitting bool
}

// NewModel creates the root model
func NewModel(cfg Config) Model {
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = PreviewLength
	}
	m := Model{
		cfg:      cfg,
		waveform: NewWaveform(),
		preview:  &preview{},
	}
	if cfg.StartTab == tabAudio.String() {
		m.tab = tabAudio
	}
	return m
}

// Init starts loading, tracking and the map tick
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tea.WindowSize(), mapTick()}
	if m.cfg.Session != nil && m.cfg.AudioURL != "" {
		cmds = append(cmds, func() tea.Msg { return loadRequestMsg{} })
	}
	if m.cfg.Tracker != nil {
		cmds = append(cmds, m.startTracker())
	}
	return tea.Batch(cmds...)
}

func mapTick() tea.Cmd {
	return tea.Tick(MapInterval, func(t time.Time) tea.Msg {
		return mapTickMsg(t)
	})
}

func frameCmd(tok frame.Token) tea.Cmd {
	return tea.Tick(FrameInterval, func(time.Time) tea.Msg {
		return frameMsg{tok: tok}
	})
}

func previewTick(sess *session.Session, tok frame.Token) tea.Cmd {
	return tea.Tick(previewInterval, func(time.Time) tea.Msg {
		return previewTickMsg{sess: sess, tok: tok}
	})
}

func (m Model) startTracker() tea.Cmd {
	tracker := m.cfg.Tracker
	return func() tea.Msg {
		return trackerStartedMsg{err: tracker.Start(context.Background())}
	}
}

func fetchCmd(sess *session.Session, url string) tea.Cmd {
	return func() tea.Msg {
		buf, err := sess.Fetch(context.Background(), url)
		return loadedMsg{buf: buf, err: err}
	}
}

func fetchPreviewCmd(sess *session.Session, url string) tea.Cmd {
	return func() tea.Msg {
		buf, err := sess.Fetch(context.Background(), url)
		return previewLoadedMsg{sess: sess, buf: buf, err: err}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		cols, rows := m.canvasSize()
		m.waveform.Layout(float64(cols*2), float64(rows*4))

	case loadRequestMsg:
		return m.beginLoad()

	case loadedMsg:
		if msg.err != nil {
			m.audioErr = m.cfg.Session.Fail(msg.err)
		} else if err := m.cfg.Session.Attach(msg.buf); err != nil {
			m.audioErr = err
		}
		m.loading = false

	case frameMsg:
		res := m.cfg.Session.Tick(msg.tok)
		if res.Frame.TimeDomain != nil {
			m.waveform.SetSamples(res.Frame.TimeDomain)
			m.spectrum = res.Frame.FrequencyDomain
		}
		if res.Continue {
			return m, frameCmd(msg.tok)
		}

	case mapTickMsg:
		return m, mapTick()

	case trackerStartedMsg:
		// the tracker keeps its own error for the view

	case previewLoadedMsg:
		return m.attachPreview(msg)

	case previewTickMsg:
		return m.tickPreview(msg)
	}

	return m, nil
}

func (m Model) beginLoad() (tea.Model, tea.Cmd) {
	sess := m.cfg.Session
	if err := sess.Initialize(); err != nil {
		m.audioErr = err
		return m, nil
	}
	if err := sess.BeginLoad(m.cfg.AudioURL); err != nil {
		m.audioErr = err
		return m, nil
	}
	m.loading = true
	return m, fetchCmd(sess, m.cfg.AudioURL)
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.stopPreview()
		return m, tea.Quit
	case "tab":
		if m.tab == tabMap {
			m.tab = tabAudio
		} else {
			m.tab = tabMap
		}
		return m, nil
	case "1":
		m.tab = tabMap
		return m, nil
	case "2":
		m.tab = tabAudio
		return m, nil
	}

	if m.tab == tabAudio {
		return m.handleAudioKey(msg)
	}
	return m.handleMapKey(msg)
}

func (m Model) handleAudioKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sess := m.cfg.Session
	if sess == nil {
		return m, nil
	}

	switch msg.String() {
	case " ", "space", "p":
		tok, err := sess.TogglePlayPause()
		if err != nil {
			m.audioErr = err
			return m, nil
		}
		m.audioErr = nil
		if tok != 0 {
			return m, frameCmd(tok)
		}
	case "+", "=", "up":
		vol, _ := sess.Volume()
		sess.SetVolume(min(100, vol+volumeStep))
	case "-", "down":
		vol, _ := sess.Volume()
		sess.SetVolume(max(0, vol-volumeStep))
	case "m":
		_, muted := sess.Volume()
		sess.SetMuted(!muted)
	}
	return m, nil
}

func (m Model) handleMapKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() != "a" || m.cfg.NewPreview == nil || m.cfg.AudioURL == "" {
		return m, nil
	}
	if m.preview.sess != nil {
		m.stopPreview()
		return m, nil
	}

	sess := m.cfg.NewPreview()
	if err := sess.Initialize(); err != nil {
		m.preview.status = err.Error()
		return m, nil
	}
	if err := sess.BeginLoad(m.cfg.AudioURL); err != nil {
		sess.Teardown()
		m.preview.status = err.Error()
		return m, nil
	}
	m.preview.sess = sess
	m.preview.status = "loading"
	return m, fetchPreviewCmd(sess, m.cfg.AudioURL)
}

func (m Model) attachPreview(msg previewLoadedMsg) (tea.Model, tea.Cmd) {
	if m.preview.sess != msg.sess {
		// stopped while loading
		msg.sess.Teardown()
		return m, nil
	}

	sess := msg.sess
	if msg.err != nil {
		m.preview.status = sess.Fail(msg.err).Error()
		m.stopPreviewKeepStatus()
		return m, nil
	}
	if err := sess.Attach(msg.buf); err != nil {
		m.preview.status = err.Error()
		m.stopPreviewKeepStatus()
		return m, nil
	}
	sess.StopAfter(m.cfg.PreviewLength)

	tok, err := sess.TogglePlayPause()
	if err != nil {
		m.preview.status = err.Error()
		m.stopPreviewKeepStatus()
		return m, nil
	}
	m.preview.status = "playing"
	return m, previewTick(sess, tok)
}

func (m Model) tickPreview(msg previewTickMsg) (tea.Model, tea.Cmd) {
	if m.preview.sess != msg.sess {
		return m, nil
	}

	if res := msg.sess.Tick(msg.tok); !res.Continue {
		m.preview.status = "finished"
		m.stopPreviewKeepStatus()
		return m, nil
	}
	return m, previewTick(msg.sess, msg.tok)
}

// stopPreview tears the preview down and clears its status
func (m *Model) stopPreview() {
	m.stopPreviewKeepStatus()
	m.preview.status = ""
}

func (m *Model) stopPreviewKeepStatus() {
	if m.preview.sess != nil {
		m.preview.sess.Teardown()
		m.preview.sess = nil
	}
}

// canvasSize returns the plot area in terminal cells
func (m Model) canvasSize() (cols, rows int) {
	cols = m.width - 4
	rows = m.height - 9
	return max(cols, 0), max(rows, 1)
}

// PreviewActive reports whether the map screen preview is loaded or playing
func (m Model) PreviewActive() bool {
	return m.preview.sess != nil
}

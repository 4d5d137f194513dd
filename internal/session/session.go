// ABOUTME: Audio playback session state machine
// ABOUTME: Loads a remote asset, toggles playback and samples analyser frames per tick
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/frame"
	"github.com/Resonate-Protocol/resonate-scope/internal/metrics"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/analysis"
)

var (
	// ErrLoadFailed wraps fetch and decode failures
	ErrLoadFailed = errors.New("load failed")
	// ErrInvalidState is returned for transitions the current state does not allow
	ErrInvalidState = errors.New("invalid session state")
	// ErrNotReady is returned when no buffer is attached yet
	ErrNotReady = errors.New("session not ready")
)

// State of a playback session
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateRunning
	StatePaused
	StateEnded
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultFFTSize   = 512
	DefaultSmoothing = 0.8
)

// Config wires a session to its collaborators
type Config struct {
	NewContext ContextFactory
	Fetcher    Fetcher
	FFTSize    int
	// Smoothing is the analyser time constant, nil for DefaultSmoothing.
	// Zero disables smoothing.
	Smoothing *float64
	Metrics   *metrics.Metrics
	// OnStateChange runs with the session lock held and must not call back
	// into the session
	OnStateChange func(from, to State)
}

// SampleFrame is one analyser snapshot
type SampleFrame struct {
	TimeDomain      []byte
	FrequencyDomain []byte
}

// TickResult is returned by Tick. Continue is false when the loop must not
// schedule another frame.
type TickResult struct {
	Frame    SampleFrame
	Continue bool
}

// Status is an observable snapshot of a session
type Status struct {
	SourceURL   string
	State       State
	Duration    time.Duration
	CurrentTime time.Duration
	Playing     bool
	Ended       bool
	Err         error
}

// Session owns one audio context for the lifetime of a screen
type Session struct {
	cfg       Config
	smoothing float64
	loop      frame.Loop

	mu       sync.Mutex
	state    State
	url      string
	actx     AudioContext
	analyser *analysis.Analyser
	buf      *audio.Buffer
	duration time.Duration
	current  time.Duration
	err      error
}

// New creates an uninitialized session
func New(cfg Config) *Session {
	if cfg.FFTSize == 0 {
		cfg.FFTSize = DefaultFFTSize
	}
	smoothing := DefaultSmoothing
	if cfg.Smoothing != nil {
		smoothing = *cfg.Smoothing
	}
	return &Session{cfg: cfg, smoothing: smoothing}
}

// setState must hold s.mu
func (s *Session) setState(to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.cfg.Metrics.RecordTransition("session", to.String())
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(from, to)
	}
}

// Initialize creates the audio context and analyser. Calling it again is a
// no-op.
func (s *Session) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return ErrInvalidState
	}
	if s.actx != nil {
		return nil
	}

	analyser, err := analysis.New(analysis.Config{
		FFTSize:               s.cfg.FFTSize,
		SmoothingTimeConstant: s.smoothing,
	})
	if err != nil {
		return fmt.Errorf("failed to create analyser: %w", err)
	}

	actx, err := s.cfg.NewContext()
	if err != nil {
		return fmt.Errorf("failed to create audio context: %w", err)
	}

	s.actx = actx
	s.analyser = analyser
	log.Printf("Audio session initialized (fft size %d, smoothing %.2f)", s.cfg.FFTSize, s.smoothing)
	return nil
}

// Load fetches, decodes and attaches an asset
func (s *Session) Load(ctx context.Context, url string) error {
	if err := s.BeginLoad(url); err != nil {
		return err
	}
	buf, err := s.Fetch(ctx, url)
	if err != nil {
		return s.Fail(err)
	}
	return s.Attach(buf)
}

// BeginLoad enters the loading state
func (s *Session) BeginLoad(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.actx == nil {
		return ErrNotReady
	}
	if s.state != StateUninitialized && s.state != StateFailed {
		log.Printf("Ignoring load of %s in state %s", url, s.state)
		return ErrInvalidState
	}

	s.url = url
	s.err = nil
	s.setState(StateLoading)
	log.Printf("Loading audio asset %s", url)
	return nil
}

// Fetch retrieves and decodes an asset. It touches no session state except
// the immutable audio context, so it can run off the UI goroutine.
func (s *Session) Fetch(ctx context.Context, url string) (*audio.Buffer, error) {
	s.mu.Lock()
	actx := s.actx
	s.mu.Unlock()
	if actx == nil {
		return nil, ErrNotReady
	}

	data, err := s.cfg.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	buf, err := actx.DecodeAudioData(data)
	if err != nil {
		if f, ok := s.cfg.Fetcher.(Forgetter); ok {
			f.Forget(url)
		}
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return buf, nil
}

// Fail moves a loading session to the failed state
func (s *Session) Fail(cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := fmt.Errorf("%w: %v", ErrLoadFailed, cause)
	if s.state != StateLoading {
		return err
	}
	s.err = err
	s.setState(StateFailed)
	log.Printf("Audio load failed: %v", cause)
	return err
}

// Attach starts the decoded buffer and immediately suspends the context,
// leaving the session ready for an explicit play
func (s *Session) Attach(buf *audio.Buffer) error {
	s.mu.Lock()
	if s.state != StateLoading {
		state := s.state
		s.mu.Unlock()
		log.Printf("Ignoring decoded asset in state %s", state)
		return ErrInvalidState
	}

	if err := s.actx.StartSource(buf, s.analyser); err != nil {
		s.mu.Unlock()
		return s.Fail(err)
	}
	if err := s.actx.Suspend(); err != nil {
		s.actx.StopSource(0)
		s.mu.Unlock()
		return s.Fail(err)
	}
	defer s.mu.Unlock()

	s.buf = buf
	s.duration = buf.Duration()
	s.current = 0
	s.setState(StateReady)
	log.Printf("Audio asset ready: %s, %v, %dHz %dch", buf.Format.Codec, s.duration, buf.Format.SampleRate, buf.Format.Channels)
	return nil
}

// TogglePlayPause suspends a running session or resumes a suspended one.
// Resuming returns the token of a fresh frame loop.
func (s *Session) TogglePlayPause() (frame.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		if err := s.actx.Suspend(); err != nil {
			return 0, fmt.Errorf("failed to suspend audio: %w", err)
		}
		s.loop.Cancel()
		s.setState(StatePaused)
		return 0, nil

	case StateReady, StatePaused:
		if err := s.actx.Resume(); err != nil {
			return 0, fmt.Errorf("failed to resume audio: %w", err)
		}
		s.setState(StateRunning)
		return s.loop.Start(), nil

	case StateEnded:
		log.Printf("Ignoring play/pause: playback ended")
		return 0, nil

	case StateClosed:
		log.Printf("Ignoring play/pause: session closed")
		return 0, ErrInvalidState

	default:
		log.Printf("Ignoring play/pause in state %s", s.state)
		return 0, ErrNotReady
	}
}

// Tick samples the analyser for tok's frame. A stale token yields an empty
// result that stops the loop.
func (s *Session) Tick(tok frame.Token) TickResult {
	if !s.loop.Active(tok) {
		return TickResult{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || s.analyser == nil {
		s.loop.Cancel()
		return TickResult{}
	}

	f := SampleFrame{
		TimeDomain:      make([]byte, s.analyser.FFTSize()),
		FrequencyDomain: make([]byte, s.analyser.FrequencyBinCount()),
	}
	s.analyser.ByteTimeDomainData(f.TimeDomain)
	s.analyser.ByteFrequencyData(f.FrequencyDomain)
	s.cfg.Metrics.IncFrames()

	now := s.actx.CurrentTime()
	if now >= s.duration || s.actx.SourceEnded() {
		s.current = min(now, s.duration).Truncate(time.Second)
		s.loop.Cancel()
		s.setState(StateEnded)
		log.Printf("Playback ended at %v", now)
		return TickResult{Frame: f}
	}

	s.current = now.Truncate(time.Second)
	return TickResult{Frame: f, Continue: true}
}

// StopAfter ends playback once d of the asset has rendered. The next tick
// after that point ends the session.
func (s *Session) StopAfter(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.actx == nil || s.buf == nil || s.state == StateClosed {
		return
	}
	s.actx.StopSource(d)
}

// Teardown stops the frame loop and closes the audio context. It is safe
// to call more than once.
func (s *Session) Teardown() error {
	s.loop.Cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return nil
	}

	var err error
	if s.actx != nil {
		err = s.actx.Close()
	}
	s.setState(StateClosed)
	log.Printf("Audio session closed")

	if err != nil {
		return fmt.Errorf("failed to close audio context: %w", err)
	}
	return nil
}

// Status returns a snapshot for display
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		SourceURL:   s.url,
		State:       s.state,
		Duration:    s.duration.Truncate(time.Second),
		CurrentTime: s.current,
		Playing:     s.loop.Running(),
		Ended:       s.state == StateEnded,
		Err:         s.err,
	}
}

// Buffer returns the attached decoded buffer, nil before ready
func (s *Session) Buffer() *audio.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf
}

// SetVolume sets the output volume (0-100)
func (s *Session) SetVolume(volume int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actx != nil && s.state != StateClosed {
		s.actx.SetVolume(volume)
	}
}

// SetMuted sets the output mute state
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actx != nil && s.state != StateClosed {
		s.actx.SetMuted(muted)
	}
}

// Volume reports the output volume and mute state
func (s *Session) Volume() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.actx == nil || s.state == StateClosed {
		return 100, false
	}
	return s.actx.Volume()
}

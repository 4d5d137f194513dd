// ABOUTME: Buffer source node
// ABOUTME: Plays a decoded buffer once and feeds connected analysers
package graph

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/analysis"
)

// ErrAlreadyStarted is returned when a source is started twice
var ErrAlreadyStarted = errors.New("buffer source already started")

// BufferSource plays one decoded buffer from the start. A source can be
// started once.
type BufferSource struct {
	ctx       *Context
	buf       *audio.Buffer
	analysers []*analysis.Analyser
	pos       int
	started   bool
	ended     bool

	// stopFrame is the context frame where rendering ends, -1 for none
	stopFrame int64
}

// CreateBufferSource creates a source for a buffer in the context format
func (c *Context) CreateBufferSource(buf *audio.Buffer) (*BufferSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return nil, ErrClosed
	}
	if buf == nil {
		return nil, errors.New("nil buffer")
	}
	if buf.Format.SampleRate != c.cfg.SampleRate || buf.Format.Channels != c.cfg.Channels {
		return nil, fmt.Errorf("buffer format %dHz/%dch does not match context %dHz/%dch",
			buf.Format.SampleRate, buf.Format.Channels, c.cfg.SampleRate, c.cfg.Channels)
	}

	return &BufferSource{ctx: c, buf: buf, stopFrame: -1}, nil
}

// Buffer returns the buffer being played
func (s *BufferSource) Buffer() *audio.Buffer {
	return s.buf
}

// Connect taps the rendered signal into an analyser. The source always
// renders to the context destination as well.
func (s *BufferSource) Connect(a *analysis.Analyser) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.analysers = append(s.analysers, a)
}

// Start makes this the active source of its context. It replaces any
// source already playing.
func (s *BufferSource) Start() error {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()

	if s.ctx.state == StateClosed {
		return ErrClosed
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx.source = s
	return nil
}

// Stop schedules the end of playback at context time when. A time at or
// before the current context time stops immediately.
func (s *BufferSource) Stop(when time.Duration) {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()

	frame := int64(when) * int64(s.ctx.cfg.SampleRate) / int64(time.Second)
	if frame > s.ctx.frames {
		s.stopFrame = frame
		return
	}

	s.ended = true
	if s.ctx.source == s {
		s.ctx.source = nil
	}
}

// Ended reports whether the whole buffer has been rendered or a Stop time
// was reached
func (s *BufferSource) Ended() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.ended
}

// pull takes up to n frames (must hold ctx.mu). It returns the interleaved
// samples and their mono mix normalized to [-1, 1].
func (s *BufferSource) pull(n int) ([]int32, []float64) {
	if s.stopFrame >= 0 {
		left := s.stopFrame - s.ctx.frames
		if left <= 0 {
			s.ended = true
			return nil, nil
		}
		if int64(n) > left {
			n = int(left)
		}
	}

	frames := s.buf.Frames()
	remaining := frames - s.pos
	if n > remaining {
		n = remaining
	}
	if n <= 0 {
		s.ended = true
		return nil, nil
	}

	ch := s.buf.Format.Channels
	samples := s.buf.Samples[s.pos*ch : (s.pos+n)*ch]
	mono := make([]float64, n)
	for i := range mono {
		mono[i] = s.buf.Mono(s.pos + i)
	}

	s.pos += n
	if s.pos >= frames || (s.stopFrame >= 0 && s.ctx.frames+int64(n) >= s.stopFrame) {
		s.ended = true
	}
	return samples, mono
}

// ABOUTME: Audio context with a quantum render loop
// ABOUTME: Owns the output device, the active source and the render clock
package graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/decode"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/resample"
)

// ErrClosed is returned by operations on a closed context
var ErrClosed = errors.New("audio context closed")

// State of an audio context
type State int

const (
	StateSuspended State = iota
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config describes the rendering format of a context
type Config struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Quantum    time.Duration
}

// DefaultConfig returns 44.1kHz stereo 16-bit with 10ms quanta
func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		Channels:   2,
		BitDepth:   16,
		Quantum:    10 * time.Millisecond,
	}
}

// Stats counts render activity
type Stats struct {
	Quanta      int64
	Frames      int64
	WriteErrors int64
}

// Context renders the active buffer source to an output device
type Context struct {
	cfg           Config
	out           output.Output
	quantumFrames int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  State
	source *BufferSource
	frames int64
	stats  Stats
}

// NewContext opens the output device and starts rendering. The new context
// is running.
func NewContext(out output.Output, cfg Config) (*Context, error) {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if cfg.BitDepth <= 0 {
		cfg.BitDepth = def.BitDepth
	}
	if cfg.Quantum <= 0 {
		cfg.Quantum = def.Quantum
	}

	if err := out.Open(cfg.SampleRate, cfg.Channels, cfg.BitDepth); err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}

	quantumFrames := int(int64(cfg.SampleRate) * int64(cfg.Quantum) / int64(time.Second))
	if quantumFrames < 1 {
		quantumFrames = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Context{
		cfg:           cfg,
		out:           out,
		quantumFrames: quantumFrames,
		ctx:           ctx,
		cancel:        cancel,
		state:         StateRunning,
	}

	c.wg.Add(1)
	go c.run()

	log.Printf("Audio context created: %dHz, %d channels, %v quantum", cfg.SampleRate, cfg.Channels, cfg.Quantum)

	return c, nil
}

// SampleRate returns the context rendering rate
func (c *Context) SampleRate() int {
	return c.cfg.SampleRate
}

// State returns the current state
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentTime returns the rendered playback time
func (c *Context) CurrentTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.frames) * time.Second / time.Duration(c.cfg.SampleRate)
}

// Stats returns a snapshot of render counters
func (c *Context) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Suspend halts rendering and the device. Suspending a suspended context
// is a no-op.
func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateSuspended:
		return nil
	}

	if err := c.out.Suspend(); err != nil {
		log.Printf("Audio output suspend failed: %v", err)
	}
	c.state = StateSuspended
	return nil
}

// Resume restarts rendering. Resuming a running context is a no-op.
func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateRunning:
		return nil
	}

	if err := c.out.Resume(); err != nil {
		log.Printf("Audio output resume failed: %v", err)
	}
	c.state = StateRunning
	return nil
}

// Close stops rendering and releases the device. Closing twice is a no-op.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	c.source = nil
	c.mu.Unlock()

	c.cancel()
	err := c.out.Close()
	c.wg.Wait()

	if err != nil {
		return fmt.Errorf("failed to close audio output: %w", err)
	}
	log.Printf("Audio context closed")
	return nil
}

// SetVolume forwards to outputs with software volume
func (c *Context) SetVolume(volume int) {
	if vc, ok := c.out.(output.VolumeControl); ok {
		vc.SetVolume(volume)
	}
}

// SetMuted forwards to outputs with software volume
func (c *Context) SetMuted(muted bool) {
	if vc, ok := c.out.(output.VolumeControl); ok {
		vc.SetMuted(muted)
	}
}

// Volume reports the output volume, 100 when the output has no control
func (c *Context) Volume() (int, bool) {
	if vc, ok := c.out.(output.VolumeControl); ok {
		return vc.GetVolume(), vc.IsMuted()
	}
	return 100, false
}

// DecodeAudioData decodes a complete asset and converts it to the context
// rate and channel count
func (c *Context) DecodeAudioData(data []byte) (*audio.Buffer, error) {
	if c.State() == StateClosed {
		return nil, ErrClosed
	}

	buf, err := decode.Decode(data)
	if err != nil {
		return nil, err
	}

	buf = resample.Buffer(buf, c.cfg.SampleRate)
	return remix(buf, c.cfg.Channels), nil
}

func (c *Context) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Quantum)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.renderQuantum()
		}
	}
}

// renderQuantum advances the active source by one quantum
func (c *Context) renderQuantum() {
	c.mu.Lock()
	src := c.source
	if c.state != StateRunning || src == nil {
		c.mu.Unlock()
		return
	}

	samples, mono := src.pull(c.quantumFrames)
	frames := len(mono)
	if src.ended {
		c.source = nil
	}
	c.frames += int64(frames)
	c.stats.Quanta++
	c.stats.Frames += int64(frames)
	analysers := src.analysers
	c.mu.Unlock()

	if frames == 0 {
		return
	}

	for _, a := range analysers {
		a.Write(mono)
	}

	if err := c.out.Write(samples); err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.mu.Lock()
		c.stats.WriteErrors++
		first := c.stats.WriteErrors == 1
		c.mu.Unlock()
		if first {
			log.Printf("Audio output write failed: %v", err)
		}
	}
}

// remix maps a buffer to the requested channel count
func remix(buf *audio.Buffer, channels int) *audio.Buffer {
	src := buf.Format.Channels
	if src == channels || src <= 0 {
		return buf
	}

	frames := buf.Frames()
	out := make([]int32, frames*channels)
	for f := 0; f < frames; f++ {
		frame := buf.Samples[f*src : (f+1)*src]
		for ch := 0; ch < channels; ch++ {
			switch {
			case src == 1:
				out[f*channels+ch] = frame[0]
			case channels == 1:
				var sum int64
				for _, s := range frame {
					sum += int64(s)
				}
				out[f*channels] = int32(sum / int64(src))
			case ch < src:
				out[f*channels+ch] = frame[ch]
			}
		}
	}

	format := buf.Format
	format.Channels = channels
	return &audio.Buffer{Format: format, Samples: out}
}

// ABOUTME: Audio context abstraction used by the playback session
// ABOUTME: Adapts the audio graph so sessions can run against a fake in tests
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/analysis"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/graph"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/output"
)

// AudioContext is the part of an audio graph a session drives
type AudioContext interface {
	DecodeAudioData(data []byte) (*audio.Buffer, error)
	// StartSource plays buf to the destination with a tap into analyser
	StartSource(buf *audio.Buffer, analyser *analysis.Analyser) error
	// StopSource ends the playing source at context time when
	StopSource(when time.Duration)
	// SourceEnded reports whether the started source has finished
	SourceEnded() bool
	Suspend() error
	Resume() error
	Close() error
	CurrentTime() time.Duration
	SetVolume(volume int)
	SetMuted(muted bool)
	Volume() (int, bool)
}

// Fetcher retrieves raw asset bytes
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Forgetter is implemented by fetchers that cache assets. A session drops an
// asset that fails to decode so a retry downloads it again.
type Forgetter interface {
	Forget(url string)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch calls fn
func (fn FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return fn(ctx, url)
}

// ContextFactory creates the audio context for one session
type ContextFactory func() (AudioContext, error)

type graphContext struct {
	*graph.Context

	mu  sync.Mutex
	src *graph.BufferSource
}

func (g *graphContext) StartSource(buf *audio.Buffer, analyser *analysis.Analyser) error {
	src, err := g.CreateBufferSource(buf)
	if err != nil {
		return err
	}
	analyser.Reset()
	src.Connect(analyser)
	if err := src.Start(); err != nil {
		return err
	}

	g.mu.Lock()
	g.src = src
	g.mu.Unlock()
	return nil
}

func (g *graphContext) source() *graph.BufferSource {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.src
}

func (g *graphContext) StopSource(when time.Duration) {
	if src := g.source(); src != nil {
		src.Stop(when)
	}
}

func (g *graphContext) SourceEnded() bool {
	src := g.source()
	return src != nil && src.Ended()
}

func (g *graphContext) Close() error {
	st := g.Stats()
	if st.WriteErrors > 0 {
		log.Printf("Audio context rendered %d frames in %d quanta with %d write errors", st.Frames, st.Quanta, st.WriteErrors)
	}
	return g.Context.Close()
}

// GraphContext returns a factory that opens a new audio graph on the output
// built by newOutput
func GraphContext(newOutput func() (output.Output, error), cfg graph.Config) ContextFactory {
	return func() (AudioContext, error) {
		out, err := newOutput()
		if err != nil {
			return nil, err
		}
		c, err := graph.NewContext(out, cfg)
		if err != nil {
			return nil, err
		}
		return &graphContext{Context: c}, nil
	}
}

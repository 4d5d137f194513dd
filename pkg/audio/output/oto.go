// ABOUTME: Oto-based audio output for the render graph
// ABOUTME: Shares the process-wide oto context and gives each output its own player
package output

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/encode"
	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process, so every Oto output plays through
// the same one and the first Open fixes its format.
var shared struct {
	sync.Mutex
	ctx      *oto.Context
	rate     int
	channels int
}

func sharedOtoContext(sampleRate, channels int) (*oto.Context, error) {
	shared.Lock()
	defer shared.Unlock()

	if shared.ctx != nil {
		if shared.rate != sampleRate || shared.channels != channels {
			return nil, fmt.Errorf("oto context already running at %dHz/%dch, requested %dHz/%dch",
				shared.rate, shared.channels, sampleRate, channels)
		}
		return shared.ctx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	shared.ctx, shared.rate, shared.channels = ctx, sampleRate, channels
	return ctx, nil
}

// Oto plays 16-bit PCM through an oto player fed from a pipe
type Oto struct {
	volumeState

	mu      sync.Mutex
	player  *oto.Player
	pw      *io.PipeWriter
	encoder *encode.PCMEncoder
	scratch []byte
	closed  bool
}

// NewOto creates an unopened oto output
func NewOto() *Oto {
	return &Oto{volumeState: newVolumeState()}
}

// Open attaches a player to the shared context. Only 16-bit output is
// supported; other depths are packed as 16-bit.
func (o *Oto) Open(sampleRate, channels, bitDepth int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return errors.New("oto output already closed")
	}
	if o.player != nil {
		return errors.New("oto output already open")
	}
	if bitDepth != 16 {
		log.Printf("Warning: oto plays 16-bit only, packing %d-bit render as 16-bit", bitDepth)
	}

	ctx, err := sharedOtoContext(sampleRate, channels)
	if err != nil {
		return err
	}
	if o.encoder, err = encode.NewPCM(16); err != nil {
		return err
	}

	pr, pw := io.Pipe()
	o.pw = pw
	o.player = ctx.NewPlayer(pr)
	o.player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", sampleRate, channels)
	return nil
}

// Write hands one quantum to the player. It blocks while the player's own
// buffer is full.
func (o *Oto) Write(samples []int32) error {
	o.mu.Lock()
	if o.player == nil {
		o.mu.Unlock()
		return ErrNotOpen
	}
	o.scratch = o.encoder.AppendEncode(o.scratch[:0], o.apply(samples))
	data, pw := o.scratch, o.pw
	o.mu.Unlock()

	if _, err := pw.Write(data); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Suspend pauses this output's player. Other players on the shared context
// keep running.
func (o *Oto) Suspend() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return ErrNotOpen
	}
	o.player.Pause()
	return nil
}

// Resume restarts the player
func (o *Oto) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return ErrNotOpen
	}
	o.player.Play()
	return nil
}

// Close stops the player. The shared context stays up for later outputs.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	if o.pw != nil {
		o.pw.Close()
		o.pw = nil
	}
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	return nil
}

// ABOUTME: Malgo-based audio output for the render graph
// ABOUTME: Feeds a miniaudio playback callback from a bounded sample queue
package output

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/encode"
	"github.com/gen2brain/malgo"
)

// malgoLatencyMs sizes the queue. The analyser sees samples when they are
// rendered, so a longer queue makes the waveform run ahead of the speakers.
const malgoLatencyMs = 120

// Malgo plays through miniaudio. Each output owns one device; Open may be
// called once.
type Malgo struct {
	volumeState

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	channels int
	bitDepth int
	encoder  *encode.PCMEncoder
	queue    *sampleQueue
	scratch  []int32
	closed   bool
}

// NewMalgo creates an unopened miniaudio output
func NewMalgo() *Malgo {
	return &Malgo{volumeState: newVolumeState()}
}

// Open creates and starts the playback device
func (m *Malgo) Open(sampleRate, channels, bitDepth int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.New("malgo output already closed")
	}
	if m.device != nil {
		return fmt.Errorf("malgo output already open at %d channels", m.channels)
	}

	format, err := malgoFormat(bitDepth)
	if err != nil {
		return err
	}
	if bitDepth != 32 {
		if m.encoder, err = encode.NewPCM(bitDepth); err != nil {
			return err
		}
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	m.channels = channels
	m.bitDepth = bitDepth
	m.queue = newSampleQueue(sampleRate * channels * malgoLatencyMs / 1000)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = format
	cfg.Playback.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			m.fill(out, int(frameCount))
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.malgoCtx = mctx
	m.device = device

	log.Printf("Audio output initialized: %dHz, %d channels, %d-bit (malgo)", sampleRate, channels, bitDepth)
	return nil
}

func malgoFormat(bitDepth int) (malgo.FormatType, error) {
	switch bitDepth {
	case 16:
		return malgo.FormatS16, nil
	case 24:
		return malgo.FormatS24, nil
	case 32:
		return malgo.FormatS32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", bitDepth)
}

// Write queues one rendered quantum. Samples that do not fit are dropped.
func (m *Malgo) Write(samples []int32) error {
	m.mu.Lock()
	q := m.queue
	open := m.device != nil
	m.mu.Unlock()
	if !open {
		return ErrNotOpen
	}

	q.push(m.apply(samples))
	return nil
}

// fill runs on the miniaudio thread
func (m *Malgo) fill(out []byte, frames int) {
	n := frames * m.channels
	if cap(m.scratch) < n {
		m.scratch = make([]int32, n)
	}
	samples := m.scratch[:n]
	m.queue.pop(samples)

	if m.bitDepth != 32 {
		m.encoder.AppendEncode(out[:0], samples)
		return
	}
	for i, s := range samples {
		// 24-bit range in the top of a 32-bit container
		v := uint32(s << 8)
		out[i*4] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}
}

// Suspend stops the callback and drops queued audio
func (m *Malgo) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return ErrNotOpen
	}
	if err := m.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}
	m.queue.reset()
	return nil
}

// Resume restarts the callback
func (m *Malgo) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return ErrNotOpen
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

// Close releases the device and the miniaudio context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil

		dropped, underruns := m.queue.counters()
		if dropped > 0 || underruns > 0 {
			log.Printf("Audio output closed: %d samples dropped, %d underruns", dropped, underruns)
		}
	}
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

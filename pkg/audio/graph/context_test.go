// ABOUTME: Tests for the audio context and buffer source
// ABOUTME: Tests state transitions, the render clock, analyser taps and decoding
package graph

import (
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/testutil"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/analysis"
	"github.com/Resonate-Protocol/resonate-scope/pkg/audio/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualConfig never ticks on its own so tests drive renderQuantum directly
func manualConfig() Config {
	cfg := DefaultConfig()
	cfg.Quantum = time.Hour
	return cfg
}

func silentBuffer(seconds float64) *audio.Buffer {
	frames := int(seconds * 44100)
	return &audio.Buffer{
		Format:  audio.Format{Codec: "wav", SampleRate: 44100, Channels: 2, BitDepth: 16},
		Samples: make([]int32, frames*2),
	}
}

type failingOutput struct {
	output.Null
}

func (f *failingOutput) Open(sampleRate, channels, bitDepth int) error {
	return errors.New("no device")
}

func TestNewContextOpensOutput(t *testing.T) {
	out := output.NewNull()
	c, err := NewContext(out, manualConfig())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, StateRunning, c.State())
	assert.Equal(t, 44100, c.SampleRate())
	assert.Equal(t, time.Duration(0), c.CurrentTime())
}

func TestNewContextOpenFailure(t *testing.T) {
	_, err := NewContext(&failingOutput{}, manualConfig())
	assert.Error(t, err)
}

func TestClockAdvancesOnlyWhileRendering(t *testing.T) {
	out := output.NewNull()
	c, err := NewContext(out, manualConfig())
	require.NoError(t, err)
	defer c.Close()

	// no source yet
	c.renderQuantum()
	assert.Equal(t, time.Duration(0), c.CurrentTime())

	src, err := c.CreateBufferSource(silentBuffer(1))
	require.NoError(t, err)
	require.NoError(t, src.Start())

	c.renderQuantum()
	assert.Equal(t, 10*time.Millisecond, c.CurrentTime())
	assert.Equal(t, 441*2, out.Written())

	require.NoError(t, c.Suspend())
	assert.True(t, out.Suspended())
	c.renderQuantum()
	assert.Equal(t, 10*time.Millisecond, c.CurrentTime())

	require.NoError(t, c.Resume())
	assert.False(t, out.Suspended())
	c.renderQuantum()
	assert.Equal(t, 20*time.Millisecond, c.CurrentTime())
}

func TestSourceEndsAtBufferDuration(t *testing.T) {
	c, err := NewContext(output.NewNull(), manualConfig())
	require.NoError(t, err)
	defer c.Close()

	buf := silentBuffer(0.055)
	src, err := c.CreateBufferSource(buf)
	require.NoError(t, err)
	require.NoError(t, src.Start())

	for i := 0; i < 10; i++ {
		c.renderQuantum()
	}

	assert.True(t, src.Ended())
	assert.Equal(t, buf.Duration(), c.CurrentTime())
	assert.Equal(t, int64(buf.Frames()), c.Stats().Frames)
}

func TestSourceStartTwice(t *testing.T) {
	c, err := NewContext(output.NewNull(), manualConfig())
	require.NoError(t, err)
	defer c.Close()

	src, err := c.CreateBufferSource(silentBuffer(0.1))
	require.NoError(t, err)
	require.NoError(t, src.Start())
	assert.ErrorIs(t, src.Start(), ErrAlreadyStarted)
}

func TestSourceStop(t *testing.T) {
	c, err := NewContext(output.NewNull(), manualConfig())
	require.NoError(t, err)
	defer c.Close()

	src, err := c.CreateBufferSource(silentBuffer(1))
	require.NoError(t, err)
	require.NoError(t, src.Start())

	src.Stop(0)
	c.renderQuantum()
	assert.True(t, src.Ended())
	assert.Equal(t, time.Duration(0), c.CurrentTime())
}

func TestSourceScheduledStop(t *testing.T) {
	c, err := NewContext(output.NewNull(), manualConfig())
	require.NoError(t, err)
	defer c.Close()

	src, err := c.CreateBufferSource(silentBuffer(1))
	require.NoError(t, err)
	require.NoError(t, src.Start())

	src.Stop(100 * time.Millisecond)
	assert.False(t, src.Ended())

	c.renderQuantum()
	assert.True(t, src.Ended())
	assert.Equal(t, 100*time.Millisecond, c.CurrentTime())
	assert.Equal(t, int64(4410), c.Stats().Frames)

	c.renderQuantum()
	assert.Equal(t, 100*time.Millisecond, c.CurrentTime())
}

func TestCreateBufferSourceFormatMismatch(t *testing.T) {
	c, err := NewContext(output.NewNull(), manualConfig())
	require.NoError(t, err)
	defer c.Close()

	buf := &audio.Buffer{
		Format:  audio.Format{SampleRate: 8000, Channels: 1},
		Samples: make([]int32, 800),
	}
	_, err = c.CreateBufferSource(buf)
	assert.Error(t, err)
}

func TestAnalyserReceivesRenderedSignal(t *testing.T) {
	c, err := NewContext(output.NewNull(), manualConfig())
	require.NoError(t, err)
	defer c.Close()

	buf := silentBuffer(0.1)
	for i := range buf.Samples {
		buf.Samples[i] = audio.Max24Bit / 2
	}

	a, err := analysis.New(analysis.Config{FFTSize: 256})
	require.NoError(t, err)

	src, err := c.CreateBufferSource(buf)
	require.NoError(t, err)
	src.Connect(a)
	require.NoError(t, src.Start())

	c.renderQuantum()

	wave := make([]byte, a.FFTSize())
	a.ByteTimeDomainData(wave)
	assert.Equal(t, byte(191), wave[len(wave)-1])
}

func TestClosedContext(t *testing.T) {
	c, err := NewContext(output.NewNull(), manualConfig())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, StateClosed, c.State())
	assert.ErrorIs(t, c.Suspend(), ErrClosed)
	assert.ErrorIs(t, c.Resume(), ErrClosed)

	_, err = c.CreateBufferSource(silentBuffer(0.1))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = c.DecodeAudioData([]byte("RIFF"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRenderLoopRunsOnTicker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quantum = 2 * time.Millisecond
	c, err := NewContext(output.NewNull(), cfg)
	require.NoError(t, err)
	defer c.Close()

	src, err := c.CreateBufferSource(silentBuffer(0.02))
	require.NoError(t, err)
	require.NoError(t, src.Start())

	assert.Eventually(t, src.Ended, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, c.CurrentTime())
}

func TestDecodeAudioDataConvertsFormat(t *testing.T) {
	c, err := NewContext(output.NewNull(), manualConfig())
	require.NoError(t, err)
	defer c.Close()

	payload := testutil.SineWAV(t, 0.5, 8000, 1, 440)

	buf, err := c.DecodeAudioData(payload)
	require.NoError(t, err)

	assert.Equal(t, 44100, buf.Format.SampleRate)
	assert.Equal(t, 2, buf.Format.Channels)
	assert.InDelta(t, 0.5, buf.Duration().Seconds(), 0.001)
}

func TestSetVolumeForwardsToOutput(t *testing.T) {
	out := output.NewNull()
	c, err := NewContext(out, manualConfig())
	require.NoError(t, err)
	defer c.Close()

	c.SetVolume(40)
	c.SetMuted(true)

	volume, muted := c.Volume()
	assert.Equal(t, 40, volume)
	assert.True(t, muted)
}

func TestRemix(t *testing.T) {
	mono := &audio.Buffer{Format: audio.Format{SampleRate: 10, Channels: 1}, Samples: []int32{1, 2}}
	stereo := remix(mono, 2)
	assert.Equal(t, []int32{1, 1, 2, 2}, stereo.Samples)

	down := remix(&audio.Buffer{Format: audio.Format{SampleRate: 10, Channels: 2}, Samples: []int32{2, 4, 6, 8}}, 1)
	assert.Equal(t, []int32{3, 7}, down.Samples)
	assert.Equal(t, 1, down.Format.Channels)
}

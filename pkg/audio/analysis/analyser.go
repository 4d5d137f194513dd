// ABOUTME: Analyser node with a sample ring and FFT snapshots
// ABOUTME: Converts the latest window of audio to byte arrays for visualizers
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	MinFFTSize = 32
	MaxFFTSize = 32768

	DefaultFFTSize     = 2048
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

// Config controls the analyser window and scaling
type Config struct {
	FFTSize               int
	SmoothingTimeConstant float64
	MinDecibels           float64
	MaxDecibels           float64
}

// DefaultConfig returns the Web Audio defaults
func DefaultConfig() Config {
	return Config{
		FFTSize:               DefaultFFTSize,
		SmoothingTimeConstant: DefaultSmoothing,
		MinDecibels:           DefaultMinDecibels,
		MaxDecibels:           DefaultMaxDecibels,
	}
}

// Analyser keeps the most recent FFTSize samples of the signal it taps
type Analyser struct {
	cfg Config

	mu       sync.Mutex
	ring     []float64
	pos      int
	smoothed []float64
	scratch  []float64
}

// New creates an analyser. Zero decibel bounds fall back to the defaults.
func New(cfg Config) (*Analyser, error) {
	if cfg.FFTSize < MinFFTSize || cfg.FFTSize > MaxFFTSize || cfg.FFTSize&(cfg.FFTSize-1) != 0 {
		return nil, fmt.Errorf("invalid fft size %d: must be a power of two in [%d, %d]", cfg.FFTSize, MinFFTSize, MaxFFTSize)
	}
	if cfg.SmoothingTimeConstant < 0 || cfg.SmoothingTimeConstant > 1 {
		return nil, fmt.Errorf("invalid smoothing time constant %v: must be in [0, 1]", cfg.SmoothingTimeConstant)
	}
	if cfg.MinDecibels == 0 && cfg.MaxDecibels == 0 {
		cfg.MinDecibels = DefaultMinDecibels
		cfg.MaxDecibels = DefaultMaxDecibels
	}
	if cfg.MinDecibels >= cfg.MaxDecibels {
		return nil, fmt.Errorf("invalid decibel range [%v, %v]", cfg.MinDecibels, cfg.MaxDecibels)
	}

	return &Analyser{
		cfg:      cfg,
		ring:     make([]float64, cfg.FFTSize),
		smoothed: make([]float64, cfg.FFTSize/2),
		scratch:  make([]float64, cfg.FFTSize),
	}, nil
}

// FFTSize returns the analysis window length in samples
func (a *Analyser) FFTSize() int {
	return a.cfg.FFTSize
}

// FrequencyBinCount returns half the window length
func (a *Analyser) FrequencyBinCount() int {
	return a.cfg.FFTSize / 2
}

// Write appends mono samples in [-1, 1] to the ring
func (a *Analyser) Write(samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := len(a.ring)
	if len(samples) >= size {
		copy(a.ring, samples[len(samples)-size:])
		a.pos = 0
		return
	}
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % size
	}
}

// Reset clears the ring and the smoothing history
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

// window copies the ring into scratch in chronological order (must hold a.mu)
func (a *Analyser) window() []float64 {
	size := len(a.ring)
	for i := 0; i < size; i++ {
		a.scratch[i] = a.ring[(a.pos+i)%size]
	}
	return a.scratch
}

// ByteTimeDomainData fills dst with the latest waveform, 128 meaning zero.
// At most FFTSize bytes are written.
func (a *Analyser) ByteTimeDomainData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	samples := a.window()
	n := min(len(dst), len(samples))
	for i := 0; i < n; i++ {
		v := 128 * (1 + samples[i])
		dst[i] = byte(math.Max(0, math.Min(255, v)))
	}
}

// ByteFrequencyData fills dst with smoothed magnitudes scaled between the
// decibel bounds. Each call advances the smoothing history.
// At most FrequencyBinCount bytes are written.
func (a *Analyser) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	samples := a.window()
	window.Apply(samples, window.Hann)
	spectrum := fft.FFTReal(samples)

	size := float64(len(samples))
	tau := a.cfg.SmoothingTimeConstant
	rangeDb := a.cfg.MaxDecibels - a.cfg.MinDecibels

	for k := range a.smoothed {
		mag := cmplx.Abs(spectrum[k]) / size
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*mag
		if math.IsNaN(a.smoothed[k]) || math.IsInf(a.smoothed[k], 0) {
			a.smoothed[k] = 0
		}

		if k >= len(dst) {
			continue
		}
		if a.smoothed[k] == 0 {
			dst[k] = 0
			continue
		}
		db := 20 * math.Log10(a.smoothed[k])
		scaled := 255 / rangeDb * (db - a.cfg.MinDecibels)
		dst[k] = byte(math.Max(0, math.Min(255, scaled)))
	}
}

// ABOUTME: Audio analysis package for real-time visualization
// ABOUTME: Provides an analyser node with time-domain and frequency-domain byte snapshots
// Package analysis provides an analyser node in the Web Audio style.
//
// The audio graph writes a mono mix of every rendered quantum into the
// analyser. Readers take byte snapshots whenever they redraw:
//
//   - ByteTimeDomainData: the last FFTSize samples, 128 is silence
//   - ByteFrequencyData: FrequencyBinCount magnitudes in dB, scaled to 0-255
//
// Example:
//
//	a, _ := analysis.New(analysis.Config{FFTSize: 512, SmoothingTimeConstant: 0.8})
//	wave := make([]byte, a.FFTSize())
//	a.ByteTimeDomainData(wave)
package analysis

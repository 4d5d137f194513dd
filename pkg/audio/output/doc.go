// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides Output interface with oto, malgo and null backends
// Package output provides audio playback backends.
//
// Backends:
//   - oto: pure Go on most platforms, 16-bit output
//   - malgo: miniaudio via cgo, 16/24/32-bit output
//   - null: discards samples, for headless hosts
//
// Every backend applies software volume and can be suspended and resumed
// without releasing the device.
//
// Example:
//
//	out, err := output.New("oto")
//	err = out.Open(44100, 2, 16)
//	err = out.Write(samples)
package output

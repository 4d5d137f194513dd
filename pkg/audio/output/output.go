// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for audio playback backends and backend selection
package output

import (
	"errors"
	"fmt"
)

// ErrNotOpen is returned when writing to an output that has not been opened
var ErrNotOpen = errors.New("output not initialized")

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels, bitDepth int) error

	// Write outputs audio samples (blocks until queued)
	Write(samples []int32) error

	// Suspend pauses the device without releasing it
	Suspend() error

	// Resume restarts a suspended device
	Resume() error

	// Close releases output resources
	Close() error
}

// VolumeControl is implemented by outputs with software volume
type VolumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	GetVolume() int
	IsMuted() bool
}

// Backends lists the names accepted by New
var Backends = []string{"oto", "malgo", "null"}

// New returns an unopened output for the named backend
func New(backend string) (Output, error) {
	switch backend {
	case "", "oto":
		return NewOto(), nil
	case "malgo":
		return NewMalgo(), nil
	case "null":
		return NewNull(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q (supported: %v)", backend, Backends)
	}
}

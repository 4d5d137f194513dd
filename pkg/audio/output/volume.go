// ABOUTME: Software volume shared by output backends
// ABOUTME: Scales samples by volume and mute with 24-bit clipping protection
package output

import (
	"sync"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// volumeState holds the software volume for a backend
type volumeState struct {
	mu     sync.RWMutex
	volume int
	muted  bool
}

func newVolumeState() volumeState {
	return volumeState{volume: 100}
}

// SetVolume sets the volume (0-100)
func (v *volumeState) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	v.mu.Lock()
	v.volume = volume
	v.mu.Unlock()
}

// SetMuted sets mute state
func (v *volumeState) SetMuted(muted bool) {
	v.mu.Lock()
	v.muted = muted
	v.mu.Unlock()
}

// GetVolume returns current volume
func (v *volumeState) GetVolume() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.volume
}

// IsMuted returns mute state
func (v *volumeState) IsMuted() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.muted
}

func (v *volumeState) apply(samples []int32) []int32 {
	v.mu.RLock()
	volume, muted := v.volume, v.muted
	v.mu.RUnlock()
	return applyVolume(samples, volume, muted)
}

// applyVolume applies volume and mute to samples with clipping protection
func applyVolume(samples []int32, volume int, muted bool) []int32 {
	multiplier := getVolumeMultiplier(volume, muted)

	result := make([]int32, len(samples))
	if multiplier == 0 {
		return result
	}
	for i, sample := range samples {
		scaled := int64(float64(sample) * multiplier)

		if scaled > audio.Max24Bit {
			scaled = audio.Max24Bit
		} else if scaled < audio.Min24Bit {
			scaled = audio.Min24Bit
		}

		result[i] = int32(scaled)
	}

	return result
}

func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}

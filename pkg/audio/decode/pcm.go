// ABOUTME: PCM sample unpacking
// ABOUTME: Converts 16-bit and 24-bit little-endian PCM bytes to int32 samples
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// PCMDecoder unpacks raw PCM bytes
type PCMDecoder struct {
	bitDepth int
}

// NewPCM creates a new PCM unpacker
func NewPCM(bitDepth int) (*PCMDecoder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}

	return &PCMDecoder{
		bitDepth: bitDepth,
	}, nil
}

// Unpack converts PCM bytes to int32 samples in 24-bit range
func (d *PCMDecoder) Unpack(data []byte) []int32 {
	if d.bitDepth == 24 {
		// 24-bit PCM: 3 bytes per sample
		numSamples := len(data) / 3
		samples := make([]int32, numSamples)
		for i := 0; i < numSamples; i++ {
			val := int32(data[i*3]) | int32(data[i*3+1])<<8 | int32(data[i*3+2])<<16
			if val&0x800000 != 0 {
				val |= ^0xFFFFFF
			}
			samples[i] = val
		}
		return samples
	}

	// 16-bit PCM: 2 bytes per sample
	numSamples := len(data) / 2
	samples := make([]int32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = audio.SampleFromInt16(sample16)
	}
	return samples
}

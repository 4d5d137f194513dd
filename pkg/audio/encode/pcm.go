// ABOUTME: PCM audio encoder
// ABOUTME: Packs int32 samples to 16-bit or 24-bit little-endian PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(bitDepth int) (*PCMEncoder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}

	return &PCMEncoder{bitDepth: bitDepth}, nil
}

// BytesPerSample reports 2 for 16-bit and 3 for 24-bit output
func (e *PCMEncoder) BytesPerSample() int {
	return e.bitDepth / 8
}

// Encode converts int32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []int32) ([]byte, error) {
	return e.AppendEncode(make([]byte, 0, len(samples)*e.BytesPerSample()), samples), nil
}

// AppendEncode packs samples onto dst, clamping to 24-bit range first
func (e *PCMEncoder) AppendEncode(dst []byte, samples []int32) []byte {
	for _, sample := range samples {
		if sample > audio.Max24Bit {
			sample = audio.Max24Bit
		} else if sample < audio.Min24Bit {
			sample = audio.Min24Bit
		}

		if e.bitDepth == 24 {
			dst = append(dst, byte(sample), byte(sample>>8), byte(sample>>16))
			continue
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(audio.SampleToInt16(sample)))
	}
	return dst
}

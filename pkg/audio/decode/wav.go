// ABOUTME: WAV audio decoder
// ABOUTME: Decodes a complete RIFF/WAVE asset to int32 samples using go-audio/wav
package decode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/go-audio/wav"
)

// WAVDecoder decodes WAV audio
type WAVDecoder struct{}

// NewWAV creates a new WAV decoder
func NewWAV() *WAVDecoder {
	return &WAVDecoder{}
}

// Decode converts WAV bytes to int32 samples
func (d *WAVDecoder) Decode(data []byte) (*audio.Buffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return nil, errors.New("invalid WAV file format")
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", bitDepth)
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav decode error: %w", err)
	}

	samples := make([]int32, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = audio.SampleFromBitDepth(int32(v), bitDepth)
	}

	return &audio.Buffer{
		Format: audio.Format{
			Codec:      "wav",
			SampleRate: int(decoder.SampleRate),
			Channels:   int(decoder.NumChans),
			BitDepth:   bitDepth,
		},
		Samples: samples,
	}, nil
}

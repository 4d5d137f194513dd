// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes a complete FLAC asset frame by frame to int32 samples
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct{}

// NewFLAC creates a new FLAC decoder
func NewFLAC() *FLACDecoder {
	return &FLACDecoder{}
}

// Decode converts FLAC bytes to int32 samples
func (d *FLACDecoder) Decode(data []byte) (*audio.Buffer, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC stream: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)

	samples := make([]int32, 0, int(info.NSamples)*channels)

	for {
		frame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("flac decode error: %w", err)
		}

		// Interleave subframes and scale to 24-bit range
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, audio.SampleFromBitDepth(frame.Subframes[ch].Samples[i], bitDepth))
			}
		}
	}

	return &audio.Buffer{
		Format: audio.Format{
			Codec:      "flac",
			SampleRate: int(info.SampleRate),
			Channels:   channels,
			BitDepth:   bitDepth,
		},
		Samples: samples,
	}, nil
}

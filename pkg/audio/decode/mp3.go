// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes a complete MP3 asset to int32 samples
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 audio
type MP3Decoder struct{}

// NewMP3 creates a new MP3 decoder
func NewMP3() *MP3Decoder {
	return &MP3Decoder{}
}

// Decode converts MP3 bytes to int32 samples.
// go-mp3 always produces 16-bit little-endian stereo.
func (d *MP3Decoder) Decode(data []byte) (*audio.Buffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	unpacker, _ := NewPCM(16)

	return &audio.Buffer{
		Format: audio.Format{
			Codec:      "mp3",
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		},
		Samples: unpacker.Unpack(pcm),
	}, nil
}

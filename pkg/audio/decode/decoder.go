// ABOUTME: Decoder interface definition and container sniffing
// ABOUTME: Picks the MP3, FLAC or WAV decoder for a fetched asset
package decode

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/resonate-scope/pkg/audio"
)

// ErrUnsupportedFormat is returned when no decoder recognizes the payload
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder decodes a complete encoded asset to PCM int32 samples
type Decoder interface {
	// Decode converts the encoded asset to a decoded buffer
	Decode(data []byte) (*audio.Buffer, error)
}

// Sniff returns the codec name for the payload, or "" when unknown
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG frame sync
		return "mp3"
	}
	return ""
}

// ForCodec returns the decoder for a codec name
func ForCodec(codec string) (Decoder, error) {
	switch codec {
	case "mp3":
		return NewMP3(), nil
	case "flac":
		return NewFLAC(), nil
	case "wav":
		return NewWAV(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, codec)
	}
}

// Decode sniffs the container and decodes the whole asset
func Decode(data []byte) (*audio.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrUnsupportedFormat)
	}

	decoder, err := ForCodec(Sniff(data))
	if err != nil {
		return nil, err
	}

	buf, err := decoder.Decode(data)
	if err != nil {
		return nil, err
	}

	if buf.Frames() == 0 {
		return nil, fmt.Errorf("%s asset contains no audio frames", buf.Format.Codec)
	}

	return buf, nil
}

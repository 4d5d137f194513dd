// ABOUTME: Tests for asset decoding
// ABOUTME: Tests container sniffing and whole-asset WAV, MP3 and FLAC decoding
package decode

import (
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/resonate-scope/internal/testutil"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"flac", []byte("fLaC\x00\x00\x00\x22"), "flac"},
		{"wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), "wav"},
		{"mp3 id3", []byte("ID3\x04\x00\x00"), "mp3"},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x64}, "mp3"},
		{"riff without wave", []byte("RIFF\x24\x00\x00\x00AVI "), ""},
		{"text", []byte("<html>"), ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.input); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDecodeWAV(t *testing.T) {
	payload := testutil.SineWAV(t, 0.5, 8000, 2, 440)

	buf, err := Decode(payload)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if buf.Format.Codec != "wav" {
		t.Errorf("expected codec wav, got %s", buf.Format.Codec)
	}
	if buf.Format.SampleRate != 8000 {
		t.Errorf("expected sample rate 8000, got %d", buf.Format.SampleRate)
	}
	if buf.Format.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", buf.Format.Channels)
	}
	if buf.Frames() != 4000 {
		t.Errorf("expected 4000 frames, got %d", buf.Frames())
	}
	if buf.Duration() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", buf.Duration())
	}

	// 16-bit fixture scaled to 24-bit range
	var peak int32
	for _, s := range buf.Samples {
		if s > peak {
			peak = s
		}
	}
	if peak < 15000<<8 || peak > 16000<<8 {
		t.Errorf("unexpected peak %d for 24-bit scaled fixture", peak)
	}
}

func TestDecodeUnknownPayload(t *testing.T) {
	_, err := Decode([]byte("<html>not audio</html>"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	_, err := Decode(nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeCorruptMP3(t *testing.T) {
	_, err := Decode([]byte("ID3 but nothing else"))
	if err == nil {
		t.Fatal("expected error for corrupt mp3, got nil")
	}
}

func TestDecodeCorruptFLAC(t *testing.T) {
	_, err := Decode([]byte("fLaC garbage"))
	if err == nil {
		t.Fatal("expected error for corrupt flac, got nil")
	}
}

func TestForCodec(t *testing.T) {
	for _, codec := range []string{"mp3", "flac", "wav"} {
		dec, err := ForCodec(codec)
		if err != nil {
			t.Errorf("unexpected error for %s: %v", codec, err)
		}
		if dec == nil {
			t.Errorf("expected decoder for %s", codec)
		}
	}

	if _, err := ForCodec("opus"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for opus, got %v", err)
	}
}

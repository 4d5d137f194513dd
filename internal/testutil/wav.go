// ABOUTME: Test fixtures for audio assets
// ABOUTME: Builds sine-wave WAV payloads with go-audio/wav for decoder and session tests
package testutil

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SineWAV returns a 16-bit PCM WAV payload of the given length.
// The encoder needs a WriteSeeker, so the payload goes through a temp file.
func SineWAV(t testing.TB, seconds float64, sampleRate, channels int, freq float64) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create fixture file: %v", err)
	}

	frames := int(seconds * float64(sampleRate))
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		v := int(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) * 16000)
		for ch := 0; ch < channels; ch++ {
			data[i*channels+ch] = v
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalize fixture: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close fixture: %v", err)
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	return payload
}

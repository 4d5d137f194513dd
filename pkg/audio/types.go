// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats and fully decoded asset buffers
package audio

import "time"

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes a decoded audio format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Buffer holds a decoded asset as interleaved samples in 24-bit range
type Buffer struct {
	Format  Format
	Samples []int32
}

// Frames returns the number of sample frames (one sample per channel)
func (b *Buffer) Frames() int {
	if b == nil || b.Format.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Duration returns the playback length of the buffer
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.Format.SampleRate)
}

// Mono returns the channel average of one frame normalized to [-1, 1]
func (b *Buffer) Mono(frame int) float64 {
	ch := b.Format.Channels
	var sum int64
	for c := 0; c < ch; c++ {
		sum += int64(b.Samples[frame*ch+c])
	}
	return float64(sum) / float64(ch) / float64(Max24Bit+1)
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	// Right-shift to convert 24-bit range to 16-bit range
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleFromBitDepth scales a signed sample of the given bit depth to 24-bit range
func SampleFromBitDepth(sample int32, bitDepth int) int32 {
	switch {
	case bitDepth == 24:
		return sample
	case bitDepth < 24:
		return sample << (24 - bitDepth)
	default:
		return sample >> (bitDepth - 24)
	}
}

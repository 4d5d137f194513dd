// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides the core types shared by the decoding, graph and
// analysis packages.
//
//   - Format: describes a decoded asset (codec, sample rate, channels, bit depth)
//   - Buffer: a fully decoded asset held as interleaved 24-bit range samples
//
// Decoders scale every source bit depth into 24-bit range so the rest of
// the pipeline never has to care where a sample came from.
//
// Example:
//
//	buf, _ := decode.Decode(data)
//	fmt.Println(buf.Frames(), buf.Duration())
//
//	// Convert 16-bit sample to 24-bit range
//	sample24 := audio.SampleFromInt16(sample16)
package audio

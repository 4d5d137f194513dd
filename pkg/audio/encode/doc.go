// ABOUTME: Audio encoder package for packing PCM for output devices
// ABOUTME: Provides Encoder interface and the little-endian PCM packer
// Package encode packs int32 samples in 24-bit range into the byte layout
// output devices consume.
//
// Supports: PCM (16-bit and 24-bit little-endian)
//
// Example:
//
//	encoder, err := encode.NewPCM(16)
//	data, err := encoder.Encode(samples)
package encode

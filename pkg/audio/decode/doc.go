// ABOUTME: Audio decoder package for fetched assets
// ABOUTME: Provides Decoder interface and implementations for MP3, FLAC, WAV
// Package decode provides whole-asset audio decoders.
//
// Supports: MP3 (go-mp3), FLAC (mewkiz/flac), WAV (go-audio/wav)
//
// All decoders output interleaved int32 samples in 24-bit range so the
// audio graph can treat every asset the same way.
//
// Example:
//
//	buf, err := decode.Decode(data)
//	fmt.Println(buf.Format.Codec, buf.Duration())
package decode

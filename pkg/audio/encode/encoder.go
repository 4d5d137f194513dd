// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for sample packers used by output devices
package encode

// Encoder packs PCM int32 samples into device bytes
type Encoder interface {
	// Encode converts PCM samples to packed audio data
	Encode(samples []int32) ([]byte, error)

	// AppendEncode packs samples onto dst and returns the extended slice
	AppendEncode(dst []byte, samples []int32) []byte

	// BytesPerSample reports the packed width of one sample
	BytesPerSample() int
}

// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts decoded assets to the graph sample rate
// Package resample converts decoded assets between sample rates.
//
// Assets are decoded whole, so conversion happens once per load rather
// than per render quantum.
//
// Example:
//
//	out := resample.Buffer(buf, 44100)
package resample

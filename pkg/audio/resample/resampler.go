// ABOUTME: Linear sample rate conversion for whole decoded assets
// ABOUTME: Used to bring decoded assets to the graph rate before playback
package resample

import "github.com/Resonate-Protocol/resonate-scope/pkg/audio"

// Frames returns the output frame count for converting frames input frames
// from inRate to outRate
func Frames(frames, inRate, outRate int) int {
	if frames <= 0 || inRate <= 0 || outRate <= 0 {
		return 0
	}
	return int(int64(frames) * int64(outRate) / int64(inRate))
}

// Linear converts interleaved samples from inRate to outRate. Each output
// frame interpolates between its two nearest input frames; the last input
// frame is held past the end.
func Linear(samples []int32, channels, inRate, outRate int) []int32 {
	if channels <= 0 {
		return nil
	}
	inFrames := len(samples) / channels
	outFrames := Frames(inFrames, inRate, outRate)
	out := make([]int32, outFrames*channels)
	if outFrames == 0 {
		return out
	}

	step := float64(inRate) / float64(outRate)
	last := inFrames - 1
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * step
		i := int(pos)
		if i >= last {
			copy(out[f*channels:(f+1)*channels], samples[last*channels:(last+1)*channels])
			continue
		}
		frac := pos - float64(i)
		a := samples[i*channels : (i+1)*channels]
		b := samples[(i+1)*channels : (i+2)*channels]
		for ch := range channels {
			out[f*channels+ch] = int32(float64(a[ch]) + (float64(b[ch])-float64(a[ch]))*frac)
		}
	}
	return out
}

// Buffer converts a whole decoded asset to the target rate. The input is
// returned unchanged when it is already at that rate or cannot be converted.
func Buffer(buf *audio.Buffer, targetRate int) *audio.Buffer {
	if buf == nil || targetRate <= 0 || buf.Format.SampleRate == targetRate ||
		buf.Format.SampleRate <= 0 || buf.Format.Channels <= 0 {
		return buf
	}

	format := buf.Format
	format.SampleRate = targetRate
	return &audio.Buffer{
		Format:  format,
		Samples: Linear(buf.Samples, buf.Format.Channels, buf.Format.SampleRate, targetRate),
	}
}

// ABOUTME: Audio graph package driving decoded buffers to an output device
// ABOUTME: Provides an audio context, buffer source nodes and a render clock
// Package graph provides a small audio graph: one Context owning an output
// device, buffer sources that play decoded assets, and analysers tapped off
// the rendered signal.
//
// The context renders in fixed quanta (10ms by default). CurrentTime is the
// number of frames rendered divided by the sample rate, so it only moves
// while the context is running and a source is playing.
//
// Example:
//
//	ctx, _ := graph.NewContext(output.NewOto(), graph.DefaultConfig())
//	buf, _ := ctx.DecodeAudioData(data)
//	src, _ := ctx.CreateBufferSource(buf)
//	src.Connect(analyser)
//	src.Start()
package graph

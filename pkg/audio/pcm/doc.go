// Package pcm holds 16-bit mono linear PCM formats and chunk writers, and
// quantizes synthesized float samples into them.
//
//	sink := pcm.NewSink(pcm.ChunkWriter(out), pcm.L16Mono16K)
//	err := vocoder.Render(ctx, frames, sink)
//
// Samples are expected in 16-bit range; anything beyond it is clipped and
// counted by Sink.Clipped.
package pcm

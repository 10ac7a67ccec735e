// Package resampler converts synthesized audio to another sample rate with
// the pure Go go-audio-resampling library, as a streaming sink:
//
//	rs, err := resampler.New(next, 16000, 48000)
//	...
//	vocoder.Render(ctx, frames, rs)
//	rs.Close()
package resampler

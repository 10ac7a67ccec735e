// Package audio groups the output side of synthesis: pcm formats and
// chunk writers, and rate conversion in resampler.
package audio

package pcm

import (
	"fmt"
	"io"
	"time"
)

const (
	// L16Mono8K represents audio/L16; rate=8000; channels=1
	L16Mono8K Format = iota
	// L16Mono16K represents audio/L16; rate=16000; channels=1
	L16Mono16K
	// L16Mono22K represents audio/L16; rate=22050; channels=1
	L16Mono22K
	// L16Mono24K represents audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono44K represents audio/L16; rate=44100; channels=1
	L16Mono44K
	// L16Mono48K represents audio/L16; rate=48000; channels=1
	L16Mono48K

	numFormats
)

var rates = [numFormats]int{8000, 16000, 22050, 24000, 44100, 48000}

// Chunk is a chunk of audio data.
type Chunk interface {
	Len() int64
	Format() Format
	WriteTo(w io.Writer) (int64, error)
}

// Format is a 16-bit mono linear PCM layout at one sample rate.
type Format int

// FormatForRate returns the format sampled at rate.
func FormatForRate(rate int) (Format, error) {
	for f, r := range rates {
		if r == rate {
			return Format(f), nil
		}
	}
	return 0, fmt.Errorf("pcm: unsupported sample rate %d", rate)
}

func (f Format) valid() {
	if f < 0 || f >= numFormats {
		panic("pcm: invalid audio type")
	}
}

// SampleRate returns the sample rate in Hz for this format.
func (f Format) SampleRate() int {
	f.valid()
	return rates[f]
}

// Channels is always 1.
func (f Format) Channels() int {
	f.valid()
	return 1
}

// Depth is always 16.
func (f Format) Depth() int {
	f.valid()
	return 16
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes * 8 / int64(f.Channels()) / int64(f.Depth())
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.Channels()) * int64(f.Depth()) / 8
}

// Duration returns the duration of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// BytesRate returns the byte rate of the audio data.
func (f Format) BytesRate() int {
	return f.SampleRate() * f.Channels() * f.Depth() / 8
}

// SilenceChunk returns a silence chunk of the given duration.
func (f Format) SilenceChunk(duration time.Duration) Chunk {
	return &SilenceChunk{
		Duration: duration,
		len:      f.BytesInDuration(duration),
		fmt:      f,
	}
}

// DataChunk returns a chunk of audio data.
func (f Format) DataChunk(data []byte) Chunk {
	return &DataChunk{
		Data: data,
		fmt:  f,
	}
}

func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=1", f.SampleRate())
}

// DataChunk is a chunk of audio data.
type DataChunk struct {
	Data []byte
	fmt  Format
}

func (c *DataChunk) Len() int64 {
	return int64(len(c.Data))
}

func (c *DataChunk) Format() Format {
	return c.fmt
}

func (c *DataChunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}

// SilenceChunk is a chunk of silence.
type SilenceChunk struct {
	Duration time.Duration
	len      int64
	fmt      Format
}

func (c *SilenceChunk) Len() int64 {
	return c.len
}

func (c *SilenceChunk) Format() Format {
	return c.fmt
}

var emptyBytes [32000]byte

// WriteTo writes zero bytes to w.
func (c *SilenceChunk) WriteTo(w io.Writer) (int64, error) {
	var wn int64
	for left := c.len; left > 0; {
		n := min(left, int64(len(emptyBytes)))
		m, err := w.Write(emptyBytes[:n])
		wn += int64(m)
		if err != nil {
			return wn, err
		}
		left -= n
	}
	return wn, nil
}

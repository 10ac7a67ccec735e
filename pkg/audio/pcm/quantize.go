package pcm

import "math"

// Quantize rounds s, which is in 16-bit range, to the nearest int16. Values
// outside the range clip; ok is false when they do.
func Quantize(s float64) (v int16, ok bool) {
	switch {
	case math.IsNaN(s):
		return 0, false
	case s >= math.MaxInt16:
		return math.MaxInt16, s <= math.MaxInt16
	case s <= math.MinInt16:
		return math.MinInt16, s >= math.MinInt16
	}
	return int16(math.Round(s)), true
}

// AppendL16 appends samples to dst as little-endian 16-bit PCM and returns
// the extended buffer with the number of clipped samples.
func AppendL16(dst []byte, samples []float64) ([]byte, int) {
	clipped := 0
	for _, s := range samples {
		v, ok := Quantize(s)
		if !ok {
			clipped++
		}
		dst = append(dst, byte(v), byte(uint16(v)>>8))
	}
	return dst, clipped
}

// Sink turns blocks of float samples into DataChunks written to a Writer.
// It satisfies the vocoder's sink interface.
type Sink struct {
	w       Writer
	f       Format
	samples int64
	clipped int64
}

// NewSink returns a Sink writing chunks of format f to w. Chunks are not
// reused, so w may keep them.
func NewSink(w Writer, f Format) *Sink {
	return &Sink{w: w, f: f}
}

func (s *Sink) Write(samples []float64) error {
	if len(samples) == 0 {
		return nil
	}
	data, clipped := AppendL16(make([]byte, 0, 2*len(samples)), samples)
	s.samples += int64(len(samples))
	s.clipped += int64(clipped)
	return s.w.Write(s.f.DataChunk(data))
}

// Samples is the number of samples written so far.
func (s *Sink) Samples() int64 { return s.samples }

// Clipped is the number of samples that exceeded the 16-bit range.
func (s *Sink) Clipped() int64 { return s.clipped }

// Format returns the chunk format.
func (s *Sink) Format() Format { return s.f }

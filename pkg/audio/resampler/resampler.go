package resampler

import (
	"errors"
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Sink receives blocks of samples in 16-bit range.
type Sink interface {
	Write(samples []float64) error
}

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("resampler: closed")

// tail is the zero padding, in seconds of input, pushed through the filter
// on Close to drain its delay line.
const tail = 0.25

// Resampler converts the rate of a sample stream and forwards it to a
// Sink. The output length is round(input·dst/src). It is not safe for
// concurrent use.
type Resampler struct {
	next     Sink
	src, dst int
	rs       resampling.Resampler

	in, out int64
	closed  bool
}

// New returns a Resampler from srcRate to dstRate feeding next. Equal rates
// pass samples through untouched.
func New(next Sink, srcRate, dstRate int) (*Resampler, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("resampler: invalid rates %d -> %d", srcRate, dstRate)
	}
	r := &Resampler{next: next, src: srcRate, dst: dstRate}
	if srcRate == dstRate {
		return r, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: %w", err)
	}
	r.rs = rs
	return r, nil
}

// Write resamples samples and forwards what the filter has produced.
func (r *Resampler) Write(samples []float64) error {
	if r.closed {
		return ErrClosed
	}
	r.in += int64(len(samples))
	if r.rs == nil {
		r.out += int64(len(samples))
		return r.next.Write(samples)
	}
	return r.process(samples, -1)
}

// Close drains the filter so the output reaches its full length. It does
// not close the sink.
func (r *Resampler) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.rs == nil {
		return nil
	}
	want := int64(math.Round(float64(r.in) * float64(r.dst) / float64(r.src)))
	pad := make([]float64, int(tail*float64(r.src))+1)
	for r.out < want {
		before := r.out
		if err := r.process(pad, want); err != nil {
			return err
		}
		if r.out == before {
			return fmt.Errorf("resampler: drain stalled at %d of %d samples", r.out, want)
		}
	}
	return nil
}

// process runs samples through the filter. A non-negative limit caps the
// total output count.
func (r *Resampler) process(samples []float64, limit int64) error {
	in := make([]float64, len(samples))
	for i, s := range samples {
		in[i] = s / 32768
	}
	out, err := r.rs.Process(in)
	if err != nil {
		return fmt.Errorf("resampler: %w", err)
	}
	if limit >= 0 && r.out+int64(len(out)) > limit {
		out = out[:limit-r.out]
	}
	if len(out) == 0 {
		return nil
	}
	for i := range out {
		out[i] *= 32768
	}
	r.out += int64(len(out))
	return r.next.Write(out)
}

// Rates returns the input and output sample rates.
func (r *Resampler) Rates() (src, dst int) {
	return r.src, r.dst
}

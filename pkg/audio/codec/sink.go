package codec

import (
	"fmt"
	"io"

	"github.com/haivivi/htsvoice/pkg/audio/pcm"
	"github.com/haivivi/htsvoice/pkg/audio/resampler"
)

// Sink takes synthesized float samples at the voice rate and writes them
// encoded, resampling on the way when the output rate differs.
type Sink struct {
	rs  *resampler.Resampler
	pcm *pcm.Sink
	wc  pcm.WriteCloser
}

// NewSink returns a sink encoding to w. A dstRate of 0 keeps srcRate,
// except for G.711 which always runs at 8 kHz.
func NewSink(w io.Writer, e Encoding, srcRate, dstRate int) (*Sink, error) {
	if dstRate == 0 {
		dstRate = srcRate
		if r := e.SampleRate(); r != 0 {
			dstRate = r
		}
	}
	if r := e.SampleRate(); r != 0 && dstRate != r {
		return nil, fmt.Errorf("codec: %s output must be %d Hz, not %d", e, r, dstRate)
	}
	f, err := pcm.FormatForRate(dstRate)
	if err != nil {
		return nil, err
	}
	wc, err := NewWriter(e, w, f)
	if err != nil {
		return nil, err
	}
	s := &Sink{pcm: pcm.NewSink(wc, f), wc: wc}
	if dstRate != srcRate {
		if s.rs, err = resampler.New(s.pcm, srcRate, dstRate); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Sink) Write(samples []float64) error {
	if s.rs != nil {
		return s.rs.Write(samples)
	}
	return s.pcm.Write(samples)
}

// Close drains the resampler and finalizes the encoding. It does not close
// the underlying writer.
func (s *Sink) Close() error {
	if s.rs != nil {
		if err := s.rs.Close(); err != nil {
			s.wc.Close()
			return err
		}
	}
	return s.wc.Close()
}

// Format is the PCM format before encoding.
func (s *Sink) Format() pcm.Format { return s.pcm.Format() }

// Samples is the number of output samples written.
func (s *Sink) Samples() int64 { return s.pcm.Samples() }

// Clipped is the number of output samples that exceeded 16 bits.
func (s *Sink) Clipped() int64 { return s.pcm.Clipped() }

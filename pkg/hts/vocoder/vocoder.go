// Package vocoder renders generated parameter trajectories into audio.
//
// Each frame drives a mel-log-spectrum approximation filter (MLSA) or, when
// a positive stage is configured, a mel-generalized cascade (MGLSA). The
// excitation is a pulse train at the frame's pitch for voiced frames and
// uniform +-1 noise for unvoiced frames. Pulses may be shaped from Fourier
// magnitudes, and pulse and noise may be mixed per band through FIR filters
// weighted by per-frame strengths.
//
// Filter coefficients and the pitch period move linearly from frame to
// frame, one step per interpolation sub-period.
package vocoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/haivivi/htsvoice/pkg/hts/model"
)

// ErrFrame reports a frame whose shape does not match the configuration.
var ErrFrame = errors.New("vocoder: frame does not match configuration")

// Config describes the synthesis filter and excitation.
type Config struct {
	SampleRate          int
	FramePeriod         int
	InterpolationPeriod int

	// Order is the cepstral order; frames carry Order+1 coefficients.
	Order int
	Alpha float64
	// Stage selects MLSA when 0 and an MGLSA cascade otherwise.
	Stage int
	// Beta is the post-filter strength; MLSA only.
	Beta      float64
	PadeOrder int

	// F0Mean and F0Std map log-F0 to Hz as F0Std*exp(lf0)+F0Mean.
	F0Mean float64
	F0Std  float64

	// Bands is the number of strength values per frame when MixFilters
	// is set.
	Bands int
	// MixFilters enables mixed excitation with one FIR filter per band.
	MixFilters [][]float64
	// FourierMagnitude shapes pulses from per-frame harmonic magnitudes.
	FourierMagnitude bool

	// Seed makes the noise source reproducible.
	Seed uint64

	Logger *slog.Logger
}

// ConfigFromVoice returns the synthesis settings of v. Band filters are
// designed when the voice ships none.
func ConfigFromVoice(v *model.Voice) (Config, error) {
	vc := v.Config
	cfg := Config{
		SampleRate:          vc.SampleRate,
		FramePeriod:         vc.FramePeriod,
		InterpolationPeriod: vc.InterpolationPeriod,
		Order:               v.Stream(model.Spectrum).VectorSize() - 1,
		Alpha:               vc.Alpha,
		Stage:               vc.Stage,
		Beta:                vc.Beta,
		PadeOrder:           vc.PadeOrder,
		F0Mean:              vc.F0.Mean,
		F0Std:               vc.F0.Std,
		FourierMagnitude:    vc.FourierMagnitude && v.Stream(model.Magnitude) != nil,
	}
	if str := v.Stream(model.Strength); vc.MixedExcitation.Enabled && str != nil {
		cfg.Bands = str.VectorSize()
		cfg.MixFilters = v.MixFilters
		if cfg.MixFilters == nil {
			taps := vc.MixedExcitation.Taps
			if taps%2 == 0 {
				taps++
			}
			filters, err := DesignBandFilters(cfg.Bands, taps)
			if err != nil {
				return Config{}, err
			}
			cfg.MixFilters = filters
		}
	}
	return cfg, nil
}

// Frame is the vocoder input for one frame.
type Frame struct {
	Voiced bool
	// LogF0 is the generated log-F0; ignored for unvoiced frames.
	LogF0 float64
	// Spectrum holds Order+1 mel-cepstral coefficients.
	Spectrum []float64
	// Strength holds one voicing strength per band; required with mixed
	// excitation.
	Strength []float64
	// Magnitude holds harmonic magnitudes for Fourier pulses.
	Magnitude []float64
}

// Sink consumes rendered samples in order. The slice is reused once Write
// returns.
type Sink interface {
	Write(samples []float64) error
}

var _ Sink = SinkFunc(nil)

// SinkFunc is a function that implements the Sink interface.
type SinkFunc func([]float64) error

// Write implements the Sink interface.
func (f SinkFunc) Write(samples []float64) error {
	return f(samples)
}

// Buffer is a Sink that keeps every sample.
type Buffer struct {
	Samples []float64
}

// Write appends samples to the buffer.
func (b *Buffer) Write(samples []float64) error {
	b.Samples = append(b.Samples, samples...)
	return nil
}

// Vocoder renders frames with a fixed configuration. It holds no per
// utterance state and may be used by several goroutines at once.
type Vocoder struct {
	cfg Config
}

// New validates cfg and returns a Vocoder.
func New(cfg Config) (*Vocoder, error) {
	if cfg.SampleRate <= 0 || cfg.FramePeriod <= 0 {
		return nil, fmt.Errorf("vocoder: sample rate and frame period must be positive")
	}
	if cfg.InterpolationPeriod <= 0 {
		cfg.InterpolationPeriod = 1
	}
	if cfg.InterpolationPeriod > cfg.FramePeriod {
		return nil, fmt.Errorf("vocoder: interpolation period %d exceeds frame period %d", cfg.InterpolationPeriod, cfg.FramePeriod)
	}
	if cfg.Order < 0 {
		return nil, fmt.Errorf("vocoder: negative order %d", cfg.Order)
	}
	if cfg.Alpha <= -1 || cfg.Alpha >= 1 {
		return nil, fmt.Errorf("vocoder: alpha %v outside (-1, 1)", cfg.Alpha)
	}
	if cfg.Stage < 0 {
		return nil, fmt.Errorf("vocoder: negative stage %d", cfg.Stage)
	}
	if cfg.Stage == 0 {
		if cfg.PadeOrder == 0 {
			cfg.PadeOrder = 5
		}
		if _, ok := padeCoefficients[cfg.PadeOrder]; !ok {
			return nil, fmt.Errorf("vocoder: unsupported pade order %d", cfg.PadeOrder)
		}
	}
	if cfg.F0Std == 0 {
		cfg.F0Std = 1
	}
	if cfg.MixFilters != nil {
		if err := checkBandFilters(cfg.MixFilters, cfg.Bands); err != nil {
			return nil, err
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Vocoder{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (v *Vocoder) Config() Config {
	return v.cfg
}

// Samples returns the number of samples Render emits for n frames.
func (v *Vocoder) Samples(n int) int {
	return n * v.cfg.FramePeriod
}

// Render synthesizes frames and writes one block of FramePeriod samples per
// frame to sink. It stops early when ctx is done or sink fails.
func (v *Vocoder) Render(ctx context.Context, frames []Frame, sink Sink) error {
	st := v.newState()
	out := make([]float64, v.cfg.FramePeriod)
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.checkFrame(&frames[i]); err != nil {
			return fmt.Errorf("%w: frame %d: %v", ErrFrame, i, err)
		}
		st.frame(&frames[i], out)
		if err := sink.Write(out); err != nil {
			return fmt.Errorf("vocoder: sink: %w", err)
		}
	}
	v.cfg.Logger.Debug("vocoder: rendered", "frames", len(frames), "samples", v.Samples(len(frames)))
	return nil
}

func (v *Vocoder) checkFrame(f *Frame) error {
	if len(f.Spectrum) != v.cfg.Order+1 {
		return fmt.Errorf("%d spectral coefficients, want %d", len(f.Spectrum), v.cfg.Order+1)
	}
	if v.cfg.MixFilters != nil && f.Voiced && len(f.Strength) != v.cfg.Bands {
		return fmt.Errorf("%d strengths, want %d", len(f.Strength), v.cfg.Bands)
	}
	return nil
}

// period returns the pitch period in samples for f, 0 when unvoiced.
func (v *Vocoder) period(f *Frame) float64 {
	if !f.Voiced {
		return 0
	}
	f0 := v.cfg.F0Std*math.Exp(f.LogF0) + v.cfg.F0Mean
	if f0 <= 0 || math.IsNaN(f0) || math.IsInf(f0, 0) {
		return 0
	}
	return float64(v.cfg.SampleRate) / f0
}

// state is the private render state of one utterance.
type state struct {
	v      *Vocoder
	filter synthFilter
	meter  *energyMeter
	exc    *excitation
	mix    *mixer

	first bool
	// c is the current coefficient vector, cc the target of the frame and
	// cinc the per sub-period increment.
	c, cc, cinc []float64
}

func (v *Vocoder) newState() *state {
	m := v.cfg.Order
	st := &state{
		v:     v,
		meter: newEnergyMeter(m),
		exc:   newExcitation(v.cfg.Seed, v.cfg.FourierMagnitude),
		first: true,
		c:     make([]float64, m+1),
		cc:    make([]float64, m+1),
		cinc:  make([]float64, m+1),
	}
	if v.cfg.Stage == 0 {
		st.filter = newMLSA(m, v.cfg.Alpha, v.cfg.PadeOrder)
	} else {
		st.filter = newMGLSA(m, v.cfg.Alpha, v.cfg.Stage)
	}
	if v.cfg.MixFilters != nil {
		st.mix = newMixer(v.cfg.MixFilters)
	}
	return st
}

// coefficients converts the frame's cepstrum into filter coefficients in
// st.cc, with cc[0] holding the log gain.
func (st *state) coefficients(spec []float64) {
	cfg := &st.v.cfg
	mc2b(spec, st.cc, cfg.Alpha)
	if cfg.Stage == 0 {
		st.meter.postfilter(st.cc, cfg.Alpha, cfg.Beta)
		return
	}
	gamma := -1 / float64(cfg.Stage)
	gnorm(st.cc, gamma)
	st.cc[0] = math.Log(st.cc[0])
	for i := 1; i < len(st.cc); i++ {
		st.cc[i] *= gamma
	}
}

func (st *state) frame(f *Frame, out []float64) {
	cfg := &st.v.cfg
	fprd, iprd := cfg.FramePeriod, cfg.InterpolationPeriod
	subPeriods := float64(fprd) / float64(iprd)

	st.coefficients(f.Spectrum)
	if st.first {
		copy(st.c, st.cc)
		st.first = false
	}
	for i := range st.c {
		st.cinc[i] = (st.cc[i] - st.c[i]) / subPeriods
	}
	p := st.v.period(f)
	st.exc.start(p, subPeriods)
	st.exc.mag = f.Magnitude
	if st.mix != nil {
		if p == 0 {
			st.mix.setStrengths(nil)
		} else {
			st.mix.setStrengths(f.Strength)
		}
	}

	countdown := iprd
	for j := range fprd {
		var x float64
		switch {
		case st.mix != nil:
			x = st.mix.mix(st.exc.pulse(), st.exc.noise())
		case p == 0:
			x = st.exc.noise()
		default:
			x = st.exc.pulse()
		}
		x *= math.Exp(st.c[0])
		out[j] = st.filter.filter(x, st.c)

		countdown--
		if countdown == 0 {
			st.exc.step()
			for i := range st.c {
				st.c[i] += st.cinc[i]
			}
			countdown = iprd
		}
	}
	copy(st.c, st.cc)
	st.exc.period = p
}

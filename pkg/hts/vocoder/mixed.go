package vocoder

import (
	"errors"
	"fmt"
	"math"
)

// ErrBandMismatch reports mixed excitation filters that do not match the
// number of strength bands.
var ErrBandMismatch = errors.New("vocoder: mixed excitation band mismatch")

// DesignBandFilters returns bands linear-phase FIR filters of the given odd
// length splitting [0, Nyquist] into equal-width bands. The filters sum to
// an impulse delayed by taps/2 samples.
func DesignBandFilters(bands, taps int) ([][]float64, error) {
	if bands < 1 {
		return nil, fmt.Errorf("%w: %d bands", ErrBandMismatch, bands)
	}
	if taps < 1 || taps%2 == 0 {
		return nil, fmt.Errorf("vocoder: band filter length %d must be odd and positive", taps)
	}
	lowpass := func(fc float64) []float64 {
		h := make([]float64, taps)
		if fc <= 0 {
			return h
		}
		center := taps / 2
		for n := range taps {
			k := float64(n - center)
			w := 0.54
			if taps > 1 {
				w -= 0.46 * math.Cos(2*math.Pi*float64(n)/float64(taps-1))
			}
			if k == 0 {
				h[n] = 2 * fc
				continue
			}
			h[n] = math.Sin(2*math.Pi*fc*k) / (math.Pi * k) * w
		}
		return h
	}

	filters := make([][]float64, bands)
	prev := lowpass(0)
	for b := range bands {
		var next []float64
		if b == bands-1 {
			// The full-band lowpass is an exact delayed impulse.
			next = make([]float64, taps)
			next[taps/2] = 1
		} else {
			next = lowpass(0.5 * float64(b+1) / float64(bands))
		}
		h := make([]float64, taps)
		for i := range h {
			h[i] = next[i] - prev[i]
		}
		filters[b] = h
		prev = next
	}
	return filters, nil
}

func checkBandFilters(filters [][]float64, bands int) error {
	if len(filters) != bands || bands == 0 {
		return fmt.Errorf("%w: %d filters for %d strength bands", ErrBandMismatch, len(filters), bands)
	}
	taps := len(filters[0])
	for i, h := range filters {
		if len(h) == 0 || len(h) != taps {
			return fmt.Errorf("%w: filter %d has %d taps, want %d", ErrBandMismatch, i, len(h), taps)
		}
	}
	return nil
}

// mixer shapes pulse and noise with per-band filters weighted by the
// strengths of the current frame.
type mixer struct {
	filters [][]float64
	hp, hn  []float64
	pulse   []float64
	noise   []float64
}

func newMixer(filters [][]float64) *mixer {
	taps := len(filters[0])
	return &mixer{
		filters: filters,
		hp:      make([]float64, taps),
		hn:      make([]float64, taps),
		pulse:   make([]float64, taps),
		noise:   make([]float64, taps),
	}
}

// setStrengths combines the band filters for one frame. A nil strength
// vector means fully unvoiced.
func (mx *mixer) setStrengths(str []float64) {
	clear(mx.hp)
	clear(mx.hn)
	for b, h := range mx.filters {
		s := 0.0
		if str != nil {
			s = min(max(str[b], 0), 1)
		}
		for i, v := range h {
			mx.hp[i] += s * v
			mx.hn[i] += (1 - s) * v
		}
	}
}

// mix pushes one pulse and one noise sample and returns the shaped sum.
func (mx *mixer) mix(pulse, noise float64) float64 {
	copy(mx.pulse[1:], mx.pulse)
	copy(mx.noise[1:], mx.noise)
	mx.pulse[0] = pulse
	mx.noise[0] = noise
	x := 0.0
	for i := range mx.hp {
		x += mx.hp[i]*mx.pulse[i] + mx.hn[i]*mx.noise[i]
	}
	return x
}

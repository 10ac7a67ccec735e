package vocoder

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// pulseShaper builds one period of a zero-phase pulse from harmonic
// magnitudes. The inverse DFT length equals the rounded pitch period so
// harmonic k always falls on bin k.
type pulseShaper struct {
	ffts  map[int]*fourier.FFT
	coeff []complex128
	out   []float64
}

func newPulseShaper() *pulseShaper {
	return &pulseShaper{ffts: make(map[int]*fourier.FFT)}
}

// waveform returns a unit-energy period with its peak at index 0. Bins
// 1..len(mag) take the trained magnitudes, higher bins 1 and DC 0. The
// result is only valid until the next call.
func (ps *pulseShaper) waveform(period float64, mag []float64) []float64 {
	n := max(int(math.Round(period)), 1)
	fft, ok := ps.ffts[n]
	if !ok {
		fft = fourier.NewFFT(n)
		ps.ffts[n] = fft
	}
	bins := n/2 + 1
	if cap(ps.coeff) < bins {
		ps.coeff = make([]complex128, bins)
	}
	if cap(ps.out) < n {
		ps.out = make([]float64, n)
	}
	coeff := ps.coeff[:bins]
	out := ps.out[:n]

	coeff[0] = 0
	for k := 1; k < bins; k++ {
		a := 1.0
		if k <= len(mag) {
			a = math.Abs(mag[k-1])
		}
		coeff[k] = complex(a, 0)
	}
	if n == 1 {
		out[0] = 1
		return out
	}
	fft.Sequence(out, coeff)

	energy := 0.0
	for _, x := range out {
		energy += x * x
	}
	if energy == 0 {
		clear(out)
		out[0] = 1
		return out
	}
	norm := 1 / math.Sqrt(energy)
	for i := range out {
		out[i] *= norm
	}
	return out
}

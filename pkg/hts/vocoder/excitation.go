package vocoder

import (
	"math"
	"math/rand/v2"
)

// excitation generates the source signal sample by sample.
type excitation struct {
	rng *rand.Rand

	// period is the current pitch period in samples; 0 when unvoiced.
	period float64
	// inc is added to period once per interpolation sub-period.
	inc float64
	// counter is the pitch-phase accumulator.
	counter float64

	// train holds pending Fourier pulse samples when magnitude pulses are
	// enabled; nil otherwise.
	train *pulseTrain
	shape *pulseShaper
	mag   []float64
}

func newExcitation(seed uint64, fourier bool) *excitation {
	e := &excitation{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	if fourier {
		e.train = &pulseTrain{}
		e.shape = newPulseShaper()
	}
	return e
}

// start prepares the excitation for a frame whose target period is p.
// Interpolation only happens between voiced frames; any voicing change
// resets the accumulator so that the first voiced sample carries a pulse.
func (e *excitation) start(p float64, subPeriods float64) {
	if e.period != 0 && p != 0 {
		e.inc = (p - e.period) / subPeriods
		return
	}
	e.inc = 0
	e.period = p
	e.counter = p
	if e.train != nil {
		e.train.reset()
	}
}

// step advances the period by one interpolation sub-period.
func (e *excitation) step() {
	e.period += e.inc
}

// noise returns a uniformly random +1 or -1.
func (e *excitation) noise() float64 {
	if e.rng.Uint64()&1 == 0 {
		return 1
	}
	return -1
}

// pulse returns the periodic component of the next sample. Pulses carry
// sqrt(period) so that their energy per period matches unit-power noise.
func (e *excitation) pulse() float64 {
	if e.period == 0 {
		return 0
	}
	fire := e.counter >= e.period
	if fire {
		e.counter -= e.period
	}
	e.counter++
	if e.train == nil {
		if fire {
			return math.Sqrt(e.period)
		}
		return 0
	}
	if fire {
		e.train.add(e.shape.waveform(e.period, e.mag), math.Sqrt(e.period))
	}
	return e.train.next()
}

// pulseTrain is a ring of pending overlapping pulse samples.
type pulseTrain struct {
	buf []float64
	pos int
}

func (pt *pulseTrain) add(w []float64, scale float64) {
	if len(w) > len(pt.buf) {
		grown := make([]float64, len(w))
		for i := range pt.buf {
			grown[i] = pt.buf[(pt.pos+i)%len(pt.buf)]
		}
		pt.buf, pt.pos = grown, 0
	}
	for i, v := range w {
		pt.buf[(pt.pos+i)%len(pt.buf)] += scale * v
	}
}

func (pt *pulseTrain) next() float64 {
	if len(pt.buf) == 0 {
		return 0
	}
	x := pt.buf[pt.pos]
	pt.buf[pt.pos] = 0
	pt.pos = (pt.pos + 1) % len(pt.buf)
	return x
}

func (pt *pulseTrain) reset() {
	clear(pt.buf)
	pt.pos = 0
}

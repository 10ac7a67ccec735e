package vocoder

import "math"

// irLength is the impulse response length used to measure filter energy.
const irLength = 576

// mc2b converts mel-cepstrum mc into MLSA filter coefficients b.
func mc2b(mc, b []float64, alpha float64) {
	m := len(mc) - 1
	b[m] = mc[m]
	for i := m - 1; i >= 0; i-- {
		b[i] = mc[i] - alpha*b[i+1]
	}
}

// b2mc is the inverse of mc2b.
func b2mc(b, mc []float64, alpha float64) {
	m := len(b) - 1
	d := b[m]
	mc[m] = d
	for i := m - 1; i >= 0; i-- {
		o := b[i] + alpha*d
		d = b[i]
		mc[i] = o
	}
}

// freqt warps the cepstrum c1 by alpha into c2. d is scratch space of
// len(c2).
func freqt(c1, c2 []float64, alpha float64, d []float64) {
	m2 := len(c2) - 1
	beta := 1 - alpha*alpha
	clear(c2)
	for i := len(c1) - 1; i >= 0; i-- {
		copy(d, c2)
		c2[0] = c1[i] + alpha*d[0]
		if m2 >= 1 {
			c2[1] = beta*d[0] + alpha*d[1]
		}
		for j := 2; j <= m2; j++ {
			c2[j] = d[j-1] + alpha*(d[j]-c2[j-1])
		}
	}
}

// c2ir computes the minimum phase impulse response h of the cepstrum c.
func c2ir(c, h []float64) {
	h[0] = math.Exp(c[0])
	for n := 1; n < len(h); n++ {
		d := 0.0
		upl := min(n, len(c)-1)
		for k := 1; k <= upl; k++ {
			d += float64(k) * c[k] * h[n-k]
		}
		h[n] = d / float64(n)
	}
}

// gnorm normalizes generalized cepstrum c in place: c[0] becomes the gain
// K and the rest is divided by 1+gamma*c[0].
func gnorm(c []float64, gamma float64) {
	if gamma == 0 {
		c[0] = math.Exp(c[0])
		return
	}
	k := 1 + gamma*c[0]
	for i := 1; i < len(c); i++ {
		c[i] /= k
	}
	c[0] = math.Pow(k, 1/gamma)
}

// energyMeter measures the energy of an MLSA filter from its coefficients.
type energyMeter struct {
	mc  []float64
	cep []float64
	ir  []float64
	d   []float64
}

func newEnergyMeter(m int) *energyMeter {
	return &energyMeter{
		mc:  make([]float64, m+1),
		cep: make([]float64, irLength),
		ir:  make([]float64, irLength),
		d:   make([]float64, irLength),
	}
}

// energy returns the impulse response energy of the filter b.
func (e *energyMeter) energy(b []float64, alpha float64) float64 {
	b2mc(b, e.mc, alpha)
	freqt(e.mc, e.cep, -alpha, e.d)
	c2ir(e.cep, e.ir)
	en := 0.0
	for _, x := range e.ir {
		en += x * x
	}
	return en
}

// postfilter sharpens formants of the MLSA coefficients b and restores the
// original energy through b[0].
func (e *energyMeter) postfilter(b []float64, alpha, beta float64) {
	m := len(b) - 1
	if beta <= 0 || m <= 1 {
		return
	}
	e1 := e.energy(b, alpha)
	b[1] -= beta * alpha * b[2]
	for k := 2; k <= m; k++ {
		b[k] *= 1 + beta
	}
	e2 := e.energy(b, alpha)
	b[0] += math.Log(e1/e2) / 2
}

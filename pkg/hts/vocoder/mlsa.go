package vocoder

// padeCoefficients holds the Pade approximation of exp() per order.
var padeCoefficients = map[int][]float64{
	4: {1.0, 0.4999273, 0.1067005, 0.01170221, 0.0005656279},
	5: {1.0, 0.4999391, 0.1107098, 0.01369984, 0.0009564853, 0.00003041721},
}

// synthFilter is a recursive synthesis filter driven one sample at a time.
// b holds the transformed coefficients; b[0] is the log gain and is applied
// by the caller.
type synthFilter interface {
	filter(x float64, b []float64) float64
}

// mlsa is the mel-log-spectrum approximation filter, a cascade of two
// Pade-approximated exponential sections.
type mlsa struct {
	alpha float64
	aa    float64
	pade  []float64

	// first section: a single first-order all-pass stage
	d1  []float64
	pt1 []float64
	// second section: one FIR delay line per Pade term
	fir [][]float64
	pt2 []float64
}

func newMLSA(m int, alpha float64, padeOrder int) *mlsa {
	pade := padeCoefficients[padeOrder]
	f := &mlsa{
		alpha: alpha,
		aa:    1 - alpha*alpha,
		pade:  pade,
		d1:    make([]float64, padeOrder+1),
		pt1:   make([]float64, padeOrder+1),
		fir:   make([][]float64, padeOrder),
		pt2:   make([]float64, padeOrder+1),
	}
	for i := range f.fir {
		f.fir[i] = make([]float64, m+2)
	}
	return f
}

func (f *mlsa) filter(x float64, b []float64) float64 {
	if len(b) < 2 {
		return x
	}
	return f.section2(f.section1(x, b), b)
}

func (f *mlsa) section1(x float64, b []float64) float64 {
	out := 0.0
	for i := len(f.pade) - 1; i >= 1; i-- {
		f.d1[i] = f.aa*f.pt1[i-1] + f.alpha*f.d1[i]
		f.pt1[i] = f.d1[i] * b[1]
		v := f.pt1[i] * f.pade[i]
		if i&1 == 1 {
			x += v
		} else {
			x -= v
		}
		out += v
	}
	f.pt1[0] = x
	return out + x
}

func (f *mlsa) section2(x float64, b []float64) float64 {
	out := 0.0
	for i := len(f.pade) - 1; i >= 1; i-- {
		f.pt2[i] = f.firStage(f.pt2[i-1], b, f.fir[i-1])
		v := f.pt2[i] * f.pade[i]
		if i&1 == 1 {
			x += v
		} else {
			x -= v
		}
		out += v
	}
	f.pt2[0] = x
	return out + x
}

// firStage runs the warped FIR over b[2:], with d of length len(b)+1.
func (f *mlsa) firStage(x float64, b, d []float64) float64 {
	m := len(b) - 1
	d[0] = x
	d[1] = f.aa*d[0] + f.alpha*d[1]
	for i := 2; i <= m; i++ {
		d[i] += f.alpha * (d[i+1] - d[i-1])
	}
	y := 0.0
	for i := 2; i <= m; i++ {
		y += d[i] * b[i]
	}
	for i := m + 1; i > 1; i-- {
		d[i] = d[i-1]
	}
	return y
}

package vocoder

// mglsa is the mel-generalized log-spectrum approximation filter: stage
// identical all-pole sections realizing gamma = -1/stage.
type mglsa struct {
	alpha float64
	d     [][]float64
}

func newMGLSA(m int, alpha float64, stage int) *mglsa {
	f := &mglsa{alpha: alpha, d: make([][]float64, stage)}
	for i := range f.d {
		f.d[i] = make([]float64, m+1)
	}
	return f
}

func (f *mglsa) filter(x float64, b []float64) float64 {
	if len(b) < 2 {
		return x
	}
	for _, d := range f.d {
		x = f.section(x, b, d)
	}
	return x
}

func (f *mglsa) section(x float64, b, d []float64) float64 {
	m := len(b) - 1
	y := d[0] * b[1]
	for i := 1; i < m; i++ {
		d[i] += f.alpha * (d[i+1] - d[i-1])
		y += d[i] * b[i+1]
	}
	x -= y
	for i := m; i > 0; i-- {
		d[i] = d[i-1]
	}
	d[0] = f.alpha*d[0] + (1-f.alpha*f.alpha)*x
	return x
}

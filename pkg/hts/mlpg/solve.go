package mlpg

const (
	infty   = 1e38
	infty2  = 1e19
	invInf2 = 1e-19
)

// LogZero marks unvoiced frames in generated log-F0.
const LogZero = -1e10

// finv is the bounded inverse used for variances: huge values mean "ignore"
// and map to 0, tiny values map to a huge precision of the same sign.
func finv(x float64) float64 {
	switch {
	case x >= infty2 || x <= -infty2:
		return 0
	case x >= 0 && x <= invInf2:
		return infty
	case x < 0 && x >= -invInf2:
		return -infty
	}
	return 1 / x
}

// numWindows is the number of dynamic feature windows.
const numWindows = 3

// width is the number of stored band entries per row of W'U^-1W.
const width = 3

// windows are the static, delta and delta-delta kernels at offsets -1, 0, 1.
var windows = [numWindows][3]float64{
	{0, 1, 0},
	{-0.5, 0, 0.5},
	{1, -2, 1},
}

// coef returns window w at offset k in [-1, 1], zero outside.
func coef(w, k int) float64 {
	if k < -1 || k > 1 {
		return 0
	}
	return windows[w][k+1]
}

// buffer holds one stream's frame-expanded statistics and work space.
type buffer struct {
	length int
	dim    int
	// mean and ivar are indexed [frame][window*dim + d].
	mean [][]float64
	ivar [][]float64
	// gv marks frames that take part in global variance.
	gv []bool
	// par is the generated trajectory, [frame][d].
	par [][]float64

	wuw [][width]float64
	wum []float64
	ldl [][width]float64
	g   []float64
}

func newBuffer(length, dim int) *buffer {
	b := &buffer{
		length: length,
		dim:    dim,
		mean:   make([][]float64, length),
		ivar:   make([][]float64, length),
		gv:     make([]bool, length),
		par:    make([][]float64, length),
		wuw:    make([][width]float64, length),
		wum:    make([]float64, length),
		ldl:    make([][width]float64, length),
		g:      make([]float64, length),
	}
	for t := range length {
		b.mean[t] = make([]float64, numWindows*dim)
		b.ivar[t] = make([]float64, numWindows*dim)
		b.par[t] = make([]float64, dim)
	}
	return b
}

// calcWUWAndWUM builds the band of W'U^-1W and the vector W'U^-1 mu for
// dimension d.
func (b *buffer) calcWUWAndWUM(d int) {
	for t := range b.length {
		b.wuw[t] = [width]float64{}
		b.wum[t] = 0
		for w := range numWindows {
			for shift := -1; shift <= 1; shift++ {
				tt := t + shift
				if tt < 0 || tt >= b.length {
					continue
				}
				c := coef(w, -shift)
				if c == 0 {
					continue
				}
				wu := c * b.ivar[tt][w*b.dim+d]
				b.wum[t] += wu * b.mean[tt][w*b.dim+d]
				for j := 0; j < width && t+j < b.length; j++ {
					if c2 := coef(w, j-shift); c2 != 0 {
						b.wuw[t][j] += wu * c2
					}
				}
			}
		}
	}
}

// factorize computes the in-place LDL' decomposition of the band into ldl.
// Row t stores D[t] in entry 0 and L[t+i][t] in entry i.
func (b *buffer) factorize() {
	copy(b.ldl, b.wuw)
	a := b.ldl
	for t := range b.length {
		for i := 1; i < width && t >= i; i++ {
			a[t][0] -= a[t-i][i] * a[t-i][i] * a[t-i][0]
		}
		for i := 1; i < width; i++ {
			for j := 1; i+j < width && t >= j; j++ {
				a[t][i] -= a[t-j][j] * a[t-j][i+j] * a[t-j][0]
			}
			a[t][i] /= a[t][0]
		}
	}
}

// forward solves L g = wum.
func (b *buffer) forward() {
	a := b.ldl
	for t := range b.length {
		b.g[t] = b.wum[t]
		for i := 1; i < width && t >= i; i++ {
			b.g[t] -= a[t-i][i] * b.g[t-i]
		}
	}
}

// backward solves D L' c = g into par[.][d].
func (b *buffer) backward(d int) {
	a := b.ldl
	for t := b.length - 1; t >= 0; t-- {
		x := b.g[t] / a[t][0]
		for i := 1; i < width && t+i < b.length; i++ {
			x -= a[t][i] * b.par[t+i][d]
		}
		b.par[t][d] = x
	}
}

// solve generates the maximum likelihood trajectory of dimension d.
func (b *buffer) solve(d int) {
	b.calcWUWAndWUM(d)
	b.factorize()
	b.forward()
	b.backward(d)
}

// mulR returns (R c)[t] for the symmetric band R stored in wuw.
func (b *buffer) mulR(c []float64, t int) float64 {
	x := b.wuw[t][0] * c[t]
	for i := 1; i < width; i++ {
		if t+i < b.length {
			x += b.wuw[t][i] * c[t+i]
		}
		if t >= i {
			x += b.wuw[t-i][i] * c[t-i]
		}
	}
	return x
}

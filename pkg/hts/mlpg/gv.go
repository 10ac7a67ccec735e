package mlpg

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	gvStepInit = 0.1
	gvStepInc  = 1.2
	gvStepDec  = 0.5
	gvMinStep  = 1e-10
	// gvDirEps bounds the RMS of the preconditioned ascent direction.
	gvDirEps = 1e-5
	// gvObjEps bounds the relative objective improvement per iteration.
	gvObjEps = 1e-10
)

// gvTarget is the trained global variance of one dimension.
type gvTarget struct {
	mean      float64
	precision float64
	weight    float64
}

// gvResult describes the optimization of one dimension.
type gvResult struct {
	iterations int
	converged  bool
	// fallback is set when the maximum likelihood trajectory was kept.
	fallback bool
}

// gvWork holds the per-dimension vectors of the optimization.
type gvWork struct {
	idx  []int // eligible frames
	vals []float64
	cur  []float64
	cand []float64
	dir  []float64
	next []float64
	ml   []float64
}

func (b *buffer) eligible() []int {
	var idx []int
	for t, ok := range b.gv {
		if ok {
			idx = append(idx, t)
		}
	}
	return idx
}

// applyGV corrects dimension d, which must have just been solved so that
// wuw and wum still describe it.
func (b *buffer) applyGV(d int, tgt gvTarget, maxIter int, w *gvWork) gvResult {
	n := len(w.idx)
	if n == 0 {
		return gvResult{converged: true}
	}
	w.vals = w.vals[:0]
	for t := range b.length {
		w.ml[t] = b.par[t][d]
	}
	for _, t := range w.idx {
		w.vals = append(w.vals, b.par[t][d])
	}
	mean, v := stat.PopMeanVariance(w.vals, nil)
	if v <= 0 || tgt.mean <= 0 {
		return gvResult{fallback: true}
	}

	// Moment matching.
	ratio := math.Sqrt(tgt.mean / v)
	copy(w.cur, w.ml)
	for _, t := range w.idx {
		w.cur[t] = ratio*(w.cur[t]-mean) + mean
	}
	if maxIter == 0 {
		b.storeColumn(d, w.cur)
		return gvResult{converged: true}
	}

	res := gvResult{}
	step := gvStepInit
	obj := b.gvEval(w.cur, w.dir, tgt, w)
	for res.iterations < maxIter {
		res.iterations++
		if floats.Norm(w.dir, 2)/math.Sqrt(float64(n)) < gvDirEps {
			res.converged = true
			break
		}
		copy(w.cand, w.cur)
		for _, t := range w.idx {
			w.cand[t] += step * w.dir[t]
		}
		candObj := b.gvEval(w.cand, w.next, tgt, w)
		if candObj < obj {
			step *= gvStepDec
			if step < gvMinStep {
				res.converged = true
				break
			}
			continue
		}
		gain := candObj - obj
		w.cur, w.cand = w.cand, w.cur
		w.dir, w.next = w.next, w.dir
		obj = candObj
		step *= gvStepInc
		if gain < gvObjEps*max(1, math.Abs(obj)) {
			res.converged = true
			break
		}
	}
	if !res.converged {
		res.fallback = true
		b.storeColumn(d, w.ml)
		return res
	}
	b.storeColumn(d, w.cur)
	return res
}

// gvEval returns the objective at c and writes the preconditioned ascent
// direction into dir. Frames outside the GV set get a zero direction.
//
//	J(c) = w1*(c'r - c'Rc/2)/(3T) - w2*p*(v(c) - mu)^2/2
func (b *buffer) gvEval(c, dir []float64, tgt gvTarget, w *gvWork) float64 {
	n := float64(len(w.idx))
	w.vals = w.vals[:0]
	for _, t := range w.idx {
		w.vals = append(w.vals, c[t])
	}
	mean, v := stat.PopMeanVariance(w.vals, nil)

	const w1 = 1.0
	w2 := tgt.weight
	hmmW := 1 / float64(numWindows*b.length)
	dv := v - tgt.mean

	hmm := 0.0
	for t := range b.length {
		rc := b.mulR(c, t)
		hmm += c[t] * (b.wum[t] - 0.5*rc)
		dir[t] = w1 * hmmW * (b.wum[t] - rc)
	}
	obj := w1*hmmW*hmm - 0.5*w2*tgt.precision*dv*dv

	for t := range b.length {
		if !b.gv[t] {
			dir[t] = 0
			continue
		}
		dev := c[t] - mean
		grad := dir[t] - w2*tgt.precision*dv*2*dev/n
		h := w1*hmmW*b.wuw[t][0] + w2*tgt.precision*2/(n*n)*((n-1)*dv+2*dev*dev)
		if h <= 0 {
			h = w1 * hmmW * b.wuw[t][0]
		}
		if h <= 0 {
			h = 1
		}
		dir[t] = grad / h
	}
	return obj
}

func (b *buffer) storeColumn(d int, c []float64) {
	for t := range b.length {
		b.par[t][d] = c[t]
	}
}

func newGVWork(b *buffer) *gvWork {
	return &gvWork{
		idx:  b.eligible(),
		vals: make([]float64, 0, b.length),
		cur:  make([]float64, b.length),
		cand: make([]float64, b.length),
		dir:  make([]float64, b.length),
		next: make([]float64, b.length),
		ml:   make([]float64, b.length),
	}
}

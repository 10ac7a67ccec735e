// Package mlpg generates smooth parameter trajectories from the per-state
// Gaussians of an utterance.
//
// For every stream and every static dimension it solves the banded normal
// equations W'U^-1W c = W'U^-1 mu built from the static, delta and
// delta-delta windows, then optionally refines the solution so that its
// variance over time matches the trained global variance (GV).
//
// Log-F0 is generated over voiced frames only; unvoiced frames carry
// LogZero in the result.
package mlpg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haivivi/htsvoice/pkg/hts/model"
	"github.com/haivivi/htsvoice/pkg/hts/unit"
)

// Parameters are the generated trajectories of one utterance.
type Parameters struct {
	// Frames is the utterance length in frames.
	Frames int
	// Voiced is the per-frame voicing decision.
	Voiced []bool
	// Streams holds [frame][dim] trajectories per stream kind; nil for the
	// duration stream and for streams the voice lacks.
	Streams [model.NumStreamKinds][][]float64
}

// Stream returns the trajectory of kind k, or nil.
func (p *Parameters) Stream(k model.StreamKind) [][]float64 {
	return p.Streams[k]
}

// GVReport summarizes global variance correction of one stream.
type GVReport struct {
	Stream model.StreamKind `json:"stream" yaml:"stream"`
	// Frames is the number of frames that took part.
	Frames int `json:"frames" yaml:"frames"`
	// Dims is the number of dimensions processed.
	Dims int `json:"dims" yaml:"dims"`
	// Converged counts dimensions whose optimization converged.
	Converged int `json:"converged" yaml:"converged"`
	// Fallbacks counts dimensions that kept the maximum likelihood
	// trajectory.
	Fallbacks int `json:"fallbacks" yaml:"fallbacks"`
	// Iterations is the total iteration count over all dimensions.
	Iterations int `json:"iterations" yaml:"iterations"`
}

// Config controls generation.
type Config struct {
	// GV enables global variance correction for streams that have a GV
	// model.
	GV bool
	// GVWeight scales the GV term of the objective. Zero means 1.
	GVWeight float64
	// MaxIter caps the GV optimization per stream. Zero caps mean moment
	// matching only.
	MaxIter [model.NumStreamKinds]int
	// Logger receives debug diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// ConfigFromVoice returns the generation defaults of v.
func ConfigFromVoice(v *model.Voice) Config {
	cfg := Config{GV: v.Config.GV.Enabled, GVWeight: v.Config.GV.Weight}
	for k := range model.NumStreamKinds {
		cfg.MaxIter[k] = v.Config.GVMaxIter(k)
	}
	return cfg
}

// Generator produces parameter trajectories for one voice.
type Generator struct {
	voice *model.Voice
	cfg   Config
}

// NewGenerator returns a generator for v.
func NewGenerator(v *model.Voice, cfg Config) *Generator {
	if cfg.GVWeight == 0 {
		cfg.GVWeight = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Generator{voice: v, cfg: cfg}
}

// Generate produces every stream present in the voice except duration.
func (g *Generator) Generate(ctx context.Context, utt *unit.Utterance) (*Parameters, []GVReport, error) {
	p := &Parameters{Frames: utt.Frames, Voiced: make([]bool, utt.Frames)}
	utt.Each(func(_ *unit.Unit, st *unit.State, start int) {
		for f := range st.Frames {
			p.Voiced[start+f] = st.Voiced
		}
	})

	var reports []GVReport
	for _, s := range g.voice.Streams() {
		if s.Kind == model.Duration {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		traj, rep, err := g.stream(s, utt, p.Voiced)
		if err != nil {
			return nil, nil, err
		}
		p.Streams[s.Kind] = traj
		if rep != nil {
			reports = append(reports, *rep)
			if rep.Fallbacks > 0 {
				g.cfg.Logger.Debug("mlpg: gv did not converge, kept ml trajectory",
					"utt", utt.ID, "stream", s.Kind.String(), "dims", rep.Fallbacks, "iter", rep.Iterations)
			}
		}
	}
	return p, reports, nil
}

// stream generates one stream. For log-F0 only voiced frames are solved.
func (g *Generator) stream(s *model.Stream, utt *unit.Utterance, voiced []bool) ([][]float64, *GVReport, error) {
	dim := s.VectorSize()
	msd := s.Kind == model.LogF0
	out := make([][]float64, utt.Frames)
	for t := range out {
		out[t] = make([]float64, dim)
		if msd && !voiced[t] {
			out[t][0] = LogZero
		}
	}
	buf, frameIndex, err := expand(s, utt, voiced)
	if err != nil || buf == nil {
		return out, nil, err
	}

	useGV := g.cfg.GV && s.GV != nil
	var rep *GVReport
	var work *gvWork
	if useGV {
		work = newGVWork(buf)
		if len(work.idx) == 0 {
			useGV = false
		} else {
			rep = &GVReport{Stream: s.Kind, Frames: len(work.idx), Dims: dim}
		}
	}
	for d := range dim {
		buf.solve(d)
		if !useGV {
			continue
		}
		res := buf.applyGV(d, gvTarget{
			mean:      s.GV.Mean[d],
			precision: finv(s.GV.Var[d]),
			weight:    g.cfg.GVWeight,
		}, g.cfg.MaxIter[s.Kind], work)
		rep.Iterations += res.iterations
		if res.converged {
			rep.Converged++
		}
		if res.fallback {
			rep.Fallbacks++
		}
	}

	for t := range utt.Frames {
		if row := frameIndex[t]; row >= 0 {
			copy(out[t], buf.par[row])
		}
	}
	return out, rep, nil
}

// expand builds the stream buffer: frame-expanded means and inverse
// variances with dynamic windows disabled where they would reach outside
// the utterance or, for log-F0, an unvoiced frame. frameIndex maps frames
// to buffer rows, -1 for excluded frames. The buffer is nil when no frame
// is included.
func expand(s *model.Stream, utt *unit.Utterance, voiced []bool) (*buffer, []int, error) {
	dim := s.VectorSize()
	msd := s.Kind == model.LogF0

	frameIndex := make([]int, utt.Frames)
	length := 0
	for t := range utt.Frames {
		if msd && !voiced[t] {
			frameIndex[t] = -1
			continue
		}
		frameIndex[t] = length
		length++
	}
	if length == 0 {
		return nil, frameIndex, nil
	}
	inside := func(t int) bool {
		return t >= 0 && t < utt.Frames && (!msd || voiced[t])
	}

	buf := newBuffer(length, dim)
	var err error
	utt.Each(func(u *unit.Unit, st *unit.State, start int) {
		if err != nil {
			return
		}
		pdf := st.PDFs[s.Kind]
		if pdf == nil || len(pdf.Mean) != numWindows*dim || len(pdf.Var) != numWindows*dim {
			err = fmt.Errorf("mlpg: %s: unit %q: %w: want %d values per state", s.Kind, u.Phone, model.ErrDimension, numWindows*dim)
			return
		}
		for f := range st.Frames {
			t := start + f
			row := frameIndex[t]
			if row < 0 {
				continue
			}
			buf.gv[row] = u.GV
			for w := range numWindows {
				boundary := false
				for k := -1; k <= 1 && w > 0; k++ {
					if coef(w, k) != 0 && !inside(t+k) {
						boundary = true
					}
				}
				for d := range dim {
					i := w*dim + d
					if boundary {
						continue
					}
					buf.mean[row][i] = pdf.Mean[i]
					buf.ivar[row][i] = finv(pdf.Var[i])
				}
			}
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return buf, frameIndex, nil
}

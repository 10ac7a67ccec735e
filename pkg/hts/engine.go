// Package hts turns context feature vectors into speech with trained
// statistical parametric voices.
//
// An Engine binds one loaded voice and runs the pipeline for each request:
// unit assembly (package unit), trajectory generation (package mlpg) and
// rendering (package vocoder). Engines are immutable and safe for
// concurrent use; every request owns its intermediate state.
//
// A Registry maps voice names to engines and loads voices from a
// storage.FileStore, optionally through a snapshot cache.
package hts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haivivi/htsvoice/pkg/hts/feature"
	"github.com/haivivi/htsvoice/pkg/hts/mlpg"
	"github.com/haivivi/htsvoice/pkg/hts/model"
	"github.com/haivivi/htsvoice/pkg/hts/unit"
	"github.com/haivivi/htsvoice/pkg/hts/vocoder"
)

// Engine synthesizes speech with one voice.
type Engine struct {
	voice   *model.Voice
	vocoder *vocoder.Vocoder
	logger  *slog.Logger
}

// NewEngine returns an engine for v. A nil logger means slog.Default().
func NewEngine(v *model.Voice, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := vocoder.ConfigFromVoice(v)
	if err != nil {
		return nil, fmt.Errorf("hts: voice %q: %w", v.Config.Name, err)
	}
	voc, err := vocoder.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("hts: voice %q: %w", v.Config.Name, err)
	}
	return &Engine{voice: v, vocoder: voc, logger: logger.With("voice", v.Config.Name)}, nil
}

// Voice returns the bound voice.
func (e *Engine) Voice() *model.Voice {
	return e.voice
}

// SampleRate returns the output rate in Hz.
func (e *Engine) SampleRate() int {
	return e.voice.Config.SampleRate
}

// Trajectory is the generated parameters of one utterance.
type Trajectory struct {
	Utterance  *unit.Utterance
	Parameters *mlpg.Parameters
	GV         []mlpg.GVReport
}

// Result summarizes one synthesis.
type Result struct {
	UtteranceID string          `json:"utterance_id" yaml:"utterance_id"`
	Units       int             `json:"units" yaml:"units"`
	Frames      int             `json:"frames" yaml:"frames"`
	Samples     int             `json:"samples" yaml:"samples"`
	SampleRate  int             `json:"sample_rate" yaml:"sample_rate"`
	Duration    time.Duration   `json:"duration" yaml:"duration"`
	GV          []mlpg.GVReport `json:"gv,omitempty" yaml:"gv,omitempty"`
	Elapsed     time.Duration   `json:"elapsed" yaml:"elapsed"`
}

// Parameters assembles units for vectors and generates their trajectories.
func (e *Engine) Parameters(ctx context.Context, vectors []feature.Vector, opts ...Option) (*Trajectory, error) {
	s := e.settings(opts)
	return e.parameters(ctx, vectors, &s)
}

func (e *Engine) parameters(ctx context.Context, vectors []feature.Vector, s *settings) (*Trajectory, error) {
	utt, err := unit.NewBuilder(e.voice, s.unit).Build(vectors)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params, reports, err := mlpg.NewGenerator(e.voice, s.mlpg).Generate(ctx, utt)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("hts: parameters generated", "utt", utt.ID, "units", len(utt.Units), "frames", utt.Frames)
	return &Trajectory{Utterance: utt, Parameters: params, GV: reports}, nil
}

// Synthesize renders vectors into sink. Samples are written frame by frame
// as they are produced.
func (e *Engine) Synthesize(ctx context.Context, vectors []feature.Vector, sink vocoder.Sink, opts ...Option) (*Result, error) {
	start := time.Now()
	s := e.settings(opts)
	voc, err := vocoder.New(s.vocoder)
	if err != nil {
		return nil, fmt.Errorf("hts: %w", err)
	}
	traj, err := e.parameters(ctx, vectors, &s)
	if err != nil {
		return nil, err
	}
	frames := Frames(traj.Parameters)
	if err := voc.Render(ctx, frames, sink); err != nil {
		return nil, err
	}
	samples := voc.Samples(len(frames))
	res := &Result{
		UtteranceID: traj.Utterance.ID,
		Units:       len(traj.Utterance.Units),
		Frames:      len(frames),
		Samples:     samples,
		SampleRate:  e.SampleRate(),
		Duration:    time.Duration(samples) * time.Second / time.Duration(e.SampleRate()),
		GV:          traj.GV,
		Elapsed:     time.Since(start),
	}
	s.logger.Info("hts: synthesized", "utt", res.UtteranceID, "frames", res.Frames, "duration", res.Duration, "elapsed", res.Elapsed)
	return res, nil
}

// Frames converts generated parameters into vocoder input.
func Frames(p *mlpg.Parameters) []vocoder.Frame {
	frames := make([]vocoder.Frame, p.Frames)
	lf0 := p.Stream(model.LogF0)
	mgc := p.Stream(model.Spectrum)
	str := p.Stream(model.Strength)
	mag := p.Stream(model.Magnitude)
	for t := range frames {
		f := &frames[t]
		f.Voiced = p.Voiced[t]
		f.Spectrum = mgc[t]
		if lf0 != nil {
			f.LogF0 = lf0[t][0]
		}
		if str != nil {
			f.Strength = str[t]
		}
		if mag != nil {
			f.Magnitude = mag[t]
		}
	}
	return frames
}

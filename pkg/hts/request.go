package hts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haivivi/htsvoice/pkg/hts/feature"
)

// ErrNoUnits is returned for a request without units or labels.
var ErrNoUnits = errors.New("hts: request has no units")

// Request is a synthesis request as read from YAML or JSON. Units take
// precedence over Labels. Unset fields keep the voice defaults.
type Request struct {
	Voice string           `json:"voice,omitempty" yaml:"voice,omitempty"`
	Units []map[string]any `json:"units,omitempty" yaml:"units,omitempty"`
	// Labels holds one unit per line as "name=value" pairs.
	Labels string `json:"labels,omitempty" yaml:"labels,omitempty"`

	Rho           *float64 `json:"rho,omitempty" yaml:"rho,omitempty"`
	DurationScale *float64 `json:"duration_scale,omitempty" yaml:"duration_scale,omitempty"`
	TargetFrames  int      `json:"target_frames,omitempty" yaml:"target_frames,omitempty"`
	Beta          *float64 `json:"beta,omitempty" yaml:"beta,omitempty"`
	F0            *F0      `json:"f0,omitempty" yaml:"f0,omitempty"`
	GV            *bool    `json:"gv,omitempty" yaml:"gv,omitempty"`
	Mixed         *bool    `json:"mixed_excitation,omitempty" yaml:"mixed_excitation,omitempty"`
	Fourier       *bool    `json:"fourier_magnitude,omitempty" yaml:"fourier_magnitude,omitempty"`
	Seed          *uint64  `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// F0 is the affine log-F0 transform of a request.
type F0 struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
}

// Options converts the set fields to engine options.
func (r *Request) Options() []Option {
	var opts []Option
	if r.Rho != nil {
		opts = append(opts, WithRho(*r.Rho))
	}
	if r.DurationScale != nil {
		opts = append(opts, WithDurationScale(*r.DurationScale))
	}
	if r.TargetFrames > 0 {
		opts = append(opts, WithTargetFrames(r.TargetFrames))
	}
	if r.Beta != nil {
		opts = append(opts, WithBeta(*r.Beta))
	}
	if r.F0 != nil {
		opts = append(opts, WithF0(r.F0.Mean, r.F0.Std))
	}
	if r.GV != nil {
		opts = append(opts, WithGV(*r.GV))
	}
	if r.Mixed != nil {
		opts = append(opts, WithMixedExcitation(*r.Mixed))
	}
	if r.Fourier != nil {
		opts = append(opts, WithFourierMagnitude(*r.Fourier))
	}
	if r.Seed != nil {
		opts = append(opts, WithSeed(*r.Seed))
	}
	return opts
}

// Vectors encodes the request units with the voice's feature definition.
func (e *Engine) Vectors(r *Request) ([]feature.Vector, error) {
	def := e.voice.Features
	var (
		vs  []feature.Vector
		err error
	)
	switch {
	case len(r.Units) > 0:
		vs, err = def.EncodeAll(r.Units)
	case strings.TrimSpace(r.Labels) != "":
		vs, err = def.ReadLabels(strings.NewReader(r.Labels))
	default:
		return nil, ErrNoUnits
	}
	if err != nil {
		return nil, fmt.Errorf("hts: %w", err)
	}
	if len(vs) == 0 {
		return nil, ErrNoUnits
	}
	return vs, nil
}

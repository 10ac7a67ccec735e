// Package model holds the trained artifacts of a voice: one decision-tree
// set and one Gaussian table per acoustic stream, optional global variance
// statistics, and the voice descriptor that ties them together.
//
// A loaded Voice is immutable and safe to share between concurrent
// utterances.
package model

import (
	"errors"
	"fmt"

	"github.com/haivivi/htsvoice/pkg/hts/cart"
	"github.com/haivivi/htsvoice/pkg/hts/feature"
)

// Sentinel errors.
var (
	// ErrMissingStream is returned when a mandatory stream is absent.
	ErrMissingStream = errors.New("model: missing stream")

	// ErrDimension is returned when table sizes disagree with each other or
	// with the voice descriptor.
	ErrDimension = errors.New("model: dimension mismatch")
)

// StreamKind identifies an acoustic stream.
type StreamKind uint8

const (
	// Duration models per-state durations in frames.
	Duration StreamKind = iota
	// LogF0 models log fundamental frequency with a voiced weight.
	LogF0
	// Spectrum models mel-generalized cepstra.
	Spectrum
	// Strength models per-band voicing strengths for mixed excitation.
	Strength
	// Magnitude models Fourier magnitudes of the pulse harmonics.
	Magnitude

	// NumStreamKinds is the number of stream kinds.
	NumStreamKinds
)

var streamNames = [NumStreamKinds]string{"dur", "lf0", "mgc", "str", "mag"}

// String returns the short descriptor name of the stream ("dur", "lf0",
// "mgc", "str", "mag").
func (k StreamKind) String() string {
	if k < NumStreamKinds {
		return streamNames[k]
	}
	return fmt.Sprintf("StreamKind(%d)", k)
}

func (k StreamKind) MarshalText() ([]byte, error) {
	if k >= NumStreamKinds {
		return nil, fmt.Errorf("model: invalid stream kind %d", k)
	}
	return []byte(k.String()), nil
}

func (k *StreamKind) UnmarshalText(b []byte) error {
	v, err := ParseStreamKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseStreamKind returns the kind with the given short name.
func ParseStreamKind(s string) (StreamKind, error) {
	for i, n := range streamNames {
		if n == s {
			return StreamKind(i), nil
		}
	}
	return 0, fmt.Errorf("model: unknown stream %q", s)
}

// Gaussian is one trained distribution. Mean and Var hold vectorSize values
// per window, static block first. Weight is the voiced weight of MSD
// streams and zero otherwise.
type Gaussian struct {
	Mean   []float64 `msgpack:"mean"`
	Var    []float64 `msgpack:"var"`
	Weight float64   `msgpack:"weight,omitempty"`
}

// Stream is the model of one acoustic stream.
type Stream struct {
	Kind  StreamKind `msgpack:"kind"`
	Trees *cart.Set  `msgpack:"trees"`
	PDF   *PDF       `msgpack:"pdf"`
	// GV is the global variance distribution of the static features, or nil.
	GV *Gaussian `msgpack:"gv,omitempty"`

	// byState[i] is the tree used for emitting state i; PDF tree i matches.
	byState []*cart.Tree
}

// VectorSize returns the static dimension of the stream.
func (s *Stream) VectorSize() int { return s.PDF.VectorSize }

// Lookup returns the Gaussian selected for emitting state i (0-based). The
// duration stream has a single tree and ignores i.
func (s *Stream) Lookup(i int, v feature.Vector) *Gaussian {
	if s.Kind == Duration {
		i = 0
	}
	leaf := s.byState[i].Lookup(v)
	return &s.PDF.Leaves[i][leaf]
}

// bind maps emitting states to trees and checks every leaf index against the
// PDF table. Trees are numbered from 2 for the first emitting state.
func (s *Stream) bind(numStates int) error {
	want := numStates
	if s.Kind == Duration {
		want = 1
	}
	if len(s.PDF.Leaves) != want {
		return fmt.Errorf("%w: %s: pdf has %d trees, want %d", ErrDimension, s.Kind, len(s.PDF.Leaves), want)
	}
	s.byState = make([]*cart.Tree, want)
	for i := range want {
		t := s.Trees.Tree(i + 2)
		if s.Kind == Duration && len(s.Trees.Trees) > 0 {
			t = s.Trees.Trees[0]
		}
		if t == nil {
			return fmt.Errorf("%w: %s: no tree for state %d", ErrDimension, s.Kind, i+2)
		}
		if m := t.MaxLeaf(); m >= len(s.PDF.Leaves[i]) {
			return fmt.Errorf("%w: %s: state %d references leaf %d of %d", ErrDimension, s.Kind, i+2, m+1, len(s.PDF.Leaves[i]))
		}
		s.byState[i] = t
	}
	if s.GV != nil {
		if len(s.GV.Mean) != s.PDF.VectorSize || len(s.GV.Var) != s.PDF.VectorSize {
			return fmt.Errorf("%w: %s: gv has %d dimensions, want %d", ErrDimension, s.Kind, len(s.GV.Mean), s.PDF.VectorSize)
		}
	}
	return nil
}

// Voice is a fully loaded, validated voice.
type Voice struct {
	Config   Config
	Features *feature.Definition
	// MixFilters holds the trained band filters, or nil when the voice ships
	// none and filters are designed at synthesis time.
	MixFilters [][]float64
	// Digest identifies the exact set of files the voice was loaded from.
	Digest string

	streams [NumStreamKinds]*Stream
}

// NewVoice validates the streams against cfg and returns a Voice. Trees must
// already be resolved against a definition built from cfg.Features, or be
// resolvable against def.
func NewVoice(cfg Config, def *feature.Definition, streams []*Stream, mixFilters [][]float64) (*Voice, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v := &Voice{Config: cfg, Features: def, MixFilters: mixFilters}
	for _, s := range streams {
		if s == nil {
			continue
		}
		if s.Kind >= NumStreamKinds {
			return nil, fmt.Errorf("model: invalid stream kind %d", s.Kind)
		}
		if v.streams[s.Kind] != nil {
			return nil, fmt.Errorf("model: duplicate %s stream", s.Kind)
		}
		if err := s.Trees.Resolve(def); err != nil {
			return nil, fmt.Errorf("model: %s: %w", s.Kind, err)
		}
		if err := checkPDF(s.Kind, s.PDF, cfg.NumStates); err != nil {
			return nil, err
		}
		if err := s.bind(cfg.NumStates); err != nil {
			return nil, err
		}
		v.streams[s.Kind] = s
	}
	for _, k := range []StreamKind{Duration, LogF0, Spectrum} {
		if v.streams[k] == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingStream, k)
		}
	}
	if cfg.MixedExcitation.Enabled && v.streams[Strength] == nil {
		return nil, fmt.Errorf("%w: %s (mixed excitation enabled)", ErrMissingStream, Strength)
	}
	if cfg.FourierMagnitude && v.streams[Magnitude] == nil {
		return nil, fmt.Errorf("%w: %s (fourier magnitude enabled)", ErrMissingStream, Magnitude)
	}
	if s := v.streams[Strength]; s != nil && mixFilters != nil && len(mixFilters) != s.VectorSize() {
		return nil, fmt.Errorf("%w: %d mixing filters for %d strength bands", ErrDimension, len(mixFilters), s.VectorSize())
	}
	return v, nil
}

// Stream returns the model of kind k, or nil when the voice lacks it.
func (v *Voice) Stream(k StreamKind) *Stream {
	if k >= NumStreamKinds {
		return nil
	}
	return v.streams[k]
}

// Streams returns the present streams in kind order.
func (v *Voice) Streams() []*Stream {
	var out []*Stream
	for _, s := range v.streams {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// checkPDF verifies the table shape expected for kind.
func checkPDF(kind StreamKind, p *PDF, numStates int) error {
	if p == nil {
		return fmt.Errorf("%w: %s: no pdf table", ErrMissingStream, kind)
	}
	if p.Kind != kind {
		return fmt.Errorf("%w: pdf holds %s, want %s", ErrDimension, p.Kind, kind)
	}
	switch kind {
	case Duration:
		if p.VectorSize != numStates || p.NumWindows != 1 {
			return fmt.Errorf("%w: dur: vector size %d windows %d, want %d and 1", ErrDimension, p.VectorSize, p.NumWindows, numStates)
		}
	case LogF0:
		if p.VectorSize != 1 || p.NumWindows != 3 || !p.MSD {
			return fmt.Errorf("%w: lf0: want one msd coefficient with 3 windows", ErrDimension)
		}
	default:
		if p.VectorSize < 1 || p.NumWindows != 3 {
			return fmt.Errorf("%w: %s: vector size %d windows %d", ErrDimension, kind, p.VectorSize, p.NumWindows)
		}
	}
	return nil
}

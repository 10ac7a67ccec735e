// Package unit assembles the per-unit models of an utterance.
//
// Build runs three passes over the units, in order: durations, log-F0 and
// voicing, then every remaining stream the voice provides. Each pass only
// reads what the earlier passes wrote, so the staging is explicit in the
// code rather than implied by call order inside one loop.
package unit

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/haivivi/htsvoice/pkg/hts/feature"
	"github.com/haivivi/htsvoice/pkg/hts/model"
)

// ErrEmpty is returned when an utterance has no units.
var ErrEmpty = errors.New("unit: empty utterance")

// State is one emitting state of a unit.
type State struct {
	// Frames is the assigned duration, at least 1.
	Frames int
	// DurMean and DurVar are the duration distribution of the state.
	DurMean, DurVar float64
	// Voiced is true when the log-F0 voiced weight exceeds the threshold.
	Voiced bool
	// Weight is the log-F0 voiced weight.
	Weight float64
	// PDFs holds the selected Gaussian per stream; nil for absent streams
	// and for the duration stream.
	PDFs [model.NumStreamKinds]*model.Gaussian
}

// Unit is the model of one phone-sized unit.
type Unit struct {
	Phone    string
	Features feature.Vector
	States   []State
	// GV reports whether the unit's frames take part in global variance
	// correction.
	GV bool
}

// Frames returns the total duration of u.
func (u *Unit) Frames() int {
	n := 0
	for i := range u.States {
		n += u.States[i].Frames
	}
	return n
}

// Utterance is the ordered unit models of one utterance.
type Utterance struct {
	ID    string
	Units []Unit
	// Frames is the total number of frames.
	Frames int
	// Carry is the rounding remainder left after the last state.
	Carry float64
	// Rho is the duration shift actually used.
	Rho float64
}

// Each calls fn for every state in frame order with the index of its first
// frame.
func (u *Utterance) Each(fn func(unit *Unit, state *State, start int)) {
	t := 0
	for i := range u.Units {
		for j := range u.Units[i].States {
			s := &u.Units[i].States[j]
			fn(&u.Units[i], s, t)
			t += s.Frames
		}
	}
}

// Config controls unit assembly.
type Config struct {
	// Rho shifts each state duration by Rho times its variance.
	Rho float64
	// DurationScale multiplies the variance term. Zero means 1.
	DurationScale float64
	// TargetFrames, when positive, overrides Rho so that the unrounded
	// durations sum to the target.
	TargetFrames int
	// VoicedThreshold is the voiced weight above which a state is voiced.
	// Zero means 0.5.
	VoicedThreshold float64
	// SilencePhones are excluded from global variance. Nil means the
	// voice's list.
	SilencePhones []string
}

// ConfigFromVoice returns the assembly defaults of v.
func ConfigFromVoice(v *model.Voice) Config {
	return Config{
		Rho:             v.Config.Duration.Rho,
		DurationScale:   v.Config.Duration.Scale,
		VoicedThreshold: v.Config.VoicedThreshold,
		SilencePhones:   v.Config.SilencePhones,
	}
}

// Builder assembles utterances for one voice.
type Builder struct {
	voice *model.Voice
	cfg   Config
}

// NewBuilder returns a builder for v.
func NewBuilder(v *model.Voice, cfg Config) *Builder {
	if cfg.DurationScale == 0 {
		cfg.DurationScale = 1
	}
	if cfg.VoicedThreshold == 0 {
		cfg.VoicedThreshold = 0.5
	}
	return &Builder{voice: v, cfg: cfg}
}

// isSilence checks the override list when one is set and the voice's
// silence phones otherwise.
func (b *Builder) isSilence(phone string) bool {
	if b.cfg.SilencePhones != nil {
		return slices.Contains(b.cfg.SilencePhones, phone)
	}
	return b.voice.Config.IsSilence(phone)
}

// Build assembles the unit models for vectors.
func (b *Builder) Build(vectors []feature.Vector) (*Utterance, error) {
	if len(vectors) == 0 {
		return nil, ErrEmpty
	}
	layout := b.voice.Features.NewVector()
	utt := &Utterance{ID: uuid.NewString(), Units: make([]Unit, len(vectors))}
	for i, v := range vectors {
		if len(v.Bytes) != len(layout.Bytes) || len(v.Shorts) != len(layout.Shorts) || len(v.Floats) != len(layout.Floats) {
			return nil, fmt.Errorf("unit: unit %d: %w: vector does not match the voice layout", i, model.ErrDimension)
		}
		phone := b.voice.Features.Phone(v)
		utt.Units[i] = Unit{
			Phone:    phone,
			Features: v,
			States:   make([]State, b.voice.Config.NumStates),
			GV:       !b.isSilence(phone),
		}
	}
	b.durations(utt)
	b.logF0(utt)
	b.streams(utt)
	return utt, nil
}

// durations is pass one.
func (b *Builder) durations(utt *Utterance) {
	dur := b.voice.Stream(model.Duration)
	n := b.voice.Config.NumStates
	for i := range utt.Units {
		u := &utt.Units[i]
		g := dur.Lookup(0, u.Features)
		for s := range n {
			u.States[s].DurMean = g.Mean[s]
			u.States[s].DurVar = g.Var[s]
		}
	}

	rho := b.cfg.Rho
	scale := b.cfg.DurationScale
	if b.cfg.TargetFrames > 0 {
		var sumMean, sumVar float64
		for i := range utt.Units {
			for _, st := range utt.Units[i].States {
				sumMean += st.DurMean
				sumVar += st.DurVar
			}
		}
		if sumVar > 0 {
			rho = (float64(b.cfg.TargetFrames) - sumMean) / (scale * sumVar)
		}
	}
	utt.Rho = rho

	carry := 0.0
	total := 0
	for i := range utt.Units {
		for s := range utt.Units[i].States {
			st := &utt.Units[i].States[s]
			target := st.DurMean + rho*st.DurVar*scale
			st.Frames = max(1, int(math.Round(target+carry)))
			carry += target - float64(st.Frames)
			total += st.Frames
		}
	}
	utt.Frames = total
	utt.Carry = carry
}

// logF0 is pass two.
func (b *Builder) logF0(utt *Utterance) {
	lf0 := b.voice.Stream(model.LogF0)
	for i := range utt.Units {
		u := &utt.Units[i]
		for s := range u.States {
			g := lf0.Lookup(s, u.Features)
			st := &u.States[s]
			st.PDFs[model.LogF0] = g
			st.Weight = g.Weight
			st.Voiced = g.Weight > b.cfg.VoicedThreshold
		}
	}
}

// streams is pass three.
func (b *Builder) streams(utt *Utterance) {
	for _, k := range []model.StreamKind{model.Spectrum, model.Strength, model.Magnitude} {
		stream := b.voice.Stream(k)
		if stream == nil {
			continue
		}
		for i := range utt.Units {
			u := &utt.Units[i]
			for s := range u.States {
				u.States[s].PDFs[k] = stream.Lookup(s, u.Features)
			}
		}
	}
}

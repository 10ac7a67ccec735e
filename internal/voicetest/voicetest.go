// Package voicetest builds small synthetic voices for tests.
//
// The voice knows five phones: "0" (padding), "_" (silence), "a" and "i"
// (voiced vowels) and "k" (an unvoiced consonant). Every stream has one
// question per state so lookups exercise both branches of a tree.
package voicetest

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"path"
	"strings"
	"testing"

	"github.com/haivivi/htsvoice/pkg/hts/cart"
	"github.com/haivivi/htsvoice/pkg/hts/feature"
	"github.com/haivivi/htsvoice/pkg/hts/model"
	"github.com/haivivi/htsvoice/pkg/storage"
)

// VowelF0 is the pitch of voiced leaves in Hz.
const VowelF0 = 125.0

// Options selects the shape of the voice.
type Options struct {
	// Name defaults to "test".
	Name string
	// NumStates defaults to 3.
	NumStates int
	// Order is the cepstral order; the spectrum stream has Order+1
	// coefficients. Defaults to 4.
	Order int
	// Bands adds a strength stream with that many bands.
	Bands int
	// Harmonics adds a Fourier magnitude stream.
	Harmonics int
	// GV adds global variance files for lf0 and mgc.
	GV bool
	// Stage selects MGLSA when positive.
	Stage int
	// DurMean is the per-state mean duration in frames of vowels;
	// consonants and silence use half of it. Defaults to 6.
	DurMean float64
	// DurVar is the duration variance. Defaults to 2.
	DurVar float64
}

func (o *Options) defaults() {
	if o.Name == "" {
		o.Name = "test"
	}
	if o.NumStates == 0 {
		o.NumStates = 3
	}
	if o.Order == 0 {
		o.Order = 4
	}
	if o.DurMean == 0 {
		o.DurMean = 6
	}
	if o.DurVar == 0 {
		o.DurVar = 2
	}
}

// FeatureSpec is the feature layout of every test voice.
func FeatureSpec() feature.Spec {
	return feature.Spec{
		Phone: "phone",
		Byte: []feature.Categorical{
			{Name: "phone", Values: []string{"0", "_", "a", "i", "k"}},
			{Name: "pos_in_word", Values: []string{"0", "1", "2", "3"}},
		},
		Continuous: []string{"unit_duration"},
	}
}

// Config returns the descriptor of the voice with defaults applied.
func Config(o Options) model.Config {
	o.defaults()
	cfg := model.Config{
		Name:        o.Name,
		Locale:      "xx",
		SampleRate:  16000,
		FramePeriod: 80,
		NumStates:   o.NumStates,
		Alpha:       0.42,
		Stage:       o.Stage,
		Features:    FeatureSpec(),
		GV:          model.GVConfig{Enabled: o.GV},
		Streams:     map[string]model.StreamFiles{},
	}
	add := func(k model.StreamKind, gv bool) {
		sf := model.StreamFiles{Tree: "tree-" + k.String() + ".inf", PDF: k.String() + ".pdf"}
		if gv {
			sf.GV = "gv-" + k.String() + ".pdf"
		}
		cfg.Streams[k.String()] = sf
	}
	add(model.Duration, false)
	add(model.LogF0, o.GV)
	add(model.Spectrum, o.GV)
	if o.Bands > 0 {
		add(model.Strength, false)
		cfg.MixedExcitation.Enabled = true
	}
	if o.Harmonics > 0 {
		add(model.Magnitude, false)
		cfg.FourierMagnitude = true
	}
	cfg.SetDefaults()
	return cfg
}

// source holds the text and binary files of one stream.
type source struct {
	kind  model.StreamKind
	trees string
	pdf   *model.PDF
	gv    *model.Gaussian
}

func sources(o Options) []source {
	o.defaults()
	n := o.NumStates
	var out []source

	// Duration: vowels vs the rest.
	durLeaf := func(mean float64) model.Gaussian {
		g := model.Gaussian{Mean: make([]float64, n), Var: make([]float64, n)}
		for i := range n {
			g.Mean[i] = mean
			g.Var[i] = o.DurVar
		}
		return g
	}
	out = append(out, source{
		kind: model.Duration,
		trees: `QS "C-Vowel" phone in {a,i}
{*}[2]
{
 0 "C-Vowel" "dur_s2_1" "dur_s2_2"
}
`,
		pdf: &model.PDF{
			Kind: model.Duration, VectorSize: n, NumWindows: 1,
			Leaves: [][]model.Gaussian{{durLeaf(o.DurMean / 2), durLeaf(o.DurMean)}},
		},
	})

	// stateTrees writes one "voiced vs not" tree per state.
	stateTrees := func(prefix string) string {
		var b strings.Builder
		b.WriteString("QS \"C-Voiced\" phone in {a,i}\n")
		for s := range n {
			fmt.Fprintf(&b, "{*}[%d]\n{\n 0 \"C-Voiced\" \"%s_s%d_1\" \"%s_s%d_2\"\n}\n", s+2, prefix, s+2, prefix, s+2)
		}
		return b.String()
	}
	perState := func(kind model.StreamKind, size int, msd bool, leaf func(voiced bool) model.Gaussian) *model.PDF {
		p := &model.PDF{Kind: kind, VectorSize: size, NumWindows: 3, MSD: msd}
		for range n {
			p.Leaves = append(p.Leaves, []model.Gaussian{leaf(false), leaf(true)})
		}
		return p
	}
	static := func(size int, mean func(i int) float64, v float64) model.Gaussian {
		g := model.Gaussian{Mean: make([]float64, 3*size), Var: make([]float64, 3*size)}
		for i := range size {
			g.Mean[i] = mean(i)
		}
		for i := range g.Var {
			g.Var[i] = v
		}
		return g
	}

	lf0 := source{
		kind:  model.LogF0,
		trees: stateTrees("lf0"),
		pdf: perState(model.LogF0, 1, true, func(voiced bool) model.Gaussian {
			g := static(1, func(int) float64 { return math.Log(VowelF0) }, 0.01)
			if voiced {
				g.Weight = 1
			}
			return g
		}),
	}
	mgcSize := o.Order + 1
	mgc := source{
		kind:  model.Spectrum,
		trees: stateTrees("mgc"),
		pdf: perState(model.Spectrum, mgcSize, false, func(voiced bool) model.Gaussian {
			return static(mgcSize, func(i int) float64 {
				if voiced {
					return 1 / float64(i+1)
				}
				return -0.5 / float64(i+1)
			}, 0.05)
		}),
	}
	if o.GV {
		lf0.gv = &model.Gaussian{Mean: []float64{0.02}, Var: []float64{0.001}}
		mgc.gv = &model.Gaussian{Mean: make([]float64, mgcSize), Var: make([]float64, mgcSize)}
		for i := range mgcSize {
			mgc.gv.Mean[i] = 0.2
			mgc.gv.Var[i] = 0.001
		}
	}
	out = append(out, lf0, mgc)

	if o.Bands > 0 {
		out = append(out, source{
			kind:  model.Strength,
			trees: stateTrees("str"),
			pdf: perState(model.Strength, o.Bands, false, func(voiced bool) model.Gaussian {
				return static(o.Bands, func(i int) float64 {
					if voiced {
						return 1 - float64(i)/float64(2*o.Bands)
					}
					return 0
				}, 0.01)
			}),
		})
	}
	if o.Harmonics > 0 {
		out = append(out, source{
			kind:  model.Magnitude,
			trees: stateTrees("mag"),
			pdf: perState(model.Magnitude, o.Harmonics, false, func(bool) model.Gaussian {
				return static(o.Harmonics, func(i int) float64 { return 1 / math.Sqrt(float64(i+1)) }, 0.01)
			}),
		})
	}
	return out
}

// Voice builds the voice in memory.
func Voice(tb testing.TB, o Options) *model.Voice {
	tb.Helper()
	cfg := Config(o)
	def, err := feature.NewDefinition(cfg.Features)
	if err != nil {
		tb.Fatalf("voicetest: %v", err)
	}
	var streams []*model.Stream
	for _, src := range sources(o) {
		set, err := cart.Parse(strings.NewReader(src.trees), def)
		if err != nil {
			tb.Fatalf("voicetest: %s trees: %v", src.kind, err)
		}
		streams = append(streams, &model.Stream{Kind: src.kind, Trees: set, PDF: src.pdf, GV: src.gv})
	}
	v, err := model.NewVoice(cfg, def, streams, nil)
	if err != nil {
		tb.Fatalf("voicetest: %v", err)
	}
	return v
}

// Write stores the voice files under dir in store and returns the path of
// the descriptor.
func Write(tb testing.TB, store storage.FileStore, dir string, o Options) string {
	tb.Helper()
	ctx := context.Background()
	cfg := Config(o)
	put := func(name string, data []byte) {
		if err := storage.WriteFile(ctx, store, path.Join(dir, name), data); err != nil {
			tb.Fatalf("voicetest: %v", err)
		}
	}
	for _, src := range sources(o) {
		sf := cfg.Streams[src.kind.String()]
		put(sf.Tree, []byte(src.trees))
		var buf bytes.Buffer
		if err := model.WritePDF(&buf, src.pdf); err != nil {
			tb.Fatalf("voicetest: %v", err)
		}
		put(sf.PDF, buf.Bytes())
		if src.gv != nil {
			buf.Reset()
			if err := model.WriteGV(&buf, src.kind, src.gv); err != nil {
				tb.Fatalf("voicetest: %v", err)
			}
			put(sf.GV, buf.Bytes())
		}
	}
	desc, err := cfg.Marshal()
	if err != nil {
		tb.Fatalf("voicetest: %v", err)
	}
	put("voice.yaml", desc)
	return path.Join(dir, "voice.yaml")
}

// Units encodes phones into feature vectors of the test voice.
func Units(tb testing.TB, v *model.Voice, phones ...string) []feature.Vector {
	tb.Helper()
	out := make([]feature.Vector, len(phones))
	for i, p := range phones {
		vec, err := v.Features.Encode(map[string]string{"phone": p})
		if err != nil {
			tb.Fatalf("voicetest: %v", err)
		}
		out[i] = vec
	}
	return out
}

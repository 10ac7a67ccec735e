package hts_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/haivivi/htsvoice/internal/voicetest"
	"github.com/haivivi/htsvoice/pkg/hts"
	"github.com/haivivi/htsvoice/pkg/hts/cart"
	"github.com/haivivi/htsvoice/pkg/hts/feature"
	"github.com/haivivi/htsvoice/pkg/hts/model"
	"github.com/haivivi/htsvoice/pkg/hts/vocoder"
	"github.com/haivivi/htsvoice/pkg/kv"
	"github.com/haivivi/htsvoice/pkg/storage"
)

// steadyVoice has one state lasting 100 frames, a constant voiced pitch of
// 160 Hz and a flat two-coefficient cepstrum with zero variance.
func steadyVoice(t *testing.T) *model.Voice {
	t.Helper()
	cfg := model.Config{
		Name:        "steady",
		SampleRate:  16000,
		FramePeriod: 80,
		NumStates:   1,
		Alpha:       0.42,
		F0:          model.F0Config{Mean: 159, Std: 1},
		Features: feature.Spec{
			Phone: "phone",
			Byte:  []feature.Categorical{{Name: "phone", Values: []string{"0", "a"}}},
		},
	}
	cfg.SetDefaults()
	def, err := feature.NewDefinition(cfg.Features)
	if err != nil {
		t.Fatal(err)
	}
	leaf := func(prefix string) *cart.Set {
		set, err := cart.Parse(strings.NewReader(fmt.Sprintf("{*}[2]\n\"%s_s2_1\"\n", prefix)), def)
		if err != nil {
			t.Fatal(err)
		}
		return set
	}
	streams := []*model.Stream{
		{
			Kind:  model.Duration,
			Trees: leaf("dur"),
			PDF: &model.PDF{Kind: model.Duration, VectorSize: 1, NumWindows: 1, Leaves: [][]model.Gaussian{{
				{Mean: []float64{100}, Var: []float64{0}},
			}}},
		},
		{
			Kind:  model.LogF0,
			Trees: leaf("lf0"),
			PDF: &model.PDF{Kind: model.LogF0, VectorSize: 1, NumWindows: 3, MSD: true, Leaves: [][]model.Gaussian{{
				{Mean: []float64{0, 0, 0}, Var: []float64{0.01, 0.01, 0.01}, Weight: 1},
			}}},
		},
		{
			Kind:  model.Spectrum,
			Trees: leaf("mgc"),
			PDF: &model.PDF{Kind: model.Spectrum, VectorSize: 2, NumWindows: 3, Leaves: [][]model.Gaussian{{
				{Mean: make([]float64, 6), Var: make([]float64, 6)},
			}}},
		},
	}
	v, err := model.NewVoice(cfg, def, streams, nil)
	if err != nil {
		t.Fatalf("NewVoice: %v", err)
	}
	return v
}

func TestSynthesizeSteadyVowel(t *testing.T) {
	v := steadyVoice(t)
	e, err := hts.NewEngine(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	vec, err := v.Features.Encode(map[string]string{"phone": "a"})
	if err != nil {
		t.Fatal(err)
	}
	var buf vocoder.Buffer
	res, err := e.Synthesize(context.Background(), []feature.Vector{vec}, &buf)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Frames != 100 || res.Samples != 8000 || len(buf.Samples) != 8000 {
		t.Fatalf("frames=%d samples=%d buffered=%d", res.Frames, res.Samples, len(buf.Samples))
	}
	if res.Duration.Milliseconds() != 500 {
		t.Errorf("duration = %v", res.Duration)
	}
	var pulses []int
	for i, x := range buf.Samples {
		if x != 0 {
			pulses = append(pulses, i)
			if math.Abs(x-10) > 1e-9 {
				t.Errorf("pulse %d = %v, want 10", i, x)
			}
		}
	}
	if len(pulses) != 80 {
		t.Fatalf("got %d pulses, want 80", len(pulses))
	}
	for i, p := range pulses {
		if p != 100*i {
			t.Fatalf("pulse %d at sample %d, want %d", i, p, 100*i)
		}
	}
}

func TestParameters(t *testing.T) {
	v := voicetest.Voice(t, voicetest.Options{Bands: 3, GV: true})
	e, err := hts.NewEngine(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	vectors := voicetest.Units(t, v, "_", "k", "a", "_")
	traj, err := e.Parameters(context.Background(), vectors)
	if err != nil {
		t.Fatal(err)
	}
	if traj.Parameters.Frames != traj.Utterance.Frames {
		t.Errorf("frames %d != %d", traj.Parameters.Frames, traj.Utterance.Frames)
	}
	if len(traj.GV) == 0 {
		t.Error("no gv reports with gv enabled")
	}

	off, err := e.Parameters(context.Background(), vectors, hts.WithGV(false), hts.WithTargetFrames(80))
	if err != nil {
		t.Fatal(err)
	}
	if len(off.GV) != 0 {
		t.Errorf("gv reports with gv disabled: %+v", off.GV)
	}
	if d := off.Utterance.Frames - 80; d < -4 || d > 4 {
		t.Errorf("target 80 frames, got %d", off.Utterance.Frames)
	}

	frames := hts.Frames(traj.Parameters)
	for i, f := range frames {
		if len(f.Spectrum) != 5 {
			t.Fatalf("frame %d: %d coefficients", i, len(f.Spectrum))
		}
		if f.Voiced && len(f.Strength) != 3 {
			t.Fatalf("frame %d: %d strengths", i, len(f.Strength))
		}
	}
}

func TestSynthesizeOptions(t *testing.T) {
	v := voicetest.Voice(t, voicetest.Options{Bands: 3, Harmonics: 4})
	e, err := hts.NewEngine(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	vectors := voicetest.Units(t, v, "_", "a", "k", "i", "_")
	run := func(opts ...hts.Option) []float64 {
		var buf vocoder.Buffer
		if _, err := e.Synthesize(context.Background(), vectors, &buf, opts...); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		return buf.Samples
	}
	a := run(hts.WithSeed(1))
	b := run(hts.WithSeed(1))
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d, %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs for the same seed", i)
		}
	}
	plain := run(hts.WithSeed(1), hts.WithMixedExcitation(false), hts.WithFourierMagnitude(false))
	if len(plain) != len(a) {
		t.Fatalf("plain excitation changed the length")
	}
	for _, x := range a {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			t.Fatal("non-finite sample")
		}
	}
	slow := run(hts.WithDurationScale(1), hts.WithRho(1))
	if len(slow) <= len(a) {
		t.Errorf("positive rho did not lengthen: %d <= %d", len(slow), len(a))
	}
}

func TestSynthesizeErrors(t *testing.T) {
	v := voicetest.Voice(t, voicetest.Options{})
	e, err := hts.NewEngine(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Synthesize(context.Background(), nil, &vocoder.Buffer{}); err == nil {
		t.Error("empty input accepted")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	vectors := voicetest.Units(t, v, "a")
	if _, err := e.Synthesize(ctx, vectors, &vocoder.Buffer{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	desc := voicetest.Write(t, store, "voices/test", voicetest.Options{})
	reg := hts.NewRegistry(model.NewCache(kv.NewMemory()), nil)

	e, err := reg.Load(ctx, store, desc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := reg.Engine("xx/test")
	if err != nil || got != e {
		t.Fatalf("Engine(xx/test) = %v, %v", got, err)
	}
	if _, err := reg.Engine("xx/other"); !errors.Is(err, hts.ErrVoiceNotFound) {
		t.Errorf("expected ErrVoiceNotFound, got %v", err)
	}
	if err := reg.Register("xx/#", e); err != nil {
		t.Fatal(err)
	}
	if got, err := reg.Engine("xx/other"); err != nil || got != e {
		t.Errorf("locale default not matched: %v", err)
	}
	if err := reg.Register("#/x", e); !errors.Is(err, hts.ErrInvalidPattern) {
		t.Errorf("expected ErrInvalidPattern, got %v", err)
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "xx/#" || names[1] != "xx/test" {
		t.Errorf("Names = %v", names)
	}
	if !reg.Remove("xx/#") || reg.Remove("xx/#") {
		t.Error("Remove should succeed once")
	}

	// Reloading hits the snapshot cache and yields an equivalent voice.
	again, err := reg.Load(ctx, store, desc)
	if err != nil {
		t.Fatal(err)
	}
	if again.Voice().Digest != e.Voice().Digest {
		t.Error("digest changed on reload")
	}
}

func TestRegistryLoadAll(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	voicetest.Write(t, store, "voices/alpha", voicetest.Options{Name: "alpha"})
	voicetest.Write(t, store, "voices/beta", voicetest.Options{Name: "beta", Bands: 3})
	if err := storage.WriteFile(ctx, store, "voices/broken/voice.yaml", []byte("name: broken\n")); err != nil {
		t.Fatal(err)
	}

	reg := hts.NewRegistry(nil, nil)
	engines, err := reg.LoadAll(ctx, store, "voices/")
	if err == nil || !strings.Contains(err.Error(), "voices/broken/voice.yaml") {
		t.Errorf("expected error naming the broken voice, got %v", err)
	}
	if len(engines) != 2 {
		t.Fatalf("loaded %d engines, want 2", len(engines))
	}
	if names := reg.Names(); len(names) != 2 || names[0] != "xx/alpha" || names[1] != "xx/beta" {
		t.Errorf("Names = %v", names)
	}
}

func TestRegistryConcurrent(t *testing.T) {
	v := voicetest.Voice(t, voicetest.Options{})
	e, err := hts.NewEngine(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	reg := hts.NewRegistry(nil, nil)
	if err := reg.Register("xx/test", e); err != nil {
		t.Fatal(err)
	}
	vectors := voicetest.Units(t, v, "_", "a", "k", "i", "_")

	var want vocoder.Buffer
	if _, err := e.Synthesize(context.Background(), vectors, &want, hts.WithSeed(3)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = reg.Register(fmt.Sprintf("yy/v%d", i), e)
		}()
		go func() {
			defer wg.Done()
			eng, err := reg.Engine("xx/test")
			if err != nil {
				errs <- err
				return
			}
			var got vocoder.Buffer
			if _, err := eng.Synthesize(context.Background(), vectors, &got, hts.WithSeed(3)); err != nil {
				errs <- err
				return
			}
			for j := range want.Samples {
				if got.Samples[j] != want.Samples[j] {
					errs <- fmt.Errorf("sample %d differs between concurrent runs", j)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if n := len(reg.Names()); n != 9 {
		t.Errorf("registered %d voices, want 9", n)
	}
}

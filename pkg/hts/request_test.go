package hts_test

import (
	"context"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/haivivi/htsvoice/internal/voicetest"
	"github.com/haivivi/htsvoice/pkg/hts"
	"github.com/haivivi/htsvoice/pkg/hts/vocoder"
)

func TestRequestVectors(t *testing.T) {
	v := voicetest.Voice(t, voicetest.Options{})
	e, err := hts.NewEngine(v, nil)
	if err != nil {
		t.Fatal(err)
	}

	var req hts.Request
	err = yaml.Unmarshal([]byte(`
voice: xx/test
units:
  - {phone: a, pos_in_word: 1}
  - {phone: k}
seed: 7
gv: false
f0: {mean: 0, std: 1.2}
`), &req)
	if err != nil {
		t.Fatal(err)
	}
	vs, err := e.Vectors(&req)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 2 || v.Features.Phone(vs[0]) != "a" || v.Features.Phone(vs[1]) != "k" {
		t.Fatalf("vectors decode to %v", vs)
	}
	if got := len(req.Options()); got != 3 {
		t.Errorf("%d options, want 3", got)
	}

	labels := &hts.Request{Labels: "# comment\nphone=a pos_in_word=1\n\nphone=i\n"}
	vs, err = e.Vectors(labels)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 2 || v.Features.Phone(vs[1]) != "i" {
		t.Errorf("labels decode to %d vectors", len(vs))
	}

	if _, err := e.Vectors(&hts.Request{}); !errors.Is(err, hts.ErrNoUnits) {
		t.Errorf("expected ErrNoUnits, got %v", err)
	}
	if _, err := e.Vectors(&hts.Request{Units: []map[string]any{{"phone": "zz"}}}); err == nil {
		t.Error("unknown phone accepted")
	}
}

func TestRequestOptionsApply(t *testing.T) {
	v := voicetest.Voice(t, voicetest.Options{})
	e, err := hts.NewEngine(v, nil)
	if err != nil {
		t.Fatal(err)
	}
	seed := uint64(11)
	req := &hts.Request{Labels: "phone=_\nphone=a\nphone=_\n", Seed: &seed}
	vs, err := e.Vectors(req)
	if err != nil {
		t.Fatal(err)
	}
	var a, b vocoder.Buffer
	if _, err := e.Synthesize(context.Background(), vs, &a, req.Options()...); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Synthesize(context.Background(), vs, &b, hts.WithSeed(seed)); err != nil {
		t.Fatal(err)
	}
	if len(a.Samples) != len(b.Samples) {
		t.Fatalf("lengths %d and %d", len(a.Samples), len(b.Samples))
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			t.Fatalf("sample %d differs", i)
		}
	}

	frames := 40
	req.TargetFrames = frames
	traj, err := e.Parameters(context.Background(), vs, req.Options()...)
	if err != nil {
		t.Fatal(err)
	}
	if d := traj.Parameters.Frames - frames; d < -3 || d > 3 {
		t.Errorf("target %d frames, got %d", frames, traj.Parameters.Frames)
	}
}

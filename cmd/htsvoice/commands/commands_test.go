package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bytedance/sonic"

	"github.com/haivivi/htsvoice/internal/voicetest"
	"github.com/haivivi/htsvoice/pkg/cli"
	"github.com/haivivi/htsvoice/pkg/hts/model"
	"github.com/haivivi/htsvoice/pkg/kv"
	"github.com/haivivi/htsvoice/pkg/storage"
)

// run executes the root command with fresh global flags.
func run(t *testing.T, args ...string) error {
	t.Helper()
	cfgFile, contextName, outputFile, inputFile = "", "", "", ""
	voicesDir, cacheDir = "", ""
	outputJSON, verbose = false, false
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

type fixture struct {
	dir     string
	config  string
	voices  string
	request string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:     dir,
		config:  filepath.Join(dir, "config.yaml"),
		voices:  filepath.Join(dir, "voices"),
		request: filepath.Join(dir, "request.yaml"),
	}
	store, err := storage.NewLocal(f.voices)
	if err != nil {
		t.Fatal(err)
	}
	voicetest.Write(t, store, "xx/test", voicetest.Options{})
	req := "units:\n  - {phone: _}\n  - {phone: a}\n  - {phone: _}\nseed: 5\n"
	if err := os.WriteFile(f.request, []byte(req), 0o644); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestAddContext(t *testing.T) {
	f := newFixture(t)
	err := run(t, "--config", f.config, "--voices", f.voices, "--cache", cli.CacheOff,
		"config", "add-context", "local", "--default-voice", "xx/test", "--sample-rate", "16000")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := cli.LoadConfigWithPath(appName, f.config)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CurrentContext != "local" {
		t.Errorf("current context = %q", cfg.CurrentContext)
	}
	ctx, err := cfg.GetContext("local")
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Voices != f.voices || ctx.Cache != cli.CacheOff || ctx.DefaultVoice != "xx/test" || ctx.SampleRate != 16000 {
		t.Errorf("context = %+v", ctx)
	}
	if ctx.S3 != nil {
		t.Errorf("unexpected s3 config %+v", ctx.S3)
	}

	if err := run(t, "--config", f.config, "config", "add-context", "empty"); err == nil {
		t.Error("expected error without --voices")
	}
}

func TestSynth(t *testing.T) {
	f := newFixture(t)
	if err := run(t, "--config", f.config, "--voices", f.voices, "--cache", cli.CacheOff,
		"config", "add-context", "local"); err != nil {
		t.Fatal(err)
	}

	wav := filepath.Join(f.dir, "out.wav")
	if err := run(t, "--config", f.config, "synth", "-f", f.request, "-o", wav); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(wav)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) <= 44 || !bytes.HasPrefix(data, []byte("RIFF")) {
		t.Fatalf("not a wav file: %d bytes", len(data))
	}

	raw := filepath.Join(f.dir, "out.raw")
	if err := run(t, "--config", f.config, "synth", "-f", f.request, "-o", raw); err != nil {
		t.Fatal(err)
	}
	pcm, err := os.ReadFile(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		t.Fatalf("l16 output has %d bytes", len(pcm))
	}
	if want := len(data) - 44; len(pcm) != want {
		t.Errorf("l16 = %d bytes, wav payload = %d", len(pcm), want)
	}

	ul := filepath.Join(f.dir, "out.ul")
	if err := run(t, "--config", f.config, "synth", "-f", f.request, "-o", ul); err != nil {
		t.Fatal(err)
	}
	mulaw, err := os.ReadFile(ul)
	if err != nil {
		t.Fatal(err)
	}
	// 16 kHz L16 halves in rate and again in sample width.
	if want := len(pcm) / 4; len(mulaw) != want {
		t.Errorf("mulaw = %d bytes, want %d", len(mulaw), want)
	}
}

func TestSynthErrors(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "out.raw")
	tests := []struct {
		name string
		args []string
	}{
		{"no output", []string{"--voices", f.voices, "synth", "-f", f.request}},
		{"no input", []string{"--voices", f.voices, "synth", "-o", out}},
		{"wav to stdout", []string{"--voices", f.voices, "synth", "-f", f.request, "-o", "-", "--encoding", "wav"}},
		{"unknown voice", []string{"--voices", f.voices, "synth", "-f", f.request, "-o", out, "--voice", "xx/none"}},
		{"unknown encoding", []string{"--voices", f.voices, "synth", "-f", f.request, "-o", out, "--encoding", "mp3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", f.config, "--cache", cli.CacheOff}, tt.args...)
			if err := run(t, args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParams(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "params.json")
	err := run(t, "--config", f.config, "--voices", f.voices, "--cache", cli.CacheOff,
		"params", "-f", f.request, "--stream", "lf0,mgc", "--json", "-o", out)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var got paramsOutput
	if err := sonic.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Units) != 3 || got.Units[1].Phone != "a" {
		t.Fatalf("units = %+v", got.Units)
	}
	sum := 0
	for _, u := range got.Units {
		for _, n := range u.Frames {
			sum += n
		}
	}
	if sum != got.Frames {
		t.Errorf("state frames sum to %d, utterance has %d", sum, got.Frames)
	}
	if len(got.Voiced) != got.Frames || len(got.Streams["lf0"]) != got.Frames || len(got.Streams["mgc"]) != got.Frames {
		t.Errorf("trajectory lengths: voiced=%d lf0=%d mgc=%d, frames=%d",
			len(got.Voiced), len(got.Streams["lf0"]), len(got.Streams["mgc"]), got.Frames)
	}
}

func TestCacheCommands(t *testing.T) {
	f := newFixture(t)
	cache := filepath.Join(f.dir, "cache")
	out := filepath.Join(f.dir, "voices.json")
	if err := run(t, "--config", f.config, "--voices", f.voices, "--cache", cache, "voices", "--json", "-o", out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var voices map[string][]string
	if err := sonic.Unmarshal(data, &voices); err != nil {
		t.Fatal(err)
	}
	if v := voices["voices"]; len(v) != 1 || v[0] != "xx/test" {
		t.Fatalf("voices = %v", voices)
	}

	list := filepath.Join(f.dir, "cache.json")
	if err := run(t, "--config", f.config, "--voices", f.voices, "--cache", cache, "cache", "list", "--json", "-o", list); err != nil {
		t.Fatal(err)
	}
	data, err = os.ReadFile(list)
	if err != nil {
		t.Fatal(err)
	}
	var entries []model.CacheEntry
	if err := sonic.Unmarshal(data, &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name != "test" {
		t.Fatalf("entries = %+v", entries)
	}

	if err := run(t, "--config", f.config, "--voices", f.voices, "--cache", cache, "cache", "remove", entries[0].Digest[:8]); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "--config", f.config, "--voices", f.voices, "--cache", cache, "cache", "remove", entries[0].Digest[:8]); err == nil {
		t.Error("expected error removing a missing snapshot")
	}
	if err := run(t, "--config", f.config, "--voices", f.voices, "--cache", cli.CacheOff, "cache", "purge"); err == nil {
		t.Error("expected error with caching disabled")
	}
}

func TestResolveDigest(t *testing.T) {
	ctx := context.Background()
	cache := model.NewCache(kv.NewMemory())
	for name, digest := range map[string]string{"a": "abc123", "b": "abd456"} {
		v := voicetest.Voice(t, voicetest.Options{Name: name})
		v.Digest = digest
		if err := cache.Put(ctx, v); err != nil {
			t.Fatal(err)
		}
	}
	tests := []struct {
		prefix  string
		want    string
		wantErr bool
	}{
		{"abc", "abc123", false},
		{"abd456", "abd456", false},
		{"ab", "", true},
		{"zz", "", true},
	}
	for _, tt := range tests {
		got, err := resolveDigest(ctx, cache, tt.prefix)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("resolveDigest(%q) = %q, %v; want %q", tt.prefix, got, err, tt.want)
		}
	}
}

func TestInspectReport(t *testing.T) {
	v := voicetest.Voice(t, voicetest.Options{Bands: 3, GV: true})
	r := inspectVoice(v)
	if r.Name != "xx/test" || r.Features != v.Features.Len() {
		t.Errorf("report = %+v", r)
	}
	if len(r.Streams) != len(v.Streams()) {
		t.Fatalf("streams = %d, want %d", len(r.Streams), len(v.Streams()))
	}
	for _, s := range r.Streams {
		if s.Leaves == 0 || s.VectorSize == 0 || s.MaxDepth == 0 {
			t.Errorf("stream %s: %+v", s.Kind, s)
		}
		if s.Kind == model.LogF0 && !s.MSD {
			t.Error("lf0 should be msd")
		}
	}
	if got := mixedName(r); got != "designed bands" {
		t.Errorf("mixedName = %q", got)
	}
	out := r.summary().Render(0)
	for _, want := range []string{"xx/test", "Streams", "lf0", "mgc", "str"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("summary lacks %q:\n%s", want, out)
		}
	}
}

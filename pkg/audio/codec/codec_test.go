package codec

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/zaf/g711"

	"github.com/haivivi/htsvoice/pkg/audio/pcm"
)

func TestParseEncoding(t *testing.T) {
	tests := map[string]Encoding{
		"":     L16,
		"raw":  L16,
		"WAV":  WAV,
		"ulaw": MuLaw,
		"pcma": ALaw,
	}
	for in, want := range tests {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Errorf("ParseEncoding(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseEncoding("mp3"); err == nil {
		t.Error("expected error for mp3")
	}
}

func TestEncodingForPath(t *testing.T) {
	tests := map[string]Encoding{
		"out.wav":    WAV,
		"out.WAV":    WAV,
		"out.ul":     MuLaw,
		"out.alaw":   ALaw,
		"out.pcm":    L16,
		"no-ext":     L16,
		"dir.wav/x":  L16,
		"clip.mulaw": MuLaw,
	}
	for in, want := range tests {
		if got := EncodingForPath(in); got != want {
			t.Errorf("EncodingForPath(%q) = %q, want %q", in, got, want)
		}
	}
	if MuLaw.SampleRate() != 8000 || WAV.SampleRate() != 0 {
		t.Error("unexpected required sample rates")
	}
}

func l16(samples ...float64) pcm.Chunk {
	data, _ := pcm.AppendL16(nil, samples)
	return pcm.L16Mono8K.DataChunk(data)
}

func TestWAVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWriter(WAV, f, pcm.L16Mono16K)
	if err != nil {
		t.Fatal(err)
	}
	s := pcm.NewSink(w, pcm.L16Mono16K)
	if err := s.Write([]float64{0, 1000, -1000}); err != nil {
		t.Fatal(err)
	}
	if err := s.Write([]float64{32767}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	f, err = os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("header: rate=%d chans=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{0, 1000, -1000, 32767}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %v, want %v", buf.Data, want)
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Fatalf("decoded %v, want %v", buf.Data, want)
		}
	}
}

func TestWAVNeedsSeeker(t *testing.T) {
	if _, err := NewWriter(WAV, &bytes.Buffer{}, pcm.L16Mono16K); err == nil {
		t.Error("expected error for non-seekable output")
	}
}

func TestG711Writer(t *testing.T) {
	for _, law := range []Encoding{MuLaw, ALaw} {
		var out bytes.Buffer
		w, err := NewWriter(law, &out, pcm.L16Mono8K)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.Write(l16(0, 8000, -8000, 300)); err != nil {
			t.Fatal(err)
		}
		if err := w.Write(pcm.L16Mono8K.SilenceChunk(time.Millisecond)); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		if out.Len() != 4+8 {
			t.Fatalf("%s: %d bytes, want 12", law, out.Len())
		}
		decode := g711.DecodeUlawFrame
		if law == ALaw {
			decode = g711.DecodeAlawFrame
		}
		for i, want := range []int16{0, 8000, -8000, 300} {
			got := decode(out.Bytes()[i])
			if d := int(got) - int(want); d < -300 || d > 300 {
				t.Errorf("%s: sample %d decoded %d, want about %d", law, i, got, want)
			}
		}
	}
	if _, err := NewWriter(MuLaw, &bytes.Buffer{}, pcm.L16Mono16K); err == nil {
		t.Error("expected error for 16 kHz G.711 input")
	}
}

func TestL16Writer(t *testing.T) {
	var out bytes.Buffer
	w, err := NewWriter(L16, &out, pcm.L16Mono8K)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(l16(1, -1)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), []byte{1, 0, 0xff, 0xff}) {
		t.Errorf("got % x", out.Bytes())
	}
}

func TestSinkResamples(t *testing.T) {
	var out bytes.Buffer
	s, err := NewSink(&out, MuLaw, 16000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Format() != pcm.L16Mono8K {
		t.Errorf("format %v", s.Format())
	}
	block := make([]float64, 80)
	for range 200 {
		if err := s.Write(block); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 8000 || s.Samples() != 8000 {
		t.Errorf("wrote %d bytes, %d samples; want 8000", out.Len(), s.Samples())
	}
}

func TestSinkPassthrough(t *testing.T) {
	var out bytes.Buffer
	s, err := NewSink(&out, L16, 16000, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write([]float64{1, 2, 40000}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 6 || s.Clipped() != 1 {
		t.Errorf("len=%d clipped=%d", out.Len(), s.Clipped())
	}
	if _, err := NewSink(&out, ALaw, 16000, 16000); err == nil {
		t.Error("expected error for 16 kHz A-law")
	}
	if _, err := NewSink(&out, L16, 16000, 11025); err == nil {
		t.Error("expected error for unsupported rate")
	}
}

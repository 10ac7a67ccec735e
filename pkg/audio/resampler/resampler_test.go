package resampler

import (
	"errors"
	"math"
	"testing"
)

type collect struct {
	samples []float64
	writes  int
}

func (c *collect) Write(s []float64) error {
	c.samples = append(c.samples, s...)
	c.writes++
	return nil
}

func sine(n, rate int, freq, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return out
}

func rms(s []float64) float64 {
	var sum float64
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(s)))
}

func TestPassthrough(t *testing.T) {
	var c collect
	r, err := New(&c, 16000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	in := []float64{1, -2, 30000}
	if err := r.Write(in); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if len(c.samples) != 3 || c.samples[2] != 30000 {
		t.Errorf("got %v", c.samples)
	}
	if err := r.Write(in); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v", err)
	}
}

func TestOutputLength(t *testing.T) {
	for _, tt := range []struct{ src, dst int }{
		{16000, 8000},
		{16000, 48000},
		{16000, 22050},
	} {
		var c collect
		r, err := New(&c, tt.src, tt.dst)
		if err != nil {
			t.Fatal(err)
		}
		in := sine(tt.src, tt.src, 440, 8000)
		// Feed in frame-sized blocks as the vocoder does.
		for i := 0; i < len(in); i += 80 {
			if err := r.Write(in[i:min(i+80, len(in))]); err != nil {
				t.Fatal(err)
			}
		}
		if err := r.Close(); err != nil {
			t.Fatal(err)
		}
		if len(c.samples) != tt.dst {
			t.Errorf("%d -> %d: %d samples, want %d", tt.src, tt.dst, len(c.samples), tt.dst)
		}
	}
}

func TestKeepsLevel(t *testing.T) {
	var c collect
	r, err := New(&c, 16000, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Write(sine(16000, 16000, 440, 10000)); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	got := rms(c.samples[2000:6000])
	want := 10000 / math.Sqrt2
	if math.Abs(got-want) > 0.1*want {
		t.Errorf("rms = %.1f, want about %.1f", got, want)
	}
}

func TestInvalidRates(t *testing.T) {
	if _, err := New(&collect{}, 0, 16000); err == nil {
		t.Error("expected error for zero rate")
	}
}

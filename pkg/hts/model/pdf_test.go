package model

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPDFRoundTrip(t *testing.T) {
	p := &PDF{
		Kind:       LogF0,
		VectorSize: 1,
		NumWindows: 3,
		MSD:        true,
		Leaves: [][]Gaussian{
			{{Mean: []float64{5, 0.5, -0.25}, Var: []float64{0.5, 1, 2}, Weight: 0.75}},
			{
				{Mean: []float64{4, 0, 0}, Var: []float64{1, 1, 1}, Weight: 0},
				{Mean: []float64{4.5, 0, 0}, Var: []float64{1, 1, 1}, Weight: 1},
			},
		},
	}
	var buf bytes.Buffer
	if err := WritePDF(&buf, p); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	got, err := ReadPDF(&buf)
	if err != nil {
		t.Fatalf("ReadPDF: %v", err)
	}
	if got.Kind != LogF0 || !got.MSD || got.VectorSize != 1 || got.NumWindows != 3 {
		t.Fatalf("header = %+v", got)
	}
	if got.NumLeaves() != 3 {
		t.Fatalf("NumLeaves = %d, want 3", got.NumLeaves())
	}
	g := got.Leaves[0][0]
	if g.Mean[1] != 0.5 || g.Var[2] != 2 || g.Weight != 0.75 {
		t.Errorf("leaf = %+v", g)
	}
	if got.Leaves[1][1].Weight != 1 {
		t.Errorf("weight = %v", got.Leaves[1][1].Weight)
	}
}

func TestReadPDFErrors(t *testing.T) {
	valid := func() []byte {
		var buf bytes.Buffer
		err := WritePDF(&buf, &PDF{
			Kind: Spectrum, VectorSize: 2, NumWindows: 3,
			Leaves: [][]Gaussian{{{Mean: make([]float64, 6), Var: make([]float64, 6)}}},
		})
		if err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}

	if _, err := ReadPDF(strings.NewReader("XXXX")); err == nil {
		t.Error("short header should fail")
	}
	b := valid()
	copy(b, "NOPE")
	if _, err := ReadPDF(bytes.NewReader(b)); err == nil {
		t.Error("bad magic should fail")
	}
	b = valid()
	if _, err := ReadPDF(bytes.NewReader(b[:len(b)-4])); err == nil {
		t.Error("truncated leaf should fail")
	}
	b = append(valid(), 0)
	if _, err := ReadPDF(bytes.NewReader(b)); err == nil {
		t.Error("trailing data should fail")
	}
	b = valid()
	b[20] = 9 // numWindows
	if _, err := ReadPDF(bytes.NewReader(b)); !errors.Is(err, ErrDimension) {
		t.Errorf("expected ErrDimension, got %v", err)
	}
}

func TestWritePDFDimension(t *testing.T) {
	err := WritePDF(&bytes.Buffer{}, &PDF{
		Kind: Spectrum, VectorSize: 2, NumWindows: 3,
		Leaves: [][]Gaussian{{{Mean: make([]float64, 2), Var: make([]float64, 2)}}},
	})
	if !errors.Is(err, ErrDimension) {
		t.Errorf("expected ErrDimension, got %v", err)
	}
}

func TestGVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	g := &Gaussian{Mean: []float64{0.1, 0.2}, Var: []float64{0.5, 0.25}}
	if err := WriteGV(&buf, Spectrum, g); err != nil {
		t.Fatal(err)
	}
	got, err := ReadGV(&buf)
	if err != nil {
		t.Fatalf("ReadGV: %v", err)
	}
	if len(got.Mean) != 2 || got.Var[1] != 0.25 {
		t.Errorf("gv = %+v", got)
	}
}

func TestReadFilters(t *testing.T) {
	bands, err := ReadFilters(strings.NewReader("# bands\n0.1 0.2 0.3\n\n0.4 0.5 0.6\n"))
	if err != nil {
		t.Fatalf("ReadFilters: %v", err)
	}
	if len(bands) != 2 || len(bands[1]) != 3 || bands[1][2] != 0.6 {
		t.Errorf("bands = %v", bands)
	}
	if _, err := ReadFilters(strings.NewReader("1 2 3\n4 5\n")); !errors.Is(err, ErrDimension) {
		t.Errorf("ragged filters: %v", err)
	}
	if _, err := ReadFilters(strings.NewReader("")); !errors.Is(err, ErrDimension) {
		t.Errorf("empty filters: %v", err)
	}
}

func TestStreamKind(t *testing.T) {
	for k := Duration; k < NumStreamKinds; k++ {
		got, err := ParseStreamKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseStreamKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseStreamKind("bap"); err == nil {
		t.Error("expected error for unknown stream")
	}

	b, err := Magnitude.MarshalText()
	if err != nil || string(b) != "mag" {
		t.Errorf("MarshalText = %q, %v", b, err)
	}
	var k StreamKind
	if err := k.UnmarshalText([]byte("str")); err != nil || k != Strength {
		t.Errorf("UnmarshalText(str) = %v, %v", k, err)
	}
	if _, err := NumStreamKinds.MarshalText(); err == nil {
		t.Error("expected error for invalid kind")
	}
}

package model

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	pdfMagic   = "HTSP"
	pdfVersion = 1

	// maxPDFCount bounds header counts so a corrupt file cannot trigger a
	// huge allocation.
	maxPDFCount = 1 << 24
)

// PDF is the Gaussian table of one stream: Leaves[t][l] is leaf l of tree t.
type PDF struct {
	Kind       StreamKind   `msgpack:"kind"`
	VectorSize int          `msgpack:"vector_size"`
	NumWindows int          `msgpack:"num_windows"`
	MSD        bool         `msgpack:"msd"`
	Leaves     [][]Gaussian `msgpack:"leaves"`
}

// NumLeaves returns the total number of leaves over all trees.
func (p *PDF) NumLeaves() int {
	n := 0
	for _, t := range p.Leaves {
		n += len(t)
	}
	return n
}

type pdfHeader struct {
	Magic      [4]byte
	Version    uint32
	Kind       uint32
	NumTrees   uint32
	VectorSize uint32
	NumWindows uint32
	MSD        uint32
}

// ReadPDF decodes a little-endian PDF table.
//
// Layout: "HTSP", version, stream kind, tree count, vector size, window
// count, msd flag, then one leaf count per tree, then for every leaf
// float32 means, float32 variances and, for msd tables, a float32 voiced
// weight.
func ReadPDF(r io.Reader) (*PDF, error) {
	br := bufio.NewReader(r)
	var h pdfHeader
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("model: read pdf header: %w", err)
	}
	if string(h.Magic[:]) != pdfMagic {
		return nil, fmt.Errorf("model: bad pdf magic %q", h.Magic[:])
	}
	if h.Version != pdfVersion {
		return nil, fmt.Errorf("model: unsupported pdf version %d", h.Version)
	}
	if h.Kind >= uint32(NumStreamKinds) {
		return nil, fmt.Errorf("model: bad pdf stream kind %d", h.Kind)
	}
	if h.NumTrees == 0 || h.NumTrees > maxPDFCount || h.VectorSize == 0 || h.VectorSize > maxPDFCount ||
		h.NumWindows == 0 || h.NumWindows > 3 {
		return nil, fmt.Errorf("%w: pdf header trees=%d size=%d windows=%d", ErrDimension, h.NumTrees, h.VectorSize, h.NumWindows)
	}
	p := &PDF{
		Kind:       StreamKind(h.Kind),
		VectorSize: int(h.VectorSize),
		NumWindows: int(h.NumWindows),
		MSD:        h.MSD != 0,
		Leaves:     make([][]Gaussian, h.NumTrees),
	}
	counts := make([]uint32, h.NumTrees)
	if err := binary.Read(br, binary.LittleEndian, counts); err != nil {
		return nil, fmt.Errorf("model: read pdf leaf counts: %w", err)
	}
	n := p.VectorSize * p.NumWindows
	buf := make([]float32, 2*n)
	for t, c := range counts {
		if c == 0 || c > maxPDFCount {
			return nil, fmt.Errorf("%w: tree %d has %d leaves", ErrDimension, t, c)
		}
		leaves := make([]Gaussian, c)
		for l := range leaves {
			if err := binary.Read(br, binary.LittleEndian, buf); err != nil {
				return nil, fmt.Errorf("model: read pdf tree %d leaf %d: %w", t, l, err)
			}
			g := Gaussian{Mean: make([]float64, n), Var: make([]float64, n)}
			for i := range n {
				g.Mean[i] = float64(buf[i])
				g.Var[i] = float64(buf[n+i])
			}
			if p.MSD {
				var w float32
				if err := binary.Read(br, binary.LittleEndian, &w); err != nil {
					return nil, fmt.Errorf("model: read pdf tree %d leaf %d weight: %w", t, l, err)
				}
				g.Weight = float64(w)
			}
			leaves[l] = g
		}
		p.Leaves[t] = leaves
	}
	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		return nil, errors.New("model: trailing data after pdf table")
	}
	return p, nil
}

// WritePDF encodes p in the layout read by ReadPDF.
func WritePDF(w io.Writer, p *PDF) error {
	n := p.VectorSize * p.NumWindows
	bw := bufio.NewWriter(w)
	h := pdfHeader{
		Version:    pdfVersion,
		Kind:       uint32(p.Kind),
		NumTrees:   uint32(len(p.Leaves)),
		VectorSize: uint32(p.VectorSize),
		NumWindows: uint32(p.NumWindows),
	}
	copy(h.Magic[:], pdfMagic)
	if p.MSD {
		h.MSD = 1
	}
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return err
	}
	for _, t := range p.Leaves {
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(t))); err != nil {
			return err
		}
	}
	buf := make([]float32, 2*n)
	for ti, t := range p.Leaves {
		for li, g := range t {
			if len(g.Mean) != n || len(g.Var) != n {
				return fmt.Errorf("%w: tree %d leaf %d has %d/%d values, want %d", ErrDimension, ti, li, len(g.Mean), len(g.Var), n)
			}
			for i := range n {
				buf[i] = float32(g.Mean[i])
				buf[n+i] = float32(g.Var[i])
			}
			if err := binary.Write(bw, binary.LittleEndian, buf); err != nil {
				return err
			}
			if p.MSD {
				if err := binary.Write(bw, binary.LittleEndian, float32(g.Weight)); err != nil {
					return err
				}
			}
		}
	}
	return bw.Flush()
}

// ReadGV decodes a global variance file: a PDF table with one tree, one
// leaf and one window.
func ReadGV(r io.Reader) (*Gaussian, error) {
	p, err := ReadPDF(r)
	if err != nil {
		return nil, err
	}
	if len(p.Leaves) != 1 || len(p.Leaves[0]) != 1 || p.NumWindows != 1 {
		return nil, fmt.Errorf("%w: gv table must hold one leaf with one window", ErrDimension)
	}
	g := p.Leaves[0][0]
	for _, v := range g.Var {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: gv variance is NaN", ErrDimension)
		}
	}
	return &g, nil
}

// WriteGV encodes g as a global variance file for stream kind.
func WriteGV(w io.Writer, kind StreamKind, g *Gaussian) error {
	return WritePDF(w, &PDF{
		Kind:       kind,
		VectorSize: len(g.Mean),
		NumWindows: 1,
		Leaves:     [][]Gaussian{{{Mean: g.Mean, Var: g.Var}}},
	})
}

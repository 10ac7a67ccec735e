package codec

import (
	"bytes"
	"io"

	"github.com/zaf/g711"

	"github.com/haivivi/htsvoice/pkg/audio/pcm"
)

// G711Writer companding-encodes L16 chunks to μ-law or A-law bytes.
type G711Writer struct {
	w      io.Writer
	encode func([]byte) []byte
	buf    bytes.Buffer
}

// NewG711Writer returns a writer for law, which must be MuLaw or ALaw.
func NewG711Writer(w io.Writer, law Encoding) *G711Writer {
	enc := g711.EncodeUlaw
	if law == ALaw {
		enc = g711.EncodeAlaw
	}
	return &G711Writer{w: w, encode: enc}
}

func (g *G711Writer) Write(c pcm.Chunk) error {
	g.buf.Reset()
	if _, err := c.WriteTo(&g.buf); err != nil {
		return err
	}
	_, err := g.w.Write(g.encode(g.buf.Bytes()))
	return err
}

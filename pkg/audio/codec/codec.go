// Package codec encodes 16-bit PCM chunks into the container and companding
// formats synthesized speech is delivered in: raw L16, WAV and G.711 μ-law
// or A-law.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/haivivi/htsvoice/pkg/audio/pcm"
)

// Encoding names an output encoding.
type Encoding string

const (
	L16   Encoding = "l16"
	WAV   Encoding = "wav"
	MuLaw Encoding = "mulaw"
	ALaw  Encoding = "alaw"
)

// G711Rate is the sample rate G.711 is defined for.
const G711Rate = 8000

// ParseEncoding accepts the encoding names and a few common aliases.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(s) {
	case "l16", "pcm", "raw", "":
		return L16, nil
	case "wav", "wave":
		return WAV, nil
	case "mulaw", "ulaw", "pcmu":
		return MuLaw, nil
	case "alaw", "pcma":
		return ALaw, nil
	}
	return "", fmt.Errorf("codec: unknown encoding %q", s)
}

// EncodingForPath guesses the encoding from a file extension; unknown
// extensions mean raw L16.
func EncodingForPath(path string) Encoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return WAV
	case ".ul", ".ulaw", ".mulaw":
		return MuLaw
	case ".al", ".alaw":
		return ALaw
	}
	return L16
}

// SampleRate returns the rate the encoding requires, or 0 when any rate is
// accepted.
func (e Encoding) SampleRate() int {
	if e == MuLaw || e == ALaw {
		return G711Rate
	}
	return 0
}

// NewWriter returns a writer encoding chunks of format f into w. WAV needs
// w to be an io.WriteSeeker to patch the header on Close.
func NewWriter(e Encoding, w io.Writer, f pcm.Format) (pcm.WriteCloser, error) {
	switch e {
	case L16:
		return nopCloser{pcm.ChunkWriter(w)}, nil
	case WAV:
		ws, ok := w.(io.WriteSeeker)
		if !ok {
			return nil, fmt.Errorf("codec: wav output needs a seekable file")
		}
		return NewWAVWriter(ws, f), nil
	case MuLaw, ALaw:
		if f.SampleRate() != G711Rate {
			return nil, fmt.Errorf("codec: %s needs %d Hz input, got %d", e, G711Rate, f.SampleRate())
		}
		return nopCloser{NewG711Writer(w, e)}, nil
	}
	return nil, fmt.Errorf("codec: unknown encoding %q", e)
}

type nopCloser struct {
	pcm.Writer
}

func (nopCloser) Close() error { return nil }

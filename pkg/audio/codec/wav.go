package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/haivivi/htsvoice/pkg/audio/pcm"
)

// WAVWriter writes a 16-bit mono WAV file. The header sizes are filled in
// by Close.
type WAVWriter struct {
	enc *wav.Encoder
	f   pcm.Format
	buf bytes.Buffer
	ib  audio.IntBuffer
}

func NewWAVWriter(w io.WriteSeeker, f pcm.Format) *WAVWriter {
	return &WAVWriter{
		enc: wav.NewEncoder(w, f.SampleRate(), f.Depth(), f.Channels(), 1),
		f:   f,
		ib: audio.IntBuffer{
			Format:         &audio.Format{SampleRate: f.SampleRate(), NumChannels: f.Channels()},
			SourceBitDepth: f.Depth(),
		},
	}
}

func (w *WAVWriter) Write(c pcm.Chunk) error {
	w.buf.Reset()
	if _, err := c.WriteTo(&w.buf); err != nil {
		return err
	}
	data := w.buf.Bytes()
	w.ib.Data = w.ib.Data[:0]
	for i := 0; i+1 < len(data); i += 2 {
		w.ib.Data = append(w.ib.Data, int(int16(binary.LittleEndian.Uint16(data[i:]))))
	}
	return w.enc.Write(&w.ib)
}

func (w *WAVWriter) Close() error {
	return w.enc.Close()
}

// Package server exposes a voice registry over HTTP.
//
// Endpoints:
//
//	GET  /v1/voices       registered voice names
//	POST /v1/synthesize   one request, audio streamed in the response body
//	GET  /v1/stream       websocket; each text message is a request, answered
//	                      with binary audio messages and a final text event
//
// Requests are hts.Request documents in JSON. Audio is raw L16 at the
// voice rate unless the "encoding" and "rate" query parameters ask for
// something else.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/haivivi/htsvoice/pkg/audio/codec"
	"github.com/haivivi/htsvoice/pkg/hts"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDefaultVoice names the voice used by requests that name none.
func WithDefaultVoice(name string) Option {
	return func(s *Server) { s.defaultVoice = name }
}

// WithMaxMessageSize bounds request bodies and websocket messages.
func WithMaxMessageSize(n int64) Option {
	return func(s *Server) { s.maxMessage = n }
}

// Server serves synthesis requests from a registry.
type Server struct {
	reg          *hts.Registry
	logger       *slog.Logger
	defaultVoice string
	maxMessage   int64
	upgrader     websocket.Upgrader
}

// New returns a server over reg.
func New(reg *hts.Registry, opts ...Option) *Server {
	s := &Server{
		reg:        reg,
		logger:     slog.Default(),
		maxMessage: 1 << 20,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/voices", s.handleVoices)
	mux.HandleFunc("POST /v1/synthesize", s.handleSynthesize)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	return mux
}

// VoicesResponse is the body of GET /v1/voices.
type VoicesResponse struct {
	Voices []string `json:"voices"`
}

// ErrorResponse is the body of failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VoicesResponse{Voices: s.reg.Names()})
}

// audioParams reads the encoding and rate query parameters.
type audioParams struct {
	encoding codec.Encoding
	rate     int
}

func parseAudioParams(r *http.Request) (audioParams, error) {
	q := r.URL.Query()
	enc, err := codec.ParseEncoding(q.Get("encoding"))
	if err != nil {
		return audioParams{}, err
	}
	if enc == codec.WAV {
		return audioParams{}, errors.New("server: wav is not streamable, use l16")
	}
	p := audioParams{encoding: enc}
	if v := q.Get("rate"); v != "" {
		if p.rate, err = strconv.Atoi(v); err != nil || p.rate <= 0 {
			return audioParams{}, fmt.Errorf("server: invalid rate %q", v)
		}
	}
	return p, nil
}

func (p audioParams) contentType(rate int) string {
	switch p.encoding {
	case codec.MuLaw:
		return "audio/PCMU; rate=8000; channels=1"
	case codec.ALaw:
		return "audio/PCMA; rate=8000; channels=1"
	}
	return fmt.Sprintf("audio/L16; rate=%d; channels=1", rate)
}

func (s *Server) engine(req *hts.Request) (*hts.Engine, error) {
	name := req.Voice
	if name == "" {
		name = s.defaultVoice
	}
	return s.reg.Engine(name)
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	params, err := parseAudioParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{err.Error()})
		return
	}
	var req hts.Request
	if err := sonic.ConfigDefault.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxMessage)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{fmt.Sprintf("server: decode request: %v", err)})
		return
	}
	e, err := s.engine(&req)
	if err != nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{err.Error()})
		return
	}
	vectors, err := e.Vectors(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{err.Error()})
		return
	}
	sink, err := codec.NewSink(w, params.encoding, e.SampleRate(), params.rate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{err.Error()})
		return
	}

	w.Header().Set("Content-Type", params.contentType(sink.Format().SampleRate()))
	w.Header().Set("Trailer", "X-Utterance-Id, X-Synthesis-Error")
	w.WriteHeader(http.StatusOK)
	res, err := e.Synthesize(r.Context(), vectors, sink, req.Options()...)
	if err == nil {
		err = sink.Close()
	}
	if err != nil {
		// The status is already sent; report the failure as a trailer.
		s.logger.Error("server: synthesize", "voice", req.Voice, "err", err)
		w.Header().Set("X-Synthesis-Error", err.Error())
		return
	}
	w.Header().Set("X-Utterance-Id", res.UtteranceID)
}

// Event is a websocket text message sent by the server.
type Event struct {
	Type   string      `json:"type"`
	Result *hts.Result `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

const (
	EventDone  = "done"
	EventError = "error"
)

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	params, err := parseAudioParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{err.Error()})
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("server: upgrade", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.maxMessage)

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("server: stream closed", "err", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		ev := s.streamOne(r, conn, data, params)
		msg, err := sonic.Marshal(ev)
		if err != nil {
			s.logger.Error("server: encode event", "err", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (s *Server) streamOne(r *http.Request, conn *websocket.Conn, data []byte, params audioParams) Event {
	var req hts.Request
	if err := sonic.Unmarshal(data, &req); err != nil {
		return Event{Type: EventError, Error: fmt.Sprintf("server: decode request: %v", err)}
	}
	e, err := s.engine(&req)
	if err != nil {
		return Event{Type: EventError, Error: err.Error()}
	}
	vectors, err := e.Vectors(&req)
	if err != nil {
		return Event{Type: EventError, Error: err.Error()}
	}
	sink, err := codec.NewSink(messageWriter{conn}, params.encoding, e.SampleRate(), params.rate)
	if err != nil {
		return Event{Type: EventError, Error: err.Error()}
	}
	res, err := e.Synthesize(r.Context(), vectors, sink, req.Options()...)
	if err == nil {
		err = sink.Close()
	}
	if err != nil {
		return Event{Type: EventError, Error: err.Error()}
	}
	return Event{Type: EventDone, Result: res}
}

// messageWriter sends every write as one binary message.
type messageWriter struct {
	conn *websocket.Conn
}

func (m messageWriter) Write(p []byte) (int, error) {
	if err := m.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

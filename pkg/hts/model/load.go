package model

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/haivivi/htsvoice/pkg/hts/cart"
	"github.com/haivivi/htsvoice/pkg/hts/feature"
	"github.com/haivivi/htsvoice/pkg/storage"
)

// Option configures Load.
type Option func(*options)

type options struct {
	cache  *Cache
	logger *slog.Logger
}

// WithCache makes Load consult and fill a snapshot cache.
func WithCache(c *Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithLogger sets the logger used while loading.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Load reads the descriptor at descPath from store, then every model file it
// names (relative to the descriptor), and returns the validated voice.
//
// With a cache, the raw bytes of all files are hashed and a snapshot with
// the same digest is used instead of reparsing the trees.
func Load(ctx context.Context, store storage.FileStore, descPath string, opts ...Option) (*Voice, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	files := newFileSet(store)
	desc, err := files.read(ctx, descPath)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(desc)
	if err != nil {
		return nil, fmt.Errorf("model: %s: %w", descPath, err)
	}
	dir := path.Dir(descPath)
	rel := func(name string) string { return path.Join(dir, name) }

	// Read everything up front so the digest covers the exact bytes.
	names := slices.Sorted(maps.Keys(cfg.Streams))
	for _, name := range names {
		sf := cfg.Streams[name]
		for _, f := range []string{sf.Tree, sf.PDF, sf.GV} {
			if f == "" {
				continue
			}
			if _, err := files.read(ctx, rel(f)); err != nil {
				return nil, fmt.Errorf("model: stream %s: %w", name, err)
			}
		}
	}
	if cfg.MixedExcitation.Enabled && cfg.MixedExcitation.Filters != "" {
		if _, err := files.read(ctx, rel(cfg.MixedExcitation.Filters)); err != nil {
			return nil, fmt.Errorf("model: mixing filters: %w", err)
		}
	}
	digest := files.digest()
	log := o.logger.With("voice", cfg.Name, "digest", digest[:12])

	if o.cache != nil {
		v, err := o.cache.Get(ctx, digest)
		switch {
		case err == nil:
			log.Debug("model: voice loaded from cache")
			return v, nil
		case !isNotCached(err):
			log.Warn("model: ignoring unreadable snapshot", "error", err)
		}
	}

	def, err := feature.NewDefinition(cfg.Features)
	if err != nil {
		return nil, fmt.Errorf("model: %s: %w", descPath, err)
	}
	var streams []*Stream
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind, _ := ParseStreamKind(name)
		sf := cfg.Streams[name]
		s := &Stream{Kind: kind}
		if s.Trees, err = cart.Parse(bytes.NewReader(files.data[rel(sf.Tree)]), def); err != nil {
			return nil, fmt.Errorf("model: %s: %s: %w", name, sf.Tree, err)
		}
		if s.PDF, err = ReadPDF(bytes.NewReader(files.data[rel(sf.PDF)])); err != nil {
			return nil, fmt.Errorf("model: %s: %s: %w", name, sf.PDF, err)
		}
		if sf.GV != "" {
			if s.GV, err = ReadGV(bytes.NewReader(files.data[rel(sf.GV)])); err != nil {
				return nil, fmt.Errorf("model: %s: %s: %w", name, sf.GV, err)
			}
		}
		streams = append(streams, s)
		log.Debug("model: stream loaded", "stream", name, "trees", len(s.Trees.Trees), "leaves", s.PDF.NumLeaves())
	}
	var filters [][]float64
	if cfg.MixedExcitation.Enabled && cfg.MixedExcitation.Filters != "" {
		filters, err = ReadFilters(bytes.NewReader(files.data[rel(cfg.MixedExcitation.Filters)]))
		if err != nil {
			return nil, fmt.Errorf("model: %s: %w", cfg.MixedExcitation.Filters, err)
		}
	}

	v, err := NewVoice(*cfg, def, streams, filters)
	if err != nil {
		return nil, fmt.Errorf("model: %s: %w", descPath, err)
	}
	v.Digest = digest
	log.Info("model: voice loaded", "streams", len(v.Streams()), "states", cfg.NumStates)

	if o.cache != nil {
		if err := o.cache.Put(ctx, v); err != nil {
			log.Warn("model: snapshot not cached", "error", err)
		}
	}
	return v, nil
}

// fileSet reads files once and hashes them in read order.
type fileSet struct {
	store storage.FileStore
	data  map[string][]byte
	order []string
}

func newFileSet(store storage.FileStore) *fileSet {
	return &fileSet{store: store, data: make(map[string][]byte)}
}

func (fs *fileSet) read(ctx context.Context, p string) ([]byte, error) {
	if b, ok := fs.data[p]; ok {
		return b, nil
	}
	b, err := storage.ReadFile(ctx, fs.store, p)
	if err != nil {
		return nil, err
	}
	fs.data[p] = b
	fs.order = append(fs.order, p)
	return b, nil
}

func (fs *fileSet) digest() string {
	h := sha256.New()
	for _, p := range fs.order {
		fmt.Fprintf(h, "%s\x00%d\x00", path.Base(p), len(fs.data[p]))
		h.Write(fs.data[p])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ReadFilters parses a mixing filter file: one band per line, whitespace
// separated coefficients, every band of the same length.
func ReadFilters(r io.Reader) ([][]float64, error) {
	var bands [][]float64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var band []float64
		for _, tok := range strings.Fields(line) {
			x, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			band = append(band, x)
		}
		if len(bands) > 0 && len(band) != len(bands[0]) {
			return nil, fmt.Errorf("%w: line %d: band has %d taps, want %d", ErrDimension, lineNo, len(band), len(bands[0]))
		}
		bands = append(bands, band)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no mixing filters", ErrDimension)
	}
	return bands, nil
}

package hts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sync"

	"github.com/haivivi/htsvoice/pkg/hts/model"
	"github.com/haivivi/htsvoice/pkg/storage"
)

// ErrVoiceNotFound is returned when no registered voice matches a name.
var ErrVoiceNotFound = errors.New("hts: voice not found")

// Registry maps voice names to engines. Names are usually "locale/name";
// patterns such as "en-US/#" register a locale default. A Registry is safe
// for concurrent use.
type Registry struct {
	cache  *model.Cache
	logger *slog.Logger

	mu     sync.RWMutex
	routes route
}

// NewRegistry returns an empty registry. Voices loaded through it use cache
// when it is not nil. A nil logger means slog.Default().
func NewRegistry(cache *model.Cache, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{cache: cache, logger: logger}
}

// VoiceName returns the registry name of v: "locale/name", or the bare name
// for voices without a locale.
func VoiceName(v *model.Voice) string {
	if v.Config.Locale == "" {
		return v.Config.Name
	}
	return v.Config.Locale + "/" + v.Config.Name
}

// Register binds pattern to e, replacing any previous engine.
func (r *Registry) Register(pattern string, e *Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.routes.node(pattern, true)
	if err != nil {
		return err
	}
	if n.engine != nil {
		r.logger.Warn("hts: voice already registered", "name", pattern)
	}
	n.engine = e
	return nil
}

// Remove unbinds pattern and reports whether it was bound.
func (r *Registry) Remove(pattern string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.routes.node(pattern, false)
	if err != nil || n == nil || n.engine == nil {
		return false
	}
	n.engine = nil
	return true
}

// Engine returns the engine that best matches name.
func (r *Registry) Engine(name string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e := r.routes.match(name); e != nil {
		return e, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrVoiceNotFound, name)
}

// Names returns the registered patterns in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	r.routes.walk(nil, func(pattern string, _ *Engine) {
		names = append(names, pattern)
	})
	slices.Sort(names)
	return names
}

// Load reads the voice described by descPath from store, registers it under
// its VoiceName and returns its engine.
func (r *Registry) Load(ctx context.Context, store storage.FileStore, descPath string) (*Engine, error) {
	opts := []model.Option{model.WithLogger(r.logger)}
	if r.cache != nil {
		opts = append(opts, model.WithCache(r.cache))
	}
	v, err := model.Load(ctx, store, descPath, opts...)
	if err != nil {
		return nil, err
	}
	e, err := NewEngine(v, r.logger)
	if err != nil {
		return nil, err
	}
	if err := r.Register(VoiceName(v), e); err != nil {
		return nil, err
	}
	return e, nil
}

// DescriptorName is the file name LoadAll looks for.
const DescriptorName = "voice.yaml"

// LoadAll loads every voice descriptor under prefix in store. A voice that
// fails to load is logged and skipped; the error of the first failure is
// returned together with the engines that did load.
func (r *Registry) LoadAll(ctx context.Context, store storage.FileStore, prefix string) ([]*Engine, error) {
	files, err := store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("hts: discover voices: %w", err)
	}
	var (
		engines []*Engine
		first   error
	)
	for _, f := range files {
		if path.Base(f) != DescriptorName {
			continue
		}
		e, err := r.Load(ctx, store, f)
		if err != nil {
			if ctx.Err() != nil {
				return engines, ctx.Err()
			}
			r.logger.Error("hts: load voice", "path", f, "err", err)
			if first == nil {
				first = fmt.Errorf("hts: %s: %w", f, err)
			}
			continue
		}
		r.logger.Info("hts: voice loaded", "name", VoiceName(e.Voice()), "path", f)
		engines = append(engines, e)
	}
	return engines, first
}

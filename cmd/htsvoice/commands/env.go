package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/haivivi/htsvoice/pkg/cli"
	"github.com/haivivi/htsvoice/pkg/hts"
	"github.com/haivivi/htsvoice/pkg/hts/model"
	"github.com/haivivi/htsvoice/pkg/kv"
	"github.com/haivivi/htsvoice/pkg/storage"
)

// env is everything a command needs to reach the voices of a context.
type env struct {
	ctx      *cli.Context
	store    storage.FileStore
	db       kv.Store
	cache    *model.Cache
	registry *hts.Registry
	logger   *slog.Logger
}

// openEnv resolves the context, opens its voice store and, unless caching
// is off, its snapshot cache.
func openEnv() (*env, error) {
	ctx, err := getContext()
	if err != nil {
		return nil, err
	}
	store, err := ctx.Store()
	if err != nil {
		return nil, fmt.Errorf("open voices %s: %w", ctx.Voices, err)
	}
	e := &env{ctx: ctx, store: store, logger: slog.Default()}
	if err := e.openCache(); err != nil {
		return nil, err
	}
	e.registry = hts.NewRegistry(e.cache, e.logger)
	return e, nil
}

// openCacheOnly resolves the context and opens its snapshot cache without
// touching the voice store.
func openCacheOnly() (*env, error) {
	ctx, err := getContext()
	if err != nil {
		return nil, err
	}
	e := &env{ctx: ctx, logger: slog.Default()}
	if err := e.openCache(); err != nil {
		return nil, err
	}
	if e.cache == nil {
		return nil, fmt.Errorf("context %q has caching disabled", ctx.Name)
	}
	return e, nil
}

func (e *env) openCache() error {
	paths, err := cli.NewPaths(appName)
	if err != nil {
		return err
	}
	dir := e.ctx.CacheDir(paths)
	if dir == "" {
		return nil
	}
	db, err := kv.NewBadger(kv.BadgerOptions{Dir: dir, Logger: e.logger})
	if err != nil {
		return err
	}
	e.db = db
	e.cache = model.NewCache(db)
	e.logger.Debug("snapshot cache opened", "dir", dir)
	return nil
}

func (e *env) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// loadVoices loads every voice of the store. Voices that fail are reported
// and skipped; it fails only when none loaded.
func (e *env) loadVoices(ctx context.Context) error {
	engines, err := e.registry.LoadAll(ctx, e.store, "")
	if err != nil {
		if len(engines) == 0 || ctx.Err() != nil {
			return err
		}
		cli.PrintWarning("%v", err)
	}
	if len(engines) == 0 {
		return fmt.Errorf("no voices found in %s", e.ctx.Voices)
	}
	return nil
}

// engine loads the voices and picks one: the given name, the context
// default, or the only voice there is.
func (e *env) engine(ctx context.Context, name string) (*hts.Engine, error) {
	if err := e.loadVoices(ctx); err != nil {
		return nil, err
	}
	if name == "" {
		name = e.ctx.DefaultVoice
	}
	if name == "" {
		names := e.registry.Names()
		if len(names) != 1 {
			return nil, errors.New("several voices are available; name one with --voice")
		}
		name = names[0]
	}
	return e.registry.Engine(name)
}

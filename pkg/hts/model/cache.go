package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/htsvoice/pkg/hts/feature"
	"github.com/haivivi/htsvoice/pkg/kv"
)

const snapshotVersion = 1

// Cache stores compiled voices as msgpack snapshots keyed by the digest of
// their source files.
//
// Key layout:
//
//	htsvoice:snap:{digest}   -> snapshot
//	htsvoice:index:{digest}  -> CacheEntry
type Cache struct {
	store kv.Store
}

// NewCache wraps store. The caller keeps ownership of store.
func NewCache(store kv.Store) *Cache {
	return &Cache{store: store}
}

// CacheEntry describes one cached snapshot.
type CacheEntry struct {
	Digest  string    `msgpack:"digest" json:"digest" yaml:"digest"`
	Name    string    `msgpack:"name" json:"name" yaml:"name"`
	Locale  string    `msgpack:"locale" json:"locale,omitempty" yaml:"locale,omitempty"`
	Size    int       `msgpack:"size" json:"size" yaml:"size"`
	Created time.Time `msgpack:"created" json:"created" yaml:"created"`
}

type snapshot struct {
	Version    int         `msgpack:"v"`
	Config     Config      `msgpack:"config"`
	Streams    []*Stream   `msgpack:"streams"`
	MixFilters [][]float64 `msgpack:"mix_filters"`
}

func snapKey(digest string) kv.Key  { return kv.Key{"htsvoice", "snap", digest} }
func indexKey(digest string) kv.Key { return kv.Key{"htsvoice", "index", digest} }

func isNotCached(err error) bool { return errors.Is(err, kv.ErrNotFound) }

// Put stores v under its digest.
func (c *Cache) Put(ctx context.Context, v *Voice) error {
	if v.Digest == "" {
		return errors.New("model: cache: voice has no digest")
	}
	data, err := msgpack.Marshal(&snapshot{
		Version:    snapshotVersion,
		Config:     v.Config,
		Streams:    v.Streams(),
		MixFilters: v.MixFilters,
	})
	if err != nil {
		return fmt.Errorf("model: cache: encode: %w", err)
	}
	entry, err := msgpack.Marshal(&CacheEntry{
		Digest:  v.Digest,
		Name:    v.Config.Name,
		Locale:  v.Config.Locale,
		Size:    len(data),
		Created: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("model: cache: encode entry: %w", err)
	}
	return c.store.BatchSet(ctx, []kv.Entry{
		{Key: snapKey(v.Digest), Value: data},
		{Key: indexKey(v.Digest), Value: entry},
	})
}

// Get decodes and revalidates the snapshot stored under digest. It returns
// an error wrapping kv.ErrNotFound on a miss.
func (c *Cache) Get(ctx context.Context, digest string) (*Voice, error) {
	data, err := c.store.Get(ctx, snapKey(digest))
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("model: cache: decode: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("model: cache: snapshot version %d: %w", snap.Version, kv.ErrNotFound)
	}
	def, err := feature.NewDefinition(snap.Config.Features)
	if err != nil {
		return nil, fmt.Errorf("model: cache: %w", err)
	}
	v, err := NewVoice(snap.Config, def, snap.Streams, snap.MixFilters)
	if err != nil {
		return nil, fmt.Errorf("model: cache: %w", err)
	}
	v.Digest = digest
	return v, nil
}

// List returns all cached entries in digest order.
func (c *Cache) List(ctx context.Context) ([]CacheEntry, error) {
	var out []CacheEntry
	for e, err := range c.store.List(ctx, kv.Key{"htsvoice", "index"}) {
		if err != nil {
			return nil, err
		}
		var ce CacheEntry
		if err := msgpack.Unmarshal(e.Value, &ce); err != nil {
			return nil, fmt.Errorf("model: cache: decode entry %s: %w", e.Key, err)
		}
		out = append(out, ce)
	}
	return out, nil
}

// Remove deletes the snapshot stored under digest.
func (c *Cache) Remove(ctx context.Context, digest string) error {
	return c.store.BatchDelete(ctx, []kv.Key{snapKey(digest), indexKey(digest)})
}

// Purge deletes every snapshot and returns how many were removed.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return 0, err
	}
	keys := make([]kv.Key, 0, 2*len(entries))
	for _, e := range entries {
		keys = append(keys, snapKey(e.Digest), indexKey(e.Digest))
	}
	if err := c.store.BatchDelete(ctx, keys); err != nil {
		return 0, err
	}
	return len(entries), nil
}

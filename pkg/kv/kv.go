// Package kv is the byte store behind the compiled voice cache. Keys are
// paths of string segments joined with ':'; List scans one path subtree.
//
// Badger keeps snapshots on disk between runs. Memory serves tests and
// processes that only want to share a parse between registries.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("kv: not found")

const sep = ':'

// Key is a path of segments. Segments must not contain ':'.
type Key []string

func (k Key) String() string {
	return strings.Join(k, string(sep))
}

func (k Key) bytes() []byte {
	return []byte(k.String())
}

// scan returns the byte prefix selecting the subtree under k. The trailing
// separator keeps "a:b" from matching "a:bc".
func (k Key) scan() []byte {
	if len(k) == 0 {
		return nil
	}
	return append(k.bytes(), sep)
}

func parseKey(b []byte) Key {
	return Key(strings.Split(string(b), string(sep)))
}

// Entry is one key-value pair.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is safe for concurrent use.
type Store interface {
	// Get returns a copy of the value, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	Set(ctx context.Context, key Key, value []byte) error

	// List yields the entries under prefix in key order.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet writes all entries or none.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete removes keys. Missing keys are ignored.
	BatchDelete(ctx context.Context, keys []Key) error

	Close() error
}

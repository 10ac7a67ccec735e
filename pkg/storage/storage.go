// Package storage abstracts where voice files live. A voice is a descriptor
// (voice.yaml) plus the tree, PDF and filter files it names, all addressed
// by forward-slash paths relative to the store root.
//
// Two backends are provided: Local for a directory on disk and S3Store for
// Amazon S3 or a compatible object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// FileStore is the file access voices are loaded through.
//
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file. Missing files yield an error wrapping
	// os.ErrNotExist. The caller closes the reader.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or truncates the named file. Data is committed when
	// the writer is closed.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the sorted paths of all files under prefix. An empty
	// prefix lists the whole store.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReadFile reads the whole named file.
func ReadFile(ctx context.Context, s FileStore, path string) ([]byte, error) {
	r, err := s.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile replaces the named file with data.
func WriteFile(ctx context.Context, s FileStore, path string, data []byte) error {
	w, err := s.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return w.Close()
}

// Open returns the store named by source: "s3://bucket/prefix" selects an
// S3Store built from cfg, anything else is a local directory.
func Open(source string, cfg S3Config) (FileStore, error) {
	rest, ok := strings.CutPrefix(source, "s3://")
	if !ok {
		return NewLocal(source)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, fmt.Errorf("storage: %q names no bucket", source)
	}
	cfg.Bucket = bucket
	cfg.Prefix = strings.Trim(prefix, "/")
	return NewS3FromConfig(cfg), nil
}

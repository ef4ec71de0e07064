// Package storage reads and writes model artifacts on local disk or in an
// S3-compatible object store behind a single FileStore interface.
//
// An artifact location is either a filesystem path or an s3://bucket/key
// URL; Open resolves it to a store and a path within that store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrTooLarge is returned by ReadAll when an object exceeds the size limit.
var ErrTooLarge = errors.New("storage: object too large")

// DefaultMaxSize caps ReadAll when no limit is given.
const DefaultMaxSize = 256 << 20

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading. The caller must close it.
	// A missing file yields an error wrapping os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing, truncating any existing
	// content. The caller must close the writer to commit the data.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// ReadAll reads a whole file, failing with ErrTooLarge past maxSize bytes.
// maxSize <= 0 means DefaultMaxSize.
func ReadAll(ctx context.Context, fs FileStore, path string, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	r, err := fs.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, path, maxSize)
	}
	return data, nil
}

// WriteAll replaces the named file with data.
func WriteAll(ctx context.Context, fs FileStore, path string, data []byte) error {
	w, err := fs.Write(ctx, path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return w.Close()
}

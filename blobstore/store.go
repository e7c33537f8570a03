package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing a snapshot tree in a
// remote or local store. Names are slash-separated paths relative to
// the store root, e.g. "enwiki/snapshots/CURRENT".
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Create opens a blob for writing. The blob becomes visible to
	// readers when Close returns; a blob that is never closed leaves
	// no trace.
	Create(ctx context.Context, name string) (WritableBlob, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a blob.
type Blob interface {
	// ReadAt reads len(p) bytes starting at off, like io.ReaderAt
	// but honoring ctx cancellation on remote stores.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// ReadRange returns a reader over length bytes starting at off.
	// length < 0 reads to the end of the blob.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	io.Closer
}

// WritableBlob is a write handle returned by Create.
type WritableBlob interface {
	io.Writer

	// Sync flushes buffered data to the backing store where the
	// implementation supports it.
	Sync() error

	io.Closer
}

// Put writes data as a single blob, replacing any previous content.
func Put(ctx context.Context, store BlobStore, name string, data []byte) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	if err := w.Sync(); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadAll reads an entire blob into memory.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	r, err := b.ReadRange(ctx, 0, -1)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}

	return data, nil
}

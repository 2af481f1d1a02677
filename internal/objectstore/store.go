// SPDX-License-Identifier: MIT

// Package objectstore provides read access to model descriptors and
// weights blobs. The spec treats the real object store as an external
// collaborator; this package's job is the fetch contract, not the backing
// transport.
package objectstore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("object store: key not found")

// Store reads immutable blobs by path-like key. It never mutates
// what it serves; writes happen out of band (e.g. a model publishing
// pipeline), outside this package's scope.
type Store interface {
	// Get opens the object at key for reading. Callers must Close the
	// returned ReadCloser. Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

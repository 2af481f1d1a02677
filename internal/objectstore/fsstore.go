// SPDX-License-Identifier: MIT

package objectstore

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/signfleet/fleetd/internal/fsutil"
)

// FSStore is a local-filesystem-backed Store, confined to a root directory
// via fsutil's symlink-safe path resolution. It stands in for whatever
// object store backs production (S3-compatible or otherwise); this
// implementation's only job is to keep model-info/weights keys from
// escaping the configured root.
type FSStore struct {
	root string
}

// NewFSStore creates an FSStore rooted at root. The root is created if it
// does not already exist.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, err
	}
	return &FSStore{root: root}, nil
}

// Get opens the object at key, which must be a relative path under the
// store's root (e.g. "model-info/greeting-v1.json" or
// "models/greeting-v1/weights.bin").
func (s *FSStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := fsutil.ConfineRelPath(s.root, key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path) // #nosec G304 -- path confined to s.root by fsutil.ConfineRelPath
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

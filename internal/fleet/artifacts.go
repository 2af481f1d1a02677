// SPDX-License-Identifier: MIT

package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/signfleet/fleetd/internal/cache"
	"github.com/signfleet/fleetd/internal/fsutil"
	"github.com/signfleet/fleetd/internal/metrics"
	"github.com/signfleet/fleetd/internal/objectstore"
	"golang.org/x/sync/singleflight"
)

// descriptorCacheTTL bounds how long a resolved descriptor is reused before
// the object store is consulted again. Short enough that an operator
// editing model-info sees the change within one worker restart cycle.
const descriptorCacheTTL = 30 * time.Second

// ArtifactResolver resolves a model-id to its descriptor and a local,
// cached path to its weights file. It never mutates the object store; the
// local cache is written once per key using a temp-file-then-rename so
// concurrent resolvers never observe a partial write.
type ArtifactResolver struct {
	store       objectstore.Store
	cacheDir    string
	descriptors cache.Cache
	sfg         singleflight.Group
}

// NewArtifactResolver creates a resolver backed by store, caching fetched
// weights under cacheDir and descriptors in an in-process memory cache.
func NewArtifactResolver(store objectstore.Store, cacheDir string) (*ArtifactResolver, error) {
	return NewArtifactResolverWithCache(store, cacheDir, cache.NewMemoryCache(time.Minute))
}

// NewArtifactResolverWithCache is like NewArtifactResolver but lets the
// caller supply the descriptor cache, e.g. a Redis-backed cache.Cache
// shared across several fleetd replicas.
func NewArtifactResolverWithCache(store objectstore.Store, cacheDir string, descriptors cache.Cache) (*ArtifactResolver, error) {
	if err := os.MkdirAll(cacheDir, 0750); err != nil {
		return nil, fmt.Errorf("create artifact cache dir: %w", err)
	}
	return &ArtifactResolver{
		store:       store,
		cacheDir:    cacheDir,
		descriptors: descriptors,
	}, nil
}

// canonicalModelInfoKey accepts both a bare model name and a fully
// qualified "model-info/<name>.json" key, normalizing to the latter. This
// mirrors a convenience the original Python resolver had that the
// distilled spec dropped; it costs nothing and two identical strings still
// resolve to the same descriptor either way.
func canonicalModelInfoKey(modelID string) string {
	if strings.HasPrefix(modelID, "model-info/") {
		return modelID
	}
	return "model-info/" + modelID + ".json"
}

// Descriptor fetches and decodes the model descriptor for modelID.
// Returns ErrModelNotFound if the object store has no such key. Results are
// cached briefly so a burst of EnsureWorker calls across sibling chapters
// doesn't hammer the object store for the same key.
func (r *ArtifactResolver) Descriptor(ctx context.Context, modelID string) (ModelDescriptor, error) {
	key := canonicalModelInfoKey(modelID)

	if v, ok := r.descriptors.Get(key); ok {
		if desc, ok := v.(ModelDescriptor); ok {
			return desc, nil
		}
		// A shared cache such as cache.RedisCache hands back the JSON-decoded
		// form of the stored value; decode that back into a descriptor.
		if raw, err := json.Marshal(v); err == nil {
			var desc ModelDescriptor
			if json.Unmarshal(raw, &desc) == nil {
				return desc, nil
			}
		}
	}

	rc, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return ModelDescriptor{}, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
		}
		return ModelDescriptor{}, fmt.Errorf("fetch descriptor %s: %w", key, err)
	}
	defer rc.Close()

	var desc ModelDescriptor
	if err := json.NewDecoder(rc).Decode(&desc); err != nil {
		return ModelDescriptor{}, fmt.Errorf("decode descriptor %s: %w", key, err)
	}
	if desc.ModelID == "" {
		desc.ModelID = modelID
	}

	r.descriptors.Set(key, desc, descriptorCacheTTL)
	return desc, nil
}

// Weights resolves desc's weights to a local file path, fetching and
// caching it on first use. Concurrent callers for the same weights key are
// deduplicated: only one fetch happens, the rest observe its result.
func (r *ArtifactResolver) Weights(ctx context.Context, desc ModelDescriptor) (string, error) {
	cachePath, err := fsutil.ConfineRelPath(r.cacheDir, filepath.Clean(desc.WeightsKey))
	if err != nil {
		return "", fmt.Errorf("%w: invalid weights key %s: %v", ErrArtifactUnavailable, desc.WeightsKey, err)
	}

	if err := fsutil.IsRegularFile(cachePath); err == nil {
		metrics.IncArtifactResolve("cache_hit")
		return cachePath, nil
	}

	v, err, _ := r.sfg.Do(cachePath, func() (interface{}, error) {
		path, ferr := r.fetchToCache(ctx, desc.WeightsKey, cachePath)
		return path, ferr
	})
	if err != nil {
		metrics.IncArtifactResolve("unavailable")
		return "", fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	metrics.IncArtifactResolve("fetched")
	return v.(string), nil
}

func (r *ArtifactResolver) fetchToCache(ctx context.Context, key, cachePath string) (string, error) {
	rc, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrModelNotFound, key)
		}
		return "", err
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(cachePath), 0750); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	t, err := renameio.NewPendingFile(cachePath)
	if err != nil {
		return "", fmt.Errorf("open temp cache file: %w", err)
	}
	defer func() { _ = t.Cleanup() }()

	if _, err := io.Copy(t, rc); err != nil {
		return "", fmt.Errorf("write cache file: %w", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("commit cache file: %w", err)
	}

	return cachePath, nil
}

// SPDX-License-Identifier: MIT

package fleet

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/signfleet/fleetd/internal/objectstore"
	"github.com/stretchr/testify/require"
)

func writeFSStore(t *testing.T, files map[string]string) objectstore.Store {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0750))
		require.NoError(t, os.WriteFile(full, []byte(content), 0600))
	}
	store, err := objectstore.NewFSStore(root)
	require.NoError(t, err)
	return store
}

func TestArtifactResolver_DescriptorNotFound(t *testing.T) {
	store := writeFSStore(t, nil)
	resolver, err := NewArtifactResolver(store, t.TempDir())
	require.NoError(t, err)

	_, err = resolver.Descriptor(context.Background(), "missing-model")
	require.True(t, errors.Is(err, ErrModelNotFound))
}

func TestArtifactResolver_DescriptorAcceptsBareAndQualifiedKeys(t *testing.T) {
	store := writeFSStore(t, map[string]string{
		"model-info/greeting-v1.json": `{"model_id":"greeting-v1","weights_key":"models/greeting-v1/weights.bin","labels":["hello","bye"],"sequence_length":48,"smoothing_window":5,"feature_dim":675}`,
	})
	resolver, err := NewArtifactResolver(store, t.TempDir())
	require.NoError(t, err)

	byBareName, err := resolver.Descriptor(context.Background(), "greeting-v1")
	require.NoError(t, err)
	require.Equal(t, "greeting-v1", byBareName.ModelID)
	require.Equal(t, []string{"hello", "bye"}, byBareName.Labels)

	byQualifiedKey, err := resolver.Descriptor(context.Background(), "model-info/greeting-v1.json")
	require.NoError(t, err)
	require.Equal(t, byBareName, byQualifiedKey)
}

func TestArtifactResolver_WeightsCachesOnce(t *testing.T) {
	store := writeFSStore(t, map[string]string{
		"models/greeting-v1/weights.bin": "fake-weights-bytes",
	})
	resolver, err := NewArtifactResolver(store, t.TempDir())
	require.NoError(t, err)

	desc := ModelDescriptor{ModelID: "greeting-v1", WeightsKey: "models/greeting-v1/weights.bin"}

	path1, err := resolver.Weights(context.Background(), desc)
	require.NoError(t, err)
	data, err := os.ReadFile(path1)
	require.NoError(t, err)
	require.Equal(t, "fake-weights-bytes", string(data))

	path2, err := resolver.Weights(context.Background(), desc)
	require.NoError(t, err)
	require.Equal(t, path1, path2)
}

func TestArtifactResolver_WeightsConcurrentCallersDedup(t *testing.T) {
	store := writeFSStore(t, map[string]string{
		"models/greeting-v1/weights.bin": "fake-weights-bytes",
	})
	resolver, err := NewArtifactResolver(store, t.TempDir())
	require.NoError(t, err)

	desc := ModelDescriptor{ModelID: "greeting-v1", WeightsKey: "models/greeting-v1/weights.bin"}

	const n = 8
	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = resolver.Weights(context.Background(), desc)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, paths[0], paths[i])
	}
}

func TestArtifactResolver_WeightsMissingReturnsArtifactUnavailable(t *testing.T) {
	store := writeFSStore(t, nil)
	resolver, err := NewArtifactResolver(store, t.TempDir())
	require.NoError(t, err)

	desc := ModelDescriptor{ModelID: "greeting-v1", WeightsKey: "models/greeting-v1/weights.bin"}
	_, err = resolver.Weights(context.Background(), desc)
	require.True(t, errors.Is(err, ErrArtifactUnavailable))
}

// SPDX-License-Identifier: MIT

//go:build linux || darwin

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/signfleet/fleetd/internal/content"
	"github.com/signfleet/fleetd/internal/fleet"
	"github.com/signfleet/fleetd/internal/health"
	"github.com/signfleet/fleetd/internal/objectstore"
)

type fakeStore struct {
	chapters map[string]content.Chapter
}

func (f *fakeStore) Chapter(_ context.Context, id string) (content.Chapter, error) {
	c, ok := f.chapters[id]
	if !ok {
		return content.Chapter{}, content.ErrChapterNotFound
	}
	return c, nil
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }

func writeFakeWorkerScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-worker.sh")
	script := "#!/bin/sh\n" +
		"echo READY $4\n" +
		"trap 'exit 0' TERM\n" +
		"while true; do sleep 0.05; done\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0750))
	return path
}

func newTestRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()
	root := t.TempDir()
	store, err := objectstore.NewFSStore(root)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "model-info"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "model-info", "greeting-v1.json"),
		[]byte(`{"model_id":"greeting-v1","weights_key":"models/greeting-v1/weights.bin","labels":["hello","bye"],"sequence_length":48,"smoothing_window":5,"feature_dim":675}`), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "models", "greeting-v1"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "models", "greeting-v1", "weights.bin"), []byte("weights"), 0600))

	resolver, err := fleet.NewArtifactResolver(store, t.TempDir())
	require.NoError(t, err)

	allocator := fleet.NewFreeListPortAllocator(21100, 21199)
	ctrl := fleet.NewController(allocator, resolver, fleet.Options{
		WorkerBinPath:       writeFakeWorkerScript(t),
		WorkerSpawnTimeout:  2 * time.Second,
		WorkerShutdownGrace: 500 * time.Millisecond,
	})

	contentStore := &fakeStore{chapters: map[string]content.Chapter{
		"greetings": {
			ChapterID: "greetings",
			Lessons:   []content.Lesson{{LessonID: "l1", ModelID: "greeting-v1"}},
		},
	}}
	svc := fleet.NewService(contentStore, ctrl, "ws", "localhost")

	healthMgr := health.NewManager("test")
	router := NewRouter(svc, healthMgr)
	return router, func() { ctrl.Shutdown(context.Background()) }
}

func TestHandleDeploy_UnknownChapterReturns404(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/v1/chapters/missing/deploy", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleDeploy_KnownChapterStartsWorkerAndReturnsEndpoints(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/v1/chapters/greetings/deploy", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result fleet.DeployResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Len(t, result.Endpoints, 1)
	require.Contains(t, result.LessonEndpoints, "l1")
}

func TestHandleStatus_UnknownModelReturns404(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/v1/models/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStopAndStatus(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	deployReq := httptest.NewRequest(http.MethodPost, "/v1/chapters/greetings/deploy", nil)
	deployRec := httptest.NewRecorder()
	router.ServeHTTP(deployRec, deployReq)
	require.Equal(t, http.StatusOK, deployRec.Code)

	statusReq := httptest.NewRequest(http.MethodGet, "/v1/models/greeting-v1", nil)
	statusRec := httptest.NewRecorder()
	router.ServeHTTP(statusRec, statusReq)
	require.Equal(t, http.StatusOK, statusRec.Code)

	stopReq := httptest.NewRequest(http.MethodPost, "/v1/models/greeting-v1/stop", nil)
	stopRec := httptest.NewRecorder()
	router.ServeHTTP(stopRec, stopReq)
	require.Equal(t, http.StatusOK, stopRec.Code)

	statusReq2 := httptest.NewRequest(http.MethodGet, "/v1/models/greeting-v1", nil)
	statusRec2 := httptest.NewRecorder()
	router.ServeHTTP(statusRec2, statusReq2)
	require.Equal(t, http.StatusNotFound, statusRec2.Code)
}

func TestHandleListWorkers(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	deployReq := httptest.NewRequest(http.MethodPost, "/v1/chapters/greetings/deploy", nil)
	deployRec := httptest.NewRecorder()
	router.ServeHTTP(deployRec, deployReq)
	require.Equal(t, http.StatusOK, deployRec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/workers", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	workers, ok := body["workers"].([]interface{})
	require.True(t, ok)
	require.Len(t, workers, 1)
}

func TestHealthzServesOK(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

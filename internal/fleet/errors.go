// SPDX-License-Identifier: MIT

package fleet

import "errors"

var (
	// ErrModelNotFound is returned when no descriptor exists for a model-id.
	ErrModelNotFound = errors.New("model not found")

	// ErrArtifactUnavailable is returned when the artifact resolver cannot
	// fetch a model's weights (missing key, object store error, or
	// corrupted cache write).
	ErrArtifactUnavailable = errors.New("artifact unavailable")

	// ErrPortPoolExhausted is returned when the allocator has no free port
	// left in its configured range.
	ErrPortPoolExhausted = errors.New("port pool exhausted")

	// ErrWorkerSpawnFailed is returned when the worker process fails to
	// start or exits before signalling readiness.
	ErrWorkerSpawnFailed = errors.New("worker spawn failed")

	// ErrWorkerSpawnTimeout is returned when a worker does not signal
	// readiness within the configured deadline.
	ErrWorkerSpawnTimeout = errors.New("worker spawn timed out waiting for readiness")

	// ErrShuttingDown is returned by ensure_worker when a stop() for the
	// same model-id is already in flight (invariant: stop takes precedence
	// over concurrent ensure_worker).
	ErrShuttingDown = errors.New("model is shutting down")

	// ErrWorkerNotFound is returned by stop()/status() for an unknown model-id.
	ErrWorkerNotFound = errors.New("worker not found")
)

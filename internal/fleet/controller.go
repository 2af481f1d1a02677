// SPDX-License-Identifier: MIT

package fleet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/signfleet/fleetd/internal/log"
	"github.com/signfleet/fleetd/internal/metrics"
	"github.com/signfleet/fleetd/internal/procgroup"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Options configures a Controller.
type Options struct {
	WorkerBinPath       string
	WorkerSpawnTimeout  time.Duration
	WorkerShutdownGrace time.Duration
	IdleTimeout         time.Duration
}

// Controller is the fleet control plane: it deploys one recognizer-worker
// process per distinct model-id on demand, tracks liveness, and reclaims
// ports and process resources as workers exit.
//
// Shutdown takes precedence over concurrent ensure_worker calls for the
// same model-id: stop() acquires shuttingDown[modelID] before ensure_worker
// is allowed to spawn a replacement, so a caller racing a stop never
// resurrects a worker the operator just asked to remove.
type Controller struct {
	allocator PortAllocator
	artifacts *ArtifactResolver
	opts      Options
	logger    zerolog.Logger

	mu      sync.Mutex
	workers map[string]*WorkerRecord // modelID -> worker

	shutdownMu  sync.Mutex
	shuttingDown map[string]struct{} // modelID currently being stopped

	spawnGroup singleflight.Group
}

// testHookPostReady, when set, runs after a worker signals readiness and
// before the re-check of shuttingDown below. Tests use it to force a Stop
// to land in that exact window; production never sets it.
var testHookPostReady func(modelID string)

// NewController creates a Controller over the given port allocator and
// artifact resolver.
func NewController(allocator PortAllocator, artifacts *ArtifactResolver, opts Options) *Controller {
	if opts.WorkerSpawnTimeout <= 0 {
		opts.WorkerSpawnTimeout = 15 * time.Second
	}
	if opts.WorkerShutdownGrace <= 0 {
		opts.WorkerShutdownGrace = 10 * time.Second
	}
	return &Controller{
		allocator:    allocator,
		artifacts:    artifacts,
		opts:         opts,
		logger:       log.WithComponent("fleet-controller"),
		workers:      make(map[string]*WorkerRecord),
		shuttingDown: make(map[string]struct{}),
	}
}

// EnsureWorker returns the running worker for modelID, spawning one if none
// exists or the existing one is terminal. Concurrent calls for the same
// model-id are deduplicated: only one spawn happens.
func (c *Controller) EnsureWorker(ctx context.Context, modelID string) (Snapshot, error) {
	c.shutdownMu.Lock()
	if _, stopping := c.shuttingDown[modelID]; stopping {
		c.shutdownMu.Unlock()
		metrics.IncEnsureWorker("error")
		return Snapshot{}, fmt.Errorf("%w: %s", ErrShuttingDown, modelID)
	}
	c.shutdownMu.Unlock()

	if snap, ok := c.existingRoutable(modelID); ok {
		metrics.IncEnsureWorker("reused")
		return snap, nil
	}

	v, err, _ := c.spawnGroup.Do(modelID, func() (interface{}, error) {
		// Re-check under the dedup key: another goroutine may have won the
		// race and already installed a routable worker.
		if snap, ok := c.existingRoutable(modelID); ok {
			return snap, nil
		}
		return c.spawnWorker(ctx, modelID)
	})
	if err != nil {
		metrics.IncEnsureWorker("error")
		return Snapshot{}, err
	}
	snap := v.(Snapshot)
	metrics.IncEnsureWorker("spawned")
	return snap, nil
}

func (c *Controller) existingRoutable(modelID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.workers[modelID]
	if !ok || !w.Liveness.Routable() {
		return Snapshot{}, false
	}
	return w.snapshot(), true
}

func (c *Controller) spawnWorker(ctx context.Context, modelID string) (Snapshot, error) {
	desc, err := c.artifacts.Descriptor(ctx, modelID)
	if err != nil {
		return Snapshot{}, err
	}
	weightsPath, err := c.artifacts.Weights(ctx, desc)
	if err != nil {
		return Snapshot{}, err
	}

	port, err := c.allocator.Acquire()
	if err != nil {
		return Snapshot{}, err
	}
	c.refreshPortPoolMetric()

	args := []string{
		"-model-id", desc.ModelID,
		"-port", strconv.Itoa(port),
		"-weights", weightsPath,
		"-labels", strings.Join(desc.Labels, ","),
		"-sequence-length", strconv.Itoa(desc.SequenceLength),
		"-feature-dim", strconv.Itoa(desc.FeatureDim),
	}
	// Zero means the descriptor leaves the value unset; omit the flag so the
	// worker's own default applies.
	if desc.SmoothingWindow > 0 {
		args = append(args, "-smoothing-window", strconv.Itoa(desc.SmoothingWindow))
	}
	if desc.PredictionInterval > 0 {
		args = append(args, "-prediction-interval", strconv.Itoa(desc.PredictionInterval))
	}
	if c.opts.IdleTimeout > 0 {
		args = append(args, "-idle-timeout", c.opts.IdleTimeout.String())
	}
	// #nosec G204 -- WorkerBinPath is operator configuration, args are built from a resolved descriptor
	cmd := exec.Command(c.opts.WorkerBinPath, args...)
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		c.allocator.Release(port)
		c.refreshPortPoolMetric()
		return Snapshot{}, fmt.Errorf("%w: stdout pipe: %v", ErrWorkerSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		c.allocator.Release(port)
		c.refreshPortPoolMetric()
		return Snapshot{}, fmt.Errorf("%w: %v", ErrWorkerSpawnFailed, err)
	}

	rec := newWorkerRecord(modelID, port, cmd)
	c.mu.Lock()
	c.workers[modelID] = rec
	c.mu.Unlock()
	c.refreshWorkerCountMetric()

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()
	go c.superviseExit(modelID, rec, waitCh)

	if err := c.awaitReady(rec, stdout); err != nil {
		c.logger.Warn().Err(err).Str("model_id", modelID).Msg("worker did not signal readiness in time")
		c.mu.Lock()
		rec.Liveness = LivenessDead
		rec.LastError = err
		c.mu.Unlock()
		c.refreshWorkerCountMetric()
		// superviseExit owns the only read of waitCh; kill via KillGroup and
		// wait for superviseExit to observe the exit.
		_ = procgroup.KillGroup(cmd.Process.Pid, c.opts.WorkerShutdownGrace, c.opts.WorkerShutdownGrace+5*time.Second)
		<-rec.done
		c.allocator.Release(port)
		c.refreshPortPoolMetric()
		return Snapshot{}, err
	}

	if testHookPostReady != nil {
		testHookPostReady(modelID)
	}

	c.shutdownMu.Lock()
	_, stopping := c.shuttingDown[modelID]
	c.shutdownMu.Unlock()
	if stopping {
		c.logger.Warn().Str("model_id", modelID).Msg("stop raced worker readiness, discarding start")
		c.mu.Lock()
		if current, ok := c.workers[modelID]; ok && current == rec {
			delete(c.workers, modelID)
		}
		c.mu.Unlock()
		c.refreshWorkerCountMetric()
		// A concurrent Stop may already be killing this process; superviseExit
		// owns the only read of waitCh, so signal via KillGroup (like Stop
		// does) rather than Terminate, which would also try to drain waitCh.
		_ = procgroup.KillGroup(cmd.Process.Pid, c.opts.WorkerShutdownGrace, c.opts.WorkerShutdownGrace+5*time.Second)
		<-rec.done
		c.allocator.Release(port)
		c.refreshPortPoolMetric()
		return Snapshot{}, fmt.Errorf("%w: %s", ErrShuttingDown, modelID)
	}

	c.mu.Lock()
	rec.Liveness = LivenessReady
	rec.ReadyAt = time.Now()
	snap := rec.snapshot()
	c.mu.Unlock()
	c.refreshWorkerCountMetric()

	c.logger.Info().Str("model_id", modelID).Int("port", port).Msg("worker ready")
	return snap, nil
}

// awaitReady blocks until the worker writes its "READY <port>" line to
// stdout, or the spawn timeout elapses.
func (c *Controller) awaitReady(rec *WorkerRecord, stdout io.Reader) error {
	type result struct {
		err error
	}
	done := make(chan result, 1)

	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if strings.HasPrefix(line, "READY") {
				done <- result{}
				return
			}
		}
		done <- result{err: fmt.Errorf("%w: worker closed stdout before signalling readiness", ErrWorkerSpawnFailed)}
	}()

	select {
	case res := <-done:
		return res.err
	case <-time.After(c.opts.WorkerSpawnTimeout):
		return ErrWorkerSpawnTimeout
	case <-rec.done:
		return fmt.Errorf("%w: process exited before signalling readiness", ErrWorkerSpawnFailed)
	}
}

// superviseExit waits for the worker process to exit and marks it dead,
// releasing its port back to the pool.
func (c *Controller) superviseExit(modelID string, rec *WorkerRecord, waitCh <-chan error) {
	err := <-waitCh
	close(rec.done)

	c.mu.Lock()
	rec.Liveness = LivenessDead
	if err != nil {
		rec.LastError = err
	}
	// Only remove this exact record: a newer worker may already have
	// replaced it in the map under the same model-id.
	if current, ok := c.workers[modelID]; ok && current == rec {
		delete(c.workers, modelID)
	}
	c.mu.Unlock()
	c.refreshWorkerCountMetric()

	c.allocator.Release(rec.Port)
	c.refreshPortPoolMetric()

	logEvent := c.logger.Info()
	if err != nil {
		logEvent = c.logger.Warn().Err(err)
	}
	logEvent.Str("model_id", modelID).Int("port", rec.Port).Msg("worker process exited")
}

// Stop terminates the worker for modelID, if any, and releases its port.
// It takes precedence over any ensure_worker call for the same model-id
// that has not yet finished spawning.
func (c *Controller) Stop(ctx context.Context, modelID string) error {
	c.shutdownMu.Lock()
	c.shuttingDown[modelID] = struct{}{}
	c.shutdownMu.Unlock()
	defer func() {
		c.shutdownMu.Lock()
		delete(c.shuttingDown, modelID)
		c.shutdownMu.Unlock()
	}()

	c.mu.Lock()
	rec, ok := c.workers[modelID]
	if ok {
		rec.Liveness = LivenessShuttingDown
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, modelID)
	}
	c.refreshWorkerCountMetric()

	// superviseExit already owns the single cmd.Wait() call for this worker
	// (started in spawnWorker); Stop only needs to signal termination and
	// wait for that goroutine to observe the exit via rec.done.
	if err := procgroup.KillGroup(rec.Cmd.Process.Pid, c.opts.WorkerShutdownGrace, c.opts.WorkerShutdownGrace+5*time.Second); err != nil {
		return err
	}

	select {
	case <-rec.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Status returns a snapshot of the worker for modelID.
func (c *Controller) Status(modelID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.workers[modelID]
	if !ok {
		return Snapshot{}, false
	}
	return w.snapshot(), true
}

// List returns a snapshot of every tracked worker.
func (c *Controller) List() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Snapshot, 0, len(c.workers))
	for _, w := range c.workers {
		out = append(out, w.snapshot())
	}
	return out
}

// CleanupDeadWorkers removes any tracked worker whose liveness has reached
// the terminal state, returning the removed model-ids. Under normal
// operation superviseExit already does this; this method exists for
// callers (e.g. a periodic reconciliation loop) that want to sweep for
// workers that died without a clean handoff.
func (c *Controller) CleanupDeadWorkers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed []string
	for modelID, w := range c.workers {
		if w.Liveness.Terminal() {
			removed = append(removed, modelID)
			delete(c.workers, modelID)
		}
	}
	return removed
}

// PortPoolUsage reports the allocator's current usage, for the port_pool
// health checker and metrics.
func (c *Controller) PortPoolUsage() (inUse, size int) {
	return c.allocator.Usage()
}

func (c *Controller) refreshPortPoolMetric() {
	inUse, size := c.allocator.Usage()
	metrics.SetPortPoolUsage(inUse, size)
}

func (c *Controller) refreshWorkerCountMetric() {
	c.mu.Lock()
	counts := map[Liveness]int{
		LivenessStarting:     0,
		LivenessReady:        0,
		LivenessShuttingDown: 0,
		LivenessDead:         0,
	}
	for _, w := range c.workers {
		counts[w.Liveness]++
	}
	c.mu.Unlock()
	for liveness, n := range counts {
		metrics.SetWorkerCount(string(liveness), n)
	}
}

// Shutdown stops every tracked worker. It is intended for process exit:
// errors stopping individual workers are logged, not returned, so that one
// stuck worker cannot block the rest from being torn down.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	modelIDs := make([]string, 0, len(c.workers))
	for modelID := range c.workers {
		modelIDs = append(modelIDs, modelID)
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, modelID := range modelIDs {
		wg.Add(1)
		go func(modelID string) {
			defer wg.Done()
			if err := c.Stop(ctx, modelID); err != nil {
				c.logger.Warn().Err(err).Str("model_id", modelID).Msg("error stopping worker during shutdown")
			}
		}(modelID)
	}
	wg.Wait()
}

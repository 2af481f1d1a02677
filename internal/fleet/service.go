// SPDX-License-Identifier: MIT

package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signfleet/fleetd/internal/content"
	"github.com/signfleet/fleetd/internal/log"
	"github.com/signfleet/fleetd/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DeployResult is the outcome of deploying a chapter: the set of worker
// endpoints covering its distinct model-ids, and a lesson-id to endpoint
// map for routing individual lessons.
type DeployResult struct {
	Endpoints       []string          `json:"endpoints"`
	LessonEndpoints map[string]string `json:"lesson_endpoints"`
}

// Service is the chapter-facing half of the control plane: it resolves a
// chapter's lessons to model-ids via content.Store, then delegates to a
// Controller to ensure one worker per distinct model-id.
type Service struct {
	content    content.Store
	controller *Controller
	scheme     string
	host       string
	logger     zerolog.Logger
}

// NewService creates a Service. scheme and host are used to build the
// client-facing endpoint URLs returned by Deploy (e.g. "ws", "workers.internal").
func NewService(store content.Store, controller *Controller, scheme, host string) *Service {
	return &Service{
		content:    store,
		controller: controller,
		scheme:     scheme,
		host:       host,
		logger:     log.WithComponent("fleet-service"),
	}
}

// Deploy resolves chapterID's lessons, ensures a worker is running for
// every distinct model-id they reference, and returns client-facing
// endpoints plus a lesson-to-endpoint map.
//
// A failure to start any single worker is fatal to the whole call: workers
// already started for other models in the chapter are not torn down, and
// remain observable via Status/List so the caller may retry. This mirrors
// the documented behavior of the reference implementation.
func (s *Service) Deploy(ctx context.Context, chapterID string) (DeployResult, error) {
	start := time.Now()
	result, err := s.deploy(ctx, chapterID)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ObserveDeploy(outcome, time.Since(start).Seconds())
	return result, err
}

func (s *Service) deploy(ctx context.Context, chapterID string) (DeployResult, error) {
	s.controller.CleanupDeadWorkers()

	chapter, err := s.content.Chapter(ctx, chapterID)
	if err != nil {
		return DeployResult{}, err
	}

	modelIDs := content.DistinctModelIDs(chapter)
	endpointByModel := make(map[string]string, len(modelIDs))
	var mu sync.Mutex

	// Distinct models in a chapter are independent: ensure_worker for one
	// never blocks on another, so fan them out. A failure for any one model
	// fails the whole deploy, but siblings already started are left running
	// (see the partial-failure note on Deploy above).
	g, gctx := errgroup.WithContext(ctx)
	for _, modelID := range modelIDs {
		modelID := modelID
		g.Go(func() error {
			snap, err := s.controller.EnsureWorker(gctx, modelID)
			if err != nil {
				s.logger.Error().Err(err).
					Str("chapter_id", chapterID).
					Str("model_id", modelID).
					Msg("worker start failed during chapter deploy")
				return fmt.Errorf("deploy chapter %s: start worker for model %s: %w", chapterID, modelID, err)
			}
			mu.Lock()
			endpointByModel[modelID] = s.endpoint(snap.Port)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DeployResult{}, err
	}

	endpoints := make([]string, 0, len(endpointByModel))
	for _, endpoint := range endpointByModel {
		endpoints = append(endpoints, endpoint)
	}

	lessonEndpoints := make(map[string]string, len(chapter.Lessons))
	for _, lesson := range chapter.Lessons {
		if lesson.ModelID == "" {
			continue
		}
		if endpoint, ok := endpointByModel[lesson.ModelID]; ok {
			lessonEndpoints[lesson.LessonID] = endpoint
		}
	}

	return DeployResult{Endpoints: endpoints, LessonEndpoints: lessonEndpoints}, nil
}

func (s *Service) endpoint(port int) string {
	return fmt.Sprintf("%s://%s:%d", s.scheme, s.host, port)
}

// Stop delegates to the underlying Controller.
func (s *Service) Stop(ctx context.Context, modelID string) error {
	return s.controller.Stop(ctx, modelID)
}

// Status delegates to the underlying Controller.
func (s *Service) Status(modelID string) (Snapshot, bool) {
	return s.controller.Status(modelID)
}

// Health returns a snapshot of every tracked worker plus port pool usage.
func (s *Service) Health() ([]Snapshot, int, int) {
	inUse, size := s.controller.PortPoolUsage()
	return s.controller.List(), inUse, size
}

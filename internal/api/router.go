// SPDX-License-Identifier: MIT

// Package api provides the control-plane HTTP surface: deploy, stop,
// status, and health.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/signfleet/fleetd/internal/fleet"
	"github.com/signfleet/fleetd/internal/health"
	xglog "github.com/signfleet/fleetd/internal/log"
)

// Router holds the dependencies the control-plane handlers need.
type Router struct {
	fleet  *fleet.Service
	health *health.Manager
	logger zerolog.Logger
}

// NewRouter builds the chi router serving fleetd's control-plane API.
func NewRouter(svc *fleet.Service, healthMgr *health.Manager) http.Handler {
	rt := &Router{
		fleet:  svc,
		health: healthMgr,
		logger: xglog.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(xglog.Middleware())

	r.Get("/healthz", healthMgr.ServeHealth)
	r.Get("/readyz", healthMgr.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/chapters/{chapterID}/deploy", rt.handleDeploy)
		v1.Post("/models/{modelID}/stop", rt.handleStop)
		v1.Get("/models/{modelID}", rt.handleStatus)
		v1.Get("/workers", rt.handleListWorkers)
	})

	return r
}

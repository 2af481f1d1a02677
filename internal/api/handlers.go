// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/signfleet/fleetd/internal/content"
	"github.com/signfleet/fleetd/internal/fleet"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// handleDeploy implements deploy(chapter_id).
func (rt *Router) handleDeploy(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "chapterID")

	result, err := rt.fleet.Deploy(r.Context(), chapterID)
	if err != nil {
		switch {
		case errors.Is(err, content.ErrChapterNotFound):
			writeError(w, http.StatusNotFound, err)
		case errors.Is(err, fleet.ErrPortPoolExhausted):
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			rt.logger.Error().Err(err).Str("chapter_id", chapterID).Msg("deploy failed")
			writeError(w, http.StatusBadGateway, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleStop implements stop(model_id).
func (rt *Router) handleStop(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")

	if err := rt.fleet.Stop(r.Context(), modelID); err != nil {
		if errors.Is(err, fleet.ErrWorkerNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		rt.logger.Error().Err(err).Str("model_id", modelID).Msg("stop failed")
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleStatus reports one worker's liveness snapshot.
func (rt *Router) handleStatus(w http.ResponseWriter, r *http.Request) {
	modelID := chi.URLParam(r, "modelID")

	snap, ok := rt.fleet.Status(modelID)
	if !ok {
		writeError(w, http.StatusNotFound, fleet.ErrWorkerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleListWorkers reports every tracked worker and the port pool's
// current utilization.
func (rt *Router) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	snaps, inUse, size := rt.fleet.Health()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workers":        snaps,
		"ports_in_use":   inUse,
		"ports_capacity": size,
	})
}

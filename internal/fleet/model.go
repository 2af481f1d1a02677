// SPDX-License-Identifier: MIT

// Package fleet implements the control plane: deploying recognition workers
// on demand, tracking their liveness, and reclaiming resources when they
// exit.
package fleet

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// Liveness is the client-visible lifecycle of a worker process.
type Liveness string

const (
	LivenessStarting     Liveness = "starting"
	LivenessReady        Liveness = "ready"
	LivenessShuttingDown Liveness = "shutting_down"
	LivenessDead         Liveness = "dead"
)

// Routable reports whether a worker in this state may still receive new
// client connections.
func (l Liveness) Routable() bool {
	return l == LivenessReady
}

// Terminal reports whether this state is final; a worker never transitions
// out of it.
func (l Liveness) Terminal() bool {
	return l == LivenessDead
}

// ModelDescriptor is the object-store-resolved metadata for a deployable
// model: its weights location, label vocabulary, and preprocessing
// parameters.
type ModelDescriptor struct {
	ModelID            string   `json:"model_id"`
	WeightsKey         string   `json:"weights_key"`
	Labels             []string `json:"labels"`
	SequenceLength     int      `json:"sequence_length"`
	SmoothingWindow    int      `json:"smoothing_window"`
	FeatureDim         int      `json:"feature_dim"`
	PredictionInterval int      `json:"prediction_interval"`
}

// descriptorWire mirrors the object-store's on-disk descriptor shape:
// model-info/<name>.json keys hold input_shape, labels and model_path rather
// than the flat fields ModelDescriptor uses internally.
type descriptorWire struct {
	ModelID            string   `json:"model_id"`
	InputShape         []int    `json:"input_shape"`
	Labels             []string `json:"labels"`
	ModelPath          string   `json:"model_path"`
	SmoothingWindow    int      `json:"smoothing_window"`
	PredictionInterval int      `json:"prediction_interval"`

	// Flat fields are accepted alongside input_shape/model_path for callers
	// that write descriptors directly in ModelDescriptor's internal shape.
	WeightsKey     string `json:"weights_key"`
	SequenceLength int    `json:"sequence_length"`
	FeatureDim     int    `json:"feature_dim"`
}

// UnmarshalJSON decodes the object store's documented descriptor schema
// (input_shape: [sequence_length, feature_dim], model_path) into
// ModelDescriptor's flat fields, falling back to the flat fields directly
// when input_shape/model_path are absent.
func (d *ModelDescriptor) UnmarshalJSON(data []byte) error {
	var wire descriptorWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := ModelDescriptor{
		ModelID:            wire.ModelID,
		Labels:             wire.Labels,
		SmoothingWindow:    wire.SmoothingWindow,
		PredictionInterval: wire.PredictionInterval,
		WeightsKey:         wire.WeightsKey,
		SequenceLength:     wire.SequenceLength,
		FeatureDim:         wire.FeatureDim,
	}
	if wire.ModelPath != "" {
		out.WeightsKey = wire.ModelPath
	}
	if len(wire.InputShape) == 2 {
		out.SequenceLength = wire.InputShape[0]
		out.FeatureDim = wire.InputShape[1]
	} else if len(wire.InputShape) != 0 {
		return fmt.Errorf("input_shape must have 2 elements, got %d", len(wire.InputShape))
	}

	*d = out
	return nil
}

// MarshalJSON re-emits ModelDescriptor in the documented object-store shape,
// so descriptors round-trip through the same schema they were read in.
func (d ModelDescriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorWire{
		ModelID:            d.ModelID,
		InputShape:         []int{d.SequenceLength, d.FeatureDim},
		Labels:             d.Labels,
		ModelPath:          d.WeightsKey,
		SmoothingWindow:    d.SmoothingWindow,
		PredictionInterval: d.PredictionInterval,
	})
}

// WorkerRecord tracks one spawned recognizer-worker process.
type WorkerRecord struct {
	ModelID    string
	Port       int
	Liveness   Liveness
	Cmd        *exec.Cmd
	StartedAt  time.Time
	ReadyAt    time.Time
	LastError  error
	// done is closed when the supervising goroutine observes the process exit.
	done chan struct{}
}

func newWorkerRecord(modelID string, port int, cmd *exec.Cmd) *WorkerRecord {
	return &WorkerRecord{
		ModelID:   modelID,
		Port:      port,
		Liveness:  LivenessStarting,
		Cmd:       cmd,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Snapshot is an immutable copy of a WorkerRecord safe to hand to callers
// outside the controller's lock.
type Snapshot struct {
	ModelID   string    `json:"model_id"`
	Port      int       `json:"port"`
	Liveness  Liveness  `json:"liveness"`
	StartedAt time.Time `json:"started_at"`
	ReadyAt   time.Time `json:"ready_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func (w *WorkerRecord) snapshot() Snapshot {
	s := Snapshot{
		ModelID:   w.ModelID,
		Port:      w.Port,
		Liveness:  w.Liveness,
		StartedAt: w.StartedAt,
		ReadyAt:   w.ReadyAt,
	}
	if w.LastError != nil {
		s.Error = w.LastError.Error()
	}
	return s
}

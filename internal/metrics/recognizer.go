// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recognizer_frames_processed_total",
		Help: "Total landmark frames processed by session outcome",
	}, []string{"outcome"}) // outcome=buffered|classified|dropped

	classificationLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recognizer_classification_latency_seconds",
		Help:    "Latency of a single classify() call",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	smoothingBufferDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recognizer_smoothing_buffer_depth",
		Help: "Current depth of the smoothing ring buffer for the active session",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recognizer_sessions_active",
		Help: "Number of currently connected client sessions on this worker",
	})

	idleShutdownTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recognizer_idle_shutdown_total",
		Help: "Total number of times the idle shutdown timer fired",
	})
)

// IncFramesProcessed records a processed landmark frame outcome.
func IncFramesProcessed(outcome string) {
	framesProcessedTotal.WithLabelValues(outcome).Inc()
}

// ObserveClassificationLatency records the duration of a classify() call.
func ObserveClassificationLatency(seconds float64) {
	classificationLatencySeconds.Observe(seconds)
}

// SetSmoothingBufferDepth records the current smoothing buffer depth.
func SetSmoothingBufferDepth(depth int) {
	smoothingBufferDepth.Set(float64(depth))
}

// SetActiveSessions records the number of currently connected sessions.
func SetActiveSessions(n int) {
	sessionsActive.Set(float64(n))
}

// IncIdleShutdown records an idle shutdown timer firing.
func IncIdleShutdown() {
	idleShutdownTotal.Inc()
}

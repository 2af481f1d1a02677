// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the fleet controller and
// recognition worker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workersByLiveness = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fleet_workers_by_liveness",
		Help: "Current number of workers in each liveness state",
	}, []string{"liveness"})

	portPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_port_pool_in_use",
		Help: "Number of ports currently allocated from the pool",
	})

	portPoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fleet_port_pool_size",
		Help: "Total size of the configured port pool",
	})

	ensureWorkerTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_ensure_worker_total",
		Help: "Total ensure_worker calls by outcome",
	}, []string{"outcome"}) // outcome=spawned|reused|error

	deployDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_deploy_duration_seconds",
		Help:    "Duration of deploy operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	artifactResolveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_artifact_resolve_total",
		Help: "Total artifact resolution attempts by outcome",
	}, []string{"outcome"}) // outcome=cache_hit|fetched|unavailable

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_proc_terminate_total",
		Help: "Total process group termination attempts by signal and outcome",
	}, []string{"sig", "outcome"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_proc_wait_total",
		Help: "Total process wait outcomes",
	}, []string{"outcome"})
)

// SetWorkerCount records the current number of workers in the given liveness state.
func SetWorkerCount(liveness string, n int) {
	workersByLiveness.WithLabelValues(liveness).Set(float64(n))
}

// SetPortPoolUsage records port pool size and in-use count.
func SetPortPoolUsage(inUse, size int) {
	portPoolInUse.Set(float64(inUse))
	portPoolSize.Set(float64(size))
}

// IncEnsureWorker records an ensure_worker outcome.
func IncEnsureWorker(outcome string) {
	ensureWorkerTotal.WithLabelValues(outcome).Inc()
}

// ObserveDeploy records a deploy operation's duration and outcome.
func ObserveDeploy(outcome string, seconds float64) {
	deployDurationSeconds.WithLabelValues(outcome).Observe(seconds)
}

// IncArtifactResolve records an artifact resolution outcome.
func IncArtifactResolve(outcome string) {
	artifactResolveTotal.WithLabelValues(outcome).Inc()
}

// IncProcTerminate records a process termination attempt.
func IncProcTerminate(sig, outcome string) {
	procTerminateTotal.WithLabelValues(sig, outcome).Inc()
}

// IncProcWait records a process wait outcome.
func IncProcWait(outcome string) {
	procWaitTotal.WithLabelValues(outcome).Inc()
}

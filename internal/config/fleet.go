// SPDX-License-Identifier: MIT

package config

import "time"

// FleetConfig holds fleetd's own configuration: port pool bounds, artifact
// cache location, and the content/object store connection settings.
type FleetConfig struct {
	// PortRangeLow and PortRangeHigh bound the ports the allocator may hand
	// out to workers, inclusive.
	PortRangeLow  int
	PortRangeHigh int

	// PortAllocatorStrategy selects "freelist" (default) or "modulo".
	PortAllocatorStrategy string

	// ArtifactCacheDir is the local directory weights are cached into.
	ArtifactCacheDir string

	// ObjectStoreRoot is the confined filesystem root the object store
	// resolves model-info/weights keys under.
	ObjectStoreRoot string

	// RedisAddr, RedisPassword, RedisDB configure the content store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// DescriptorCacheRedisAddr, if set, backs the artifact resolver's
	// descriptor cache with Redis instead of an in-process memory cache,
	// so several fleetd replicas share one cache.
	DescriptorCacheRedisAddr string

	// WorkerBinPath is the path to the recognizer-worker binary fleetd spawns.
	WorkerBinPath string

	// WorkerSpawnTimeout bounds how long fleetd waits for a worker's
	// "READY <port>" line before giving up.
	WorkerSpawnTimeout time.Duration

	// WorkerShutdownGrace bounds the SIGTERM grace period before SIGKILL.
	WorkerShutdownGrace time.Duration
}

const (
	defaultPortRangeLow     = 20000
	defaultPortRangeHigh    = 20999
	defaultWorkerSpawnWait  = 15 * time.Second
	defaultWorkerStopGrace  = 10 * time.Second
	defaultArtifactCacheDir = "/var/lib/fleetd/artifacts"
	defaultObjectStoreRoot  = "/var/lib/fleetd/objectstore"
)

// ParseFleetConfig reads fleet configuration from environment variables.
func ParseFleetConfig() FleetConfig {
	return FleetConfig{
		PortRangeLow:           ParseInt("FLEETD_PORT_RANGE_LOW", defaultPortRangeLow),
		PortRangeHigh:          ParseInt("FLEETD_PORT_RANGE_HIGH", defaultPortRangeHigh),
		PortAllocatorStrategy:  ParseString("FLEETD_PORT_ALLOCATOR", "freelist"),
		ArtifactCacheDir:       ParseString("FLEETD_ARTIFACT_CACHE_DIR", defaultArtifactCacheDir),
		ObjectStoreRoot:        ParseString("FLEETD_OBJECTSTORE_ROOT", defaultObjectStoreRoot),
		RedisAddr:              ParseString("FLEETD_REDIS_ADDR", "localhost:6379"),
		RedisPassword:          ParseString("FLEETD_REDIS_PASSWORD", ""),
		RedisDB:                ParseInt("FLEETD_REDIS_DB", 0),
		DescriptorCacheRedisAddr: ParseString("FLEETD_DESCRIPTOR_CACHE_REDIS_ADDR", ""),
		WorkerBinPath:          ParseString("FLEETD_WORKER_BIN", "recognizer-worker"),
		WorkerSpawnTimeout:     ParseDuration("FLEETD_WORKER_SPAWN_TIMEOUT", defaultWorkerSpawnWait),
		WorkerShutdownGrace:    ParseDuration("FLEETD_WORKER_SHUTDOWN_GRACE", defaultWorkerStopGrace),
	}
}

// WorkerConfig holds recognizer-worker's own configuration, passed via flags
// by fleetd at spawn time rather than environment variables (so that
// per-worker values, model id, port, weights path, never collide across
// sibling processes sharing one host environment).
type WorkerConfig struct {
	ModelID            string
	Port               int
	WeightsPath        string
	LabelsPath         string
	SequenceLength     int
	SmoothingWindow    int
	FeatureDim         int
	PredictionInterval int
	IdleTimeout        time.Duration
	LogLevel           string
}

const (
	// DefaultSequenceLength is the fixed number of frames the preprocessor
	// resamples a landmark sequence to before classification.
	DefaultSequenceLength = 48

	// DefaultSmoothingWindow is the number of recent raw probability
	// vectors averaged by the smoother.
	DefaultSmoothingWindow = 6

	// DefaultFeatureDim is 225 (flattened shoulder-frame-normalized
	// landmarks) plus velocity and acceleration features of the same width.
	DefaultFeatureDim = 675

	// DefaultPredictionInterval is how many accepted frames elapse, once
	// the sequence buffer is full, between classification runs for a
	// session.
	DefaultPredictionInterval = 5

	// DefaultIdleShutdown is the grace period a worker waits with zero
	// connected sessions before exiting.
	DefaultIdleShutdown = 20 * time.Second
)

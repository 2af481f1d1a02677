// SPDX-License-Identifier: MIT

// Command fleetd is the control-plane daemon: it exposes deploy/stop/status
// over HTTP and spawns one recognizer-worker process per distinct model-id
// a deployed chapter needs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/signfleet/fleetd/internal/api"
	"github.com/signfleet/fleetd/internal/cache"
	"github.com/signfleet/fleetd/internal/config"
	"github.com/signfleet/fleetd/internal/content"
	"github.com/signfleet/fleetd/internal/daemon"
	"github.com/signfleet/fleetd/internal/fleet"
	"github.com/signfleet/fleetd/internal/health"
	xglog "github.com/signfleet/fleetd/internal/log"
	"github.com/signfleet/fleetd/internal/objectstore"
)

var (
	version = "v0.1.0"
	commit  = "none"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fleetd %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{
		Level:   config.ParseString("FLEETD_LOG_LEVEL", "info"),
		Service: "fleetd",
		Version: version,
	})
	logger := xglog.WithComponent("fleetd")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fleetCfg := config.ParseFleetConfig()
	serverCfg := config.ParseServerConfig()

	if err := health.PerformStartupChecks(ctx, serverCfg, fleetCfg); err != nil {
		logger.Fatal().Err(err).Str("event", "startup.check_failed").Msg("startup checks failed")
	}

	store, err := objectstore.NewFSStore(fleetCfg.ObjectStoreRoot)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "objectstore.init_failed").Msg("failed to open object store")
	}

	var resolver *fleet.ArtifactResolver
	if fleetCfg.DescriptorCacheRedisAddr != "" {
		descriptorCache, cacheErr := cache.NewRedisCache(cache.RedisConfig{
			Addr: fleetCfg.DescriptorCacheRedisAddr,
		}, xglog.WithComponent("descriptor-cache"))
		if cacheErr != nil {
			logger.Fatal().Err(cacheErr).Str("event", "descriptor_cache.init_failed").Msg("failed to connect to descriptor cache")
		}
		resolver, err = fleet.NewArtifactResolverWithCache(store, fleetCfg.ArtifactCacheDir, descriptorCache)
	} else {
		resolver, err = fleet.NewArtifactResolver(store, fleetCfg.ArtifactCacheDir)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("event", "artifacts.init_failed").Msg("failed to create artifact resolver")
	}

	var allocator fleet.PortAllocator
	switch fleetCfg.PortAllocatorStrategy {
	case "modulo":
		allocator = fleet.NewModuloPortAllocator(fleetCfg.PortRangeLow, fleetCfg.PortRangeHigh)
	default:
		allocator = fleet.NewFreeListPortAllocator(fleetCfg.PortRangeLow, fleetCfg.PortRangeHigh)
	}

	controller := fleet.NewController(allocator, resolver, fleet.Options{
		WorkerBinPath:       fleetCfg.WorkerBinPath,
		WorkerSpawnTimeout:  fleetCfg.WorkerSpawnTimeout,
		WorkerShutdownGrace: fleetCfg.WorkerShutdownGrace,
	})

	contentStore, err := content.NewRedisStore(content.RedisConfig{
		Addr:     fleetCfg.RedisAddr,
		Password: fleetCfg.RedisPassword,
		DB:       fleetCfg.RedisDB,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "content.init_failed").Msg("failed to connect to content store")
	}

	svc := fleet.NewService(contentStore, controller, "ws", config.ParseString("FLEETD_PUBLIC_HOST", "localhost"))

	healthMgr := health.NewManager(version)
	healthMgr.RegisterChecker(health.NewContentStoreChecker(contentStore.Ping))
	healthMgr.RegisterChecker(health.NewPortPoolChecker(controller.PortPoolUsage))

	router := api.NewRouter(svc, healthMgr)

	deps := daemon.Deps{
		Logger:     logger,
		APIHandler: router,
	}

	mgr, err := daemon.NewManager(serverCfg, deps)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "manager.creation_failed").Msg("failed to create daemon manager")
	}
	mgr.RegisterShutdownHook("fleet-controller", func(shutdownCtx context.Context) error {
		controller.Shutdown(shutdownCtx)
		return nil
	})

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("addr", serverCfg.ListenAddr).
		Int("port_range_low", fleetCfg.PortRangeLow).
		Int("port_range_high", fleetCfg.PortRangeHigh).
		Str("port_allocator", fleetCfg.PortAllocatorStrategy).
		Str("worker_bin", fleetCfg.WorkerBinPath).
		Msg("starting fleetd")

	if err := mgr.Start(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "manager.failed").Msg("daemon manager failed")
	}

	logger.Info().Msg("fleetd exiting")
}

// SPDX-License-Identifier: MIT

// Command recognizer-worker serves one model's landmark classification
// pipeline over WebSocket. It is spawned by fleetd, one process per
// distinct deployed model-id, and exits on its own once its idle-shutdown
// grace period elapses with no connected sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/signfleet/fleetd/internal/config"
	xglog "github.com/signfleet/fleetd/internal/log"
	"github.com/signfleet/fleetd/internal/metrics"
	"github.com/signfleet/fleetd/internal/recognizer"
)

func main() {
	modelID := flag.String("model-id", "", "model id this worker serves")
	port := flag.Int("port", 0, "port to listen on")
	weightsPath := flag.String("weights", "", "path to the cached weights file")
	labelsCSV := flag.String("labels", "", "comma-separated label vocabulary")
	sequenceLength := flag.Int("sequence-length", config.DefaultSequenceLength, "frames per classification window")
	smoothingWindow := flag.Int("smoothing-window", config.DefaultSmoothingWindow, "raw probability vectors averaged per prediction")
	featureDim := flag.Int("feature-dim", config.DefaultFeatureDim, "flattened feature width per frame")
	predictionInterval := flag.Int("prediction-interval", config.DefaultPredictionInterval, "accepted frames between classification runs once the buffer is full")
	idleTimeout := flag.Duration("idle-timeout", config.DefaultIdleShutdown, "grace period with zero sessions before exiting")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	xglog.Configure(xglog.Config{
		Level:   *logLevel,
		Service: "recognizer-worker",
	})
	logger := xglog.WithComponent("recognizer-worker").With().Str("model_id", *modelID).Logger()

	if *modelID == "" || *port == 0 || *weightsPath == "" {
		logger.Fatal().Str("event", "flags.invalid").Msg("-model-id, -port, and -weights are required")
	}

	labels := splitLabels(*labelsCSV)
	if len(labels) == 0 {
		logger.Fatal().Str("event", "flags.invalid").Msg("-labels must name at least one label")
	}

	classifier, err := recognizer.LoadClassifier(*weightsPath, labels, *sequenceLength**featureDim)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "classifier.load_failed").Msg("failed to load classifier weights")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline := recognizer.Pipeline{
		SequenceLength:     *sequenceLength,
		FeatureDim:         *featureDim,
		PredictionInterval: *predictionInterval,
		SmoothingWindow:    *smoothingWindow,
		Labels:             labels,
		Classifier:         classifier,
	}

	idleTimer := recognizer.NewIdleTimer(*idleTimeout, func() {
		metrics.IncIdleShutdown()
		logger.Info().Str("event", "idle.shutdown").Dur("grace", *idleTimeout).Msg("idle grace elapsed, exiting")
		stop()
	})

	manager := recognizer.NewManager(pipeline, idleTimer)
	wsServer := recognizer.NewServer(manager)

	mux := http.NewServeMux()
	mux.Handle("/", wsServer)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "listen.failed").Msg("failed to bind listen port")
	}

	errCh := make(chan error, 1)
	go func() {
		// Signals readiness to the spawning controller, which scans stdout
		// for a line beginning with "READY".
		fmt.Printf("READY %d\n", *port)
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Str("event", "server.failed").Msg("worker server failed")
		}
	case <-ctx.Done():
		logger.Info().Str("event", "shutdown").Int("sessions", manager.SessionCount()).Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("recognizer-worker exiting")
}

func splitLabels(csv string) []string {
	parts := strings.Split(csv, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}

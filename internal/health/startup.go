// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/signfleet/fleetd/internal/config"
	"github.com/signfleet/fleetd/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates the environment and dependencies before
// starting fleetd.
func PerformStartupChecks(ctx context.Context, serverCfg config.ServerConfig, fleetCfg config.FleetConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkWritableDir(logger, "artifact cache", fleetCfg.ArtifactCacheDir); err != nil {
		return fmt.Errorf("artifact cache directory check failed: %w", err)
	}

	if err := checkWritableDir(logger, "object store root", fleetCfg.ObjectStoreRoot); err != nil {
		return fmt.Errorf("object store root check failed: %w", err)
	}

	if err := checkListenAddr(logger, serverCfg.ListenAddr); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}

	if err := checkPortRange(logger, fleetCfg.PortRangeLow, fleetCfg.PortRangeHigh); err != nil {
		return fmt.Errorf("port range check failed: %w", err)
	}

	if err := checkWorkerBinary(logger, fleetCfg.WorkerBinPath); err != nil {
		return fmt.Errorf("worker binary check failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkWritableDir(logger zerolog.Logger, label, path string) error {
	if path == "" {
		return fmt.Errorf("%s path is not configured", label)
	}

	if err := os.MkdirAll(path, 0750); err != nil {
		return fmt.Errorf("%s: %s is not creatable: %w", label, path, err)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0600); err != nil {
		return fmt.Errorf("%s: %s is not writable: %w", label, path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Str("purpose", label).Msg("directory is writable")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	if addr == "" {
		return fmt.Errorf("listen address is not configured")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}
	logger.Info().Str("addr", addr).Msg("listen address is valid")
	return nil
}

func checkPortRange(logger zerolog.Logger, low, high int) error {
	if low <= 0 || high <= 0 {
		return fmt.Errorf("port range bounds must be positive, got [%d, %d]", low, high)
	}
	if low > high {
		return fmt.Errorf("port range low bound %d is greater than high bound %d", low, high)
	}
	if high > 65535 {
		return fmt.Errorf("port range high bound %d exceeds 65535", high)
	}
	logger.Info().Int("low", low).Int("high", high).Msg("port range is valid")
	return nil
}

func checkWorkerBinary(logger zerolog.Logger, binPath string) error {
	if binPath == "" {
		return fmt.Errorf("worker binary path is not configured")
	}
	// A bare name is resolved via PATH at spawn time; only reject an
	// explicit path that does not exist.
	if filepath.IsAbs(binPath) || filepath.Dir(binPath) != "." {
		if _, err := os.Stat(binPath); err != nil {
			return fmt.Errorf("worker binary %s is not accessible: %w", binPath, err)
		}
	}
	logger.Info().Str("path", binPath).Msg("worker binary path is configured")
	return nil
}

// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/playbackd/internal/config"
	"github.com/ManuGH/playbackd/internal/log"
)

// PerformStartupChecks validates the runtime environment before the
// daemon starts serving. Config syntax and ranges are already enforced
// by config.Validate; this covers what only the host can answer, such
// as directory permissions.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkStorePath(logger, cfg); err != nil {
		return fmt.Errorf("store path check failed: %w", err)
	}
	warnOperationalGaps(logger, cfg)

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

func checkDataDir(logger zerolog.Logger, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(path, 0o750); mkErr != nil {
				return fmt.Errorf("cannot create data directory %s: %w", path, mkErr)
			}
			logger.Info().Str("path", path).Msg("✓ Data directory created")
		} else {
			return err
		}
	} else if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	// Probe writability; journal stores and status exports land here.
	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", path).Msg("✓ Data directory is writable")
	return nil
}

func checkStorePath(logger zerolog.Logger, cfg config.AppConfig) error {
	if cfg.Store.Backend == "memory" {
		return nil
	}

	path := cfg.Store.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.DataDir, path)
	}
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return fmt.Errorf("cannot ensure store directory %s: %w", parent, err)
	}

	logger.Info().
		Str("backend", cfg.Store.Backend).
		Str("path", path).
		Msg("✓ Journal store path available")
	return nil
}

// warnOperationalGaps logs configurations that are legal but lose data
// or protection. None of them block startup.
func warnOperationalGaps(logger zerolog.Logger, cfg config.AppConfig) {
	if cfg.APIToken == "" {
		logger.Warn().Msg("API token not configured; control API requests will be refused (auth fails closed)")
	}

	if cfg.Telemetry.Endpoint == "" {
		logger.Warn().Msg("telemetry endpoint not configured; playback events are not forwarded")
	}

	if cfg.Store.Backend == "memory" {
		logger.Warn().
			Str("store_backend", cfg.Store.Backend).
			Msg("journal uses in-memory store; session history is lost on restart")
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; journal and status exports may be lost on reboot")
	}
}

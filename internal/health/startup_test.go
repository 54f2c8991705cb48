// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/playbackd/internal/config"
)

func startupConfig(t *testing.T) config.AppConfig {
	t.Helper()
	return config.AppConfig{
		Listen:  "127.0.0.1:8080",
		DataDir: t.TempDir(),
		Store:   config.StoreConfig{Backend: "memory"},
	}
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := startupConfig(t)
	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
}

func TestPerformStartupChecks_CreatesMissingDataDir(t *testing.T) {
	cfg := startupConfig(t)
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "data")

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))

	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPerformStartupChecks_DataDirIsFile(t *testing.T) {
	cfg := startupConfig(t)
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	cfg.DataDir = file

	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestPerformStartupChecks_EnsuresStoreDir(t *testing.T) {
	cfg := startupConfig(t)
	cfg.Store = config.StoreConfig{Backend: "sqlite", Path: "journal/sessions.db"}

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))

	info, err := os.Stat(filepath.Join(cfg.DataDir, "journal"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

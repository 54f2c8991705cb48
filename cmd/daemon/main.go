// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ManuGH/playbackd/internal/api"
	"github.com/ManuGH/playbackd/internal/config"
	"github.com/ManuGH/playbackd/internal/daemon"
	"github.com/ManuGH/playbackd/internal/health"
	"github.com/ManuGH/playbackd/internal/log"
	"github.com/ManuGH/playbackd/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maskURL removes user info from a URL string for safe logging.
func maskURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	return parsedURL.String()
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			os.Exit(runConfigCLI(os.Args[2:]))
		case "healthcheck":
			os.Exit(runHealthcheckCLI(os.Args[2:]))
		}
	}

	// Handle command-line flags
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Configure logger with safe defaults until config is loaded
	log.Configure(log.Config{
		Level:   "info",
		Service: "playbackd",
		Version: version.Version,
	})

	logger := log.WithComponent("daemon")

	// Create a context that listens for the interrupt signal from the OS
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Determine config path:
	// - Explicit via --config
	// - Otherwise auto-load ${PLAYBACKD_DATA_DIR}/config.yaml if it exists
	explicitConfigPath := strings.TrimSpace(*configPath)
	effectiveConfigPath := explicitConfigPath
	if effectiveConfigPath == "" {
		effectiveConfigPath = resolveDefaultConfigPath()
	}

	// Load configuration with precedence: ENV > File > Defaults
	loader := config.NewLoader(effectiveConfigPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectiveConfigPath).
			Msg("failed to load configuration")
	}

	// Re-configure logger with loaded configuration
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "playbackd",
		Version: cfg.Version,
	})

	// Log config source
	switch {
	case explicitConfigPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", explicitConfigPath).
			Msg("loaded configuration from file")
	case effectiveConfigPath != "":
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file(auto)").
			Str("path", effectiveConfigPath).
			Msg("loaded configuration from file")
	default:
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	// -------------------------------------------------------------------------
	// Pre-flight Checks (Fail Fast)
	// -------------------------------------------------------------------------
	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
	}
	// -------------------------------------------------------------------------

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.Listen).
		Msg("starting playbackd")

	// Log key configuration
	logger.Info().Msgf("→ Sessions: max %d (stall timeout %s)", cfg.Sessions.MaxSessions, cfg.Sessions.StallTimeout)
	logger.Info().Msgf("→ Journal: %s", describeJournal(cfg.Store))
	logger.Info().Msgf("→ Cache: %s", cfg.Cache.Backend)
	if cfg.Telemetry.Endpoint != "" {
		logger.Info().Msgf("→ Telemetry: %s", maskURL(cfg.Telemetry.Endpoint))
	} else {
		logger.Info().Msg("→ Telemetry: disabled (no endpoint)")
	}
	if len(cfg.Manifest.AllowHosts) > 0 || len(cfg.Manifest.AllowCIDRs) > 0 {
		logger.Info().Msgf("→ Manifest allowlist: %d hosts, %d CIDRs", len(cfg.Manifest.AllowHosts), len(cfg.Manifest.AllowCIDRs))
	} else {
		logger.Info().Msg("→ Manifest allowlist: public origins only")
	}
	if cfg.APIToken != "" {
		logger.Info().Msg("→ API token: configured")
	} else {
		logger.Warn().
			Str("security", "weak").
			Msg("→ API token: NOT configured (all /api/v1 routes refused). Set PLAYBACKD_API_TOKEN.")
	}
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)

	// Assemble the playback stack: cache, manifest fetcher, journal,
	// telemetry, tracing, decoder factory and the session manager.
	stack, err := buildPlaybackStack(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "stack.build_failed").
			Msg("failed to assemble playback stack")
	}

	healthMgr := health.NewManager(cfg.Version, 0)
	registerHealthCheckers(healthMgr, cfg, stack)

	// Create API handler
	s := api.NewServer(cfg, stack.Manager, healthMgr)

	// Create daemon manager
	mgr, err := daemon.NewManager(daemon.ServerConfig{
		ListenAddr:  cfg.Listen,
		MetricsAddr: cfg.MetricsListen,
	}, daemon.Deps{
		Logger:         logger,
		APIHandler:     s.Router(),
		MetricsHandler: promhttp.Handler(),
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.creation.failed").
			Msg("failed to create daemon manager")
	}

	registerShutdownHooks(mgr, stack)

	// Hot reload support: watch config file and allow SIGHUP-triggered reload.
	cfgHolder := config.NewConfigHolder(cfg, config.NewLoader(effectiveConfigPath, version.Version), effectiveConfigPath)

	var exporter *daemon.StatusExporter
	if cfg.Status.File != "" {
		exporter = daemon.NewStatusExporter(stack.Manager, stack.Bus, cfg.Status.File, cfg.Status.Interval, logger)
	}

	// Start daemon app (blocks until shutdown)
	app := daemon.NewApp(logger, mgr, cfgHolder, s, exporter)
	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "manager.failed").
			Msg("daemon app failed")
	}

	logger.Info().Msg("server exiting")
}

func resolveDefaultConfigPath() string {
	dataDir := strings.TrimSpace(os.Getenv("PLAYBACKD_DATA_DIR"))
	if dataDir == "" {
		dataDir = "./data"
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

func describeJournal(sc config.StoreConfig) string {
	backend := sc.Backend
	if backend == "" {
		backend = "memory"
	}
	if sc.Path == "" || backend == "memory" {
		return backend
	}
	return fmt.Sprintf("%s (%s)", backend, sc.Path)
}

// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"

	"github.com/ManuGH/playbackd/internal/bus"
	"github.com/ManuGH/playbackd/internal/cache"
	"github.com/ManuGH/playbackd/internal/config"
	"github.com/ManuGH/playbackd/internal/daemon"
	"github.com/ManuGH/playbackd/internal/health"
	"github.com/ManuGH/playbackd/internal/manifest"
	platformnet "github.com/ManuGH/playbackd/internal/platform/net"
	"github.com/ManuGH/playbackd/internal/playback"
	"github.com/ManuGH/playbackd/internal/playback/engine"
	"github.com/ManuGH/playbackd/internal/playback/store"
	"github.com/ManuGH/playbackd/internal/telemetry"
	"github.com/rs/zerolog"
)

// playbackStack bundles the session-facing subsystems main wires
// together: everything here outlives individual requests and is torn
// down through shutdown hooks.
type playbackStack struct {
	Cache   cache.Cache
	Journal store.StateStore
	Bus     *bus.MemoryBus
	Manager *playback.Manager

	// Client and Emitter are nil when no telemetry endpoint is configured.
	Client  *telemetry.Client
	Emitter *telemetry.Emitter

	// Tracing is inert (noop provider) when tracing is disabled.
	Tracing *telemetry.Provider
}

func buildPlaybackStack(ctx context.Context, cfg config.AppConfig, logger zerolog.Logger) (*playbackStack, error) {
	policy := platformnet.OutboundPolicy{
		Hosts:   cfg.Manifest.AllowHosts,
		CIDRs:   cfg.Manifest.AllowCIDRs,
		Ports:   cfg.Manifest.AllowPorts,
		Schemes: cfg.Manifest.AllowSchemes,
	}

	var c cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		c = rc
	default:
		c = cache.NewMemoryCache(cfg.Cache.CleanupInterval)
	}

	fetcher := manifest.NewFetcher(manifest.FetcherConfig{
		Timeout:  cfg.Manifest.FetchTimeout,
		CacheTTL: cfg.Manifest.CacheTTL,
		MaxBytes: cfg.Manifest.MaxBytes,
	}, policy, c, logger)

	journal, err := store.OpenStateStore(cfg.Store.Backend, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("session journal: %w", err)
	}

	var (
		sink    playback.Telemetry = playback.NopTelemetry{}
		client  *telemetry.Client
		emitter *telemetry.Emitter
	)
	if cfg.Telemetry.Endpoint != "" {
		client = telemetry.NewClient(telemetry.ClientConfig{
			Endpoint: cfg.Telemetry.Endpoint,
			Timeout:  cfg.Telemetry.Timeout,
		}, policy, logger)
		emitter = telemetry.NewEmitter(telemetry.EmitterConfig{
			QueueSize:     cfg.Telemetry.QueueSize,
			BatchSize:     cfg.Telemetry.BatchSize,
			FlushInterval: cfg.Telemetry.FlushInterval,
			FlushRate:     cfg.Telemetry.FlushRPS,
			FlushBurst:    cfg.Telemetry.FlushBurst,
			ProgressStep:  cfg.Telemetry.ProgressStep,
		}, client, logger)
		sink = emitter
	}

	tracing, err := telemetry.NewProvider(ctx, telemetry.TracerConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "playbackd",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Tracing.Environment,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing provider: %w", err)
	}

	decoders := engine.NewFactory(engine.Config{
		FetchTimeout: cfg.Manifest.FetchTimeout,
		MaxBytes:     cfg.Manifest.MaxBytes,
	}, policy, logger)

	b := bus.NewMemoryBus()

	mgr := playback.NewManager(playback.ManagerConfig{
		MaxSessions:   cfg.Sessions.MaxSessions,
		RecoveryDelay: cfg.Sessions.RecoveryDelay,
		StallTimeout:  cfg.Sessions.StallTimeout,
	}, playback.Deps{
		Decoders:  decoders,
		Manifests: fetcher,
		Telemetry: sink,
		Journal:   journal,
		Bus:       b,
		Logger:    logger,
	})

	return &playbackStack{
		Cache:   c,
		Journal: journal,
		Bus:     b,
		Manager: mgr,
		Client:  client,
		Emitter: emitter,
		Tracing: tracing,
	}, nil
}

func registerHealthCheckers(hm *health.Manager, cfg config.AppConfig, stack *playbackStack) {
	hm.RegisterChecker(health.NewStoreChecker("journal", stack.Journal))

	ingestURL := ""
	if stack.Client != nil {
		ingestURL = stack.Client.IngestURL()
	}
	hm.RegisterChecker(health.NewEndpointChecker("telemetry", ingestURL))

	var cachePing func(ctx context.Context) error
	if rc, ok := stack.Cache.(*cache.RedisCache); ok {
		cachePing = rc.HealthCheck
	}
	hm.RegisterChecker(health.NewPingChecker("cache", cachePing))

	if cfg.Status.File != "" {
		maxAge := 3 * cfg.Status.Interval
		hm.RegisterChecker(health.NewStatusFileChecker("status_file", cfg.Status.File, maxAge))
	}
}

// registerShutdownHooks orders teardown. Hooks run LIFO, so the
// registration order below unwinds as: sessions drain, the emitter
// flushes what those sessions produced, tracing exports its tail, then
// the stores close.
func registerShutdownHooks(mgr daemon.Manager, stack *playbackStack) {
	mgr.RegisterShutdownHook("cache", func(context.Context) error {
		return closeCache(stack.Cache)
	})
	mgr.RegisterShutdownHook("journal", func(context.Context) error {
		return stack.Journal.Close()
	})
	mgr.RegisterShutdownHook("tracing", stack.Tracing.Shutdown)
	if stack.Emitter != nil {
		mgr.RegisterShutdownHook("telemetry", stack.Emitter.Close)
	}
	mgr.RegisterShutdownHook("sessions", stack.Manager.Shutdown)
}

// closeCache releases whichever resources the configured backend holds:
// the redis client's pool or the memory cache's janitor goroutine.
func closeCache(c cache.Cache) error {
	switch v := c.(type) {
	case interface{ Close() error }:
		return v.Close()
	case interface{ Stop() }:
		v.Stop()
	}
	return nil
}

// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"net/url"
)

// Validate rejects configurations the daemon cannot run with. It is called on
// every load and reload; a failing config is never applied.
func Validate(cfg AppConfig) error {
	if cfg.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("listen address %q: %w", cfg.Listen, err)
	}
	if cfg.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(cfg.MetricsListen); err != nil {
			return fmt.Errorf("metrics listen address %q: %w", cfg.MetricsListen, err)
		}
	}

	if cfg.Sessions.MaxSessions <= 0 {
		return fmt.Errorf("sessions.max_sessions must be positive, got %d", cfg.Sessions.MaxSessions)
	}
	if cfg.Sessions.RecoveryDelay <= 0 {
		return fmt.Errorf("sessions.recovery_delay must be positive, got %s", cfg.Sessions.RecoveryDelay)
	}
	if cfg.Sessions.StallTimeout <= 0 {
		return fmt.Errorf("sessions.stall_timeout must be positive, got %s", cfg.Sessions.StallTimeout)
	}

	if cfg.Telemetry.Endpoint != "" {
		u, err := url.Parse(cfg.Telemetry.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("telemetry.endpoint %q is not a valid URL", cfg.Telemetry.Endpoint)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("telemetry.endpoint scheme %q not supported", u.Scheme)
		}
	}
	if cfg.Telemetry.QueueSize <= 0 {
		return fmt.Errorf("telemetry.queue_size must be positive, got %d", cfg.Telemetry.QueueSize)
	}
	if cfg.Telemetry.BatchSize <= 0 || cfg.Telemetry.BatchSize > cfg.Telemetry.QueueSize {
		return fmt.Errorf("telemetry.batch_size must be in [1, queue_size], got %d", cfg.Telemetry.BatchSize)
	}
	if cfg.Telemetry.ProgressStep <= 0 {
		return fmt.Errorf("telemetry.progress_step must be positive, got %v", cfg.Telemetry.ProgressStep)
	}
	if cfg.Telemetry.FlushRPS <= 0 || cfg.Telemetry.FlushBurst <= 0 {
		return fmt.Errorf("telemetry flush rate must be positive (rps=%v burst=%d)", cfg.Telemetry.FlushRPS, cfg.Telemetry.FlushBurst)
	}

	if cfg.Manifest.FetchTimeout <= 0 {
		return fmt.Errorf("manifest.fetch_timeout must be positive, got %s", cfg.Manifest.FetchTimeout)
	}
	if cfg.Manifest.MaxBytes <= 0 {
		return fmt.Errorf("manifest.max_bytes must be positive, got %d", cfg.Manifest.MaxBytes)
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return fmt.Errorf("cache.redis_addr required for redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}

	switch cfg.Store.Backend {
	case "memory":
	case "sqlite", "badger":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path required for %s backend", cfg.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Exporter != "grpc" && cfg.Tracing.Exporter != "http" {
			return fmt.Errorf("tracing.exporter must be grpc or http, got %q", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint required when tracing is enabled")
		}
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing.sampling_rate must be in [0,1], got %v", cfg.Tracing.SamplingRate)
	}

	if cfg.API.RateLimitEnabled {
		if cfg.API.RateLimitRPS <= 0 || cfg.API.RateLimitBurst <= 0 {
			return fmt.Errorf("api rate limit must be positive (rps=%d burst=%d)", cfg.API.RateLimitRPS, cfg.API.RateLimitBurst)
		}
	}

	if cfg.Status.File != "" && cfg.Status.Interval <= 0 {
		return fmt.Errorf("status.interval must be positive when status.file is set")
	}

	return nil
}

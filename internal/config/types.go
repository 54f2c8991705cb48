// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration with the
// precedence ENV > file > defaults.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	// Listen is the address of the control API listener.
	Listen string
	// MetricsListen is the address of the Prometheus listener. Empty disables it.
	MetricsListen string
	// DataDir holds the journal store, status exports and other runtime files.
	DataDir string
	// LogLevel is the zerolog level name ("debug", "info", ...).
	LogLevel string
	// APIToken protects mutating API routes. Empty disables auth (dev only).
	APIToken string
	// Version is stamped by the binary, never configured.
	Version string

	Sessions  SessionConfig
	Telemetry TelemetryConfig
	Manifest  ManifestConfig
	Cache     CacheConfig
	Store     StoreConfig
	Tracing   TracingConfig
	API       APIConfig
	Status    StatusConfig
}

// SessionConfig bounds the playback controller runtime.
type SessionConfig struct {
	// MaxSessions caps concurrently open sessions per daemon.
	MaxSessions int
	// RecoveryDelay is the pause before the single automatic retry.
	RecoveryDelay time.Duration
	// StallTimeout moves a stalled PLAYING session into BUFFERING.
	StallTimeout time.Duration
}

// TelemetryConfig configures the playback event emitter.
type TelemetryConfig struct {
	// Endpoint is the ingestion base URL. Empty disables forwarding.
	Endpoint string
	// QueueSize bounds the pending event queue per daemon.
	QueueSize int
	// BatchSize is the maximum events per POST.
	BatchSize int
	// FlushInterval is the maximum latency before a partial batch is posted.
	FlushInterval time.Duration
	// FlushRPS / FlushBurst bound the outbound request rate.
	FlushRPS   float64
	FlushBurst int
	// ProgressStep is the playhead progress (seconds of media time) required
	// between two time_update events of one session.
	ProgressStep float64
	// Timeout applies to each ingestion POST.
	Timeout time.Duration
}

// ManifestConfig configures master manifest fetching.
type ManifestConfig struct {
	FetchTimeout time.Duration
	CacheTTL     time.Duration
	// MaxBytes rejects oversized manifest bodies.
	MaxBytes int64
	// AllowHosts / AllowCIDRs / AllowPorts / AllowSchemes feed the outbound policy.
	AllowHosts   []string
	AllowCIDRs   []string
	AllowPorts   []int
	AllowSchemes []string
}

// CacheConfig selects the manifest cache backend.
type CacheConfig struct {
	Backend         string // "memory" or "redis"
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CleanupInterval time.Duration
}

// StoreConfig selects the session journal backend.
type StoreConfig struct {
	Backend string // "memory", "sqlite" or "badger"
	Path    string // resolved under DataDir when relative
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled      bool
	Exporter     string // "grpc" or "http"
	Endpoint     string
	SamplingRate float64
	Environment  string
}

// APIConfig holds ingress middleware settings.
type APIConfig struct {
	RateLimitEnabled bool
	RateLimitRPS     int
	RateLimitBurst   int
	CORSOrigins      []string
}

// StatusConfig configures the periodic status-file export.
type StatusConfig struct {
	// File is the export path. Empty disables the exporter.
	File     string
	Interval time.Duration
}

// Duration wraps time.Duration so YAML files can declare durations as
// Go duration strings ("500ms", "1m30s") or plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return err
		}
		*d = Duration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// FileConfig mirrors the YAML schema. Pointer fields distinguish "absent"
// from zero values so file settings only override what they actually declare.
type FileConfig struct {
	Listen        *string `yaml:"listen"`
	MetricsListen *string `yaml:"metrics_listen"`
	DataDir       *string `yaml:"data_dir"`
	LogLevel      *string `yaml:"log_level"`
	APIToken      *string `yaml:"api_token"`

	Sessions *struct {
		MaxSessions   *int      `yaml:"max_sessions"`
		RecoveryDelay *Duration `yaml:"recovery_delay"`
		StallTimeout  *Duration `yaml:"stall_timeout"`
	} `yaml:"sessions"`

	Telemetry *struct {
		Endpoint      *string   `yaml:"endpoint"`
		QueueSize     *int      `yaml:"queue_size"`
		BatchSize     *int      `yaml:"batch_size"`
		FlushInterval *Duration `yaml:"flush_interval"`
		FlushRPS      *float64  `yaml:"flush_rps"`
		FlushBurst    *int      `yaml:"flush_burst"`
		ProgressStep  *float64  `yaml:"progress_step"`
		Timeout       *Duration `yaml:"timeout"`
	} `yaml:"telemetry"`

	Manifest *struct {
		FetchTimeout *Duration `yaml:"fetch_timeout"`
		CacheTTL     *Duration `yaml:"cache_ttl"`
		MaxBytes     *int64    `yaml:"max_bytes"`
		AllowHosts   []string  `yaml:"allow_hosts"`
		AllowCIDRs   []string  `yaml:"allow_cidrs"`
		AllowPorts   []int     `yaml:"allow_ports"`
		AllowSchemes []string  `yaml:"allow_schemes"`
	} `yaml:"manifest"`

	Cache *struct {
		Backend         *string   `yaml:"backend"`
		RedisAddr       *string   `yaml:"redis_addr"`
		RedisPassword   *string   `yaml:"redis_password"`
		RedisDB         *int      `yaml:"redis_db"`
		CleanupInterval *Duration `yaml:"cleanup_interval"`
	} `yaml:"cache"`

	Store *struct {
		Backend *string `yaml:"backend"`
		Path    *string `yaml:"path"`
	} `yaml:"store"`

	Tracing *struct {
		Enabled      *bool    `yaml:"enabled"`
		Exporter     *string  `yaml:"exporter"`
		Endpoint     *string  `yaml:"endpoint"`
		SamplingRate *float64 `yaml:"sampling_rate"`
		Environment  *string  `yaml:"environment"`
	} `yaml:"tracing"`

	API *struct {
		RateLimitEnabled *bool    `yaml:"rate_limit_enabled"`
		RateLimitRPS     *int     `yaml:"rate_limit_rps"`
		RateLimitBurst   *int     `yaml:"rate_limit_burst"`
		CORSOrigins      []string `yaml:"cors_origins"`
	} `yaml:"api"`

	Status *struct {
		File     *string   `yaml:"file"`
		Interval *Duration `yaml:"interval"`
	} `yaml:"status"`
}

// SPDX-License-Identifier: MIT

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
var ErrUnknownConfigField = errors.New("unknown config field")

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Load resolves the configuration in strict order:
// defaults -> file (strict schema) -> environment -> validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	mergeEnvConfig(&cfg)

	// Keep DataDir absolute so relative store/status paths resolve predictably.
	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	if cfg.Store.Path != "" && !filepath.IsAbs(cfg.Store.Path) {
		cfg.Store.Path = filepath.Join(cfg.DataDir, cfg.Store.Path)
	}
	if cfg.Status.File != "" && !filepath.IsAbs(cfg.Status.File) {
		cfg.Status.File = filepath.Join(cfg.DataDir, cfg.Status.File)
	}

	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Listen:        ":8080",
		MetricsListen: ":9090",
		DataDir:       "./data",
		LogLevel:      "info",
		Sessions: SessionConfig{
			MaxSessions:   64,
			RecoveryDelay: 2 * time.Second,
			StallTimeout:  8 * time.Second,
		},
		Telemetry: TelemetryConfig{
			QueueSize:     1024,
			BatchSize:     32,
			FlushInterval: 2 * time.Second,
			FlushRPS:      5,
			FlushBurst:    10,
			ProgressStep:  5,
			Timeout:       5 * time.Second,
		},
		Manifest: ManifestConfig{
			FetchTimeout: 10 * time.Second,
			CacheTTL:     30 * time.Second,
			MaxBytes:     2 << 20,
			AllowSchemes: []string{"http", "https"},
		},
		Cache: CacheConfig{
			Backend:         "memory",
			RedisDB:         0,
			CleanupInterval: time.Minute,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "sessions.db",
		},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			SamplingRate: 0.1,
			Environment:  "production",
		},
		API: APIConfig{
			RateLimitEnabled: true,
			RateLimitRPS:     50,
			RateLimitBurst:   100,
		},
		Status: StatusConfig{
			Interval: 15 * time.Second,
		},
	}
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	var cfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, err
	}
	return &cfg, nil
}

// mergeFileConfig applies file-declared values over the defaults.
func mergeFileConfig(cfg *AppConfig, file *FileConfig) {
	if file == nil {
		return
	}
	setStr(&cfg.Listen, file.Listen)
	setStr(&cfg.MetricsListen, file.MetricsListen)
	setStr(&cfg.DataDir, file.DataDir)
	setStr(&cfg.LogLevel, file.LogLevel)
	setStr(&cfg.APIToken, file.APIToken)

	if s := file.Sessions; s != nil {
		setInt(&cfg.Sessions.MaxSessions, s.MaxSessions)
		setDur(&cfg.Sessions.RecoveryDelay, s.RecoveryDelay)
		setDur(&cfg.Sessions.StallTimeout, s.StallTimeout)
	}
	if t := file.Telemetry; t != nil {
		setStr(&cfg.Telemetry.Endpoint, t.Endpoint)
		setInt(&cfg.Telemetry.QueueSize, t.QueueSize)
		setInt(&cfg.Telemetry.BatchSize, t.BatchSize)
		setDur(&cfg.Telemetry.FlushInterval, t.FlushInterval)
		setFloat(&cfg.Telemetry.FlushRPS, t.FlushRPS)
		setInt(&cfg.Telemetry.FlushBurst, t.FlushBurst)
		setFloat(&cfg.Telemetry.ProgressStep, t.ProgressStep)
		setDur(&cfg.Telemetry.Timeout, t.Timeout)
	}
	if m := file.Manifest; m != nil {
		setDur(&cfg.Manifest.FetchTimeout, m.FetchTimeout)
		setDur(&cfg.Manifest.CacheTTL, m.CacheTTL)
		setInt64(&cfg.Manifest.MaxBytes, m.MaxBytes)
		if m.AllowHosts != nil {
			cfg.Manifest.AllowHosts = m.AllowHosts
		}
		if m.AllowCIDRs != nil {
			cfg.Manifest.AllowCIDRs = m.AllowCIDRs
		}
		if m.AllowPorts != nil {
			cfg.Manifest.AllowPorts = m.AllowPorts
		}
		if m.AllowSchemes != nil {
			cfg.Manifest.AllowSchemes = m.AllowSchemes
		}
	}
	if c := file.Cache; c != nil {
		setStr(&cfg.Cache.Backend, c.Backend)
		setStr(&cfg.Cache.RedisAddr, c.RedisAddr)
		setStr(&cfg.Cache.RedisPassword, c.RedisPassword)
		setInt(&cfg.Cache.RedisDB, c.RedisDB)
		setDur(&cfg.Cache.CleanupInterval, c.CleanupInterval)
	}
	if s := file.Store; s != nil {
		setStr(&cfg.Store.Backend, s.Backend)
		setStr(&cfg.Store.Path, s.Path)
	}
	if t := file.Tracing; t != nil {
		setBool(&cfg.Tracing.Enabled, t.Enabled)
		setStr(&cfg.Tracing.Exporter, t.Exporter)
		setStr(&cfg.Tracing.Endpoint, t.Endpoint)
		setFloat(&cfg.Tracing.SamplingRate, t.SamplingRate)
		setStr(&cfg.Tracing.Environment, t.Environment)
	}
	if a := file.API; a != nil {
		setBool(&cfg.API.RateLimitEnabled, a.RateLimitEnabled)
		setInt(&cfg.API.RateLimitRPS, a.RateLimitRPS)
		setInt(&cfg.API.RateLimitBurst, a.RateLimitBurst)
		if a.CORSOrigins != nil {
			cfg.API.CORSOrigins = a.CORSOrigins
		}
	}
	if s := file.Status; s != nil {
		setStr(&cfg.Status.File, s.File)
		setDur(&cfg.Status.Interval, s.Interval)
	}
}

// mergeEnvConfig applies environment overrides (highest precedence).
func mergeEnvConfig(cfg *AppConfig) {
	cfg.Listen = ParseString("PLAYBACKD_LISTEN", cfg.Listen)
	cfg.MetricsListen = ParseString("PLAYBACKD_METRICS_LISTEN", cfg.MetricsListen)
	cfg.DataDir = ParseString("PLAYBACKD_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = ParseString("PLAYBACKD_LOG_LEVEL", cfg.LogLevel)
	cfg.APIToken = ParseString("PLAYBACKD_API_TOKEN", cfg.APIToken)

	cfg.Sessions.MaxSessions = ParseInt("PLAYBACKD_MAX_SESSIONS", cfg.Sessions.MaxSessions)
	cfg.Sessions.RecoveryDelay = ParseDuration("PLAYBACKD_RECOVERY_DELAY", cfg.Sessions.RecoveryDelay)
	cfg.Sessions.StallTimeout = ParseDuration("PLAYBACKD_STALL_TIMEOUT", cfg.Sessions.StallTimeout)

	cfg.Telemetry.Endpoint = ParseString("PLAYBACKD_TELEMETRY_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.QueueSize = ParseInt("PLAYBACKD_TELEMETRY_QUEUE_SIZE", cfg.Telemetry.QueueSize)
	cfg.Telemetry.BatchSize = ParseInt("PLAYBACKD_TELEMETRY_BATCH_SIZE", cfg.Telemetry.BatchSize)
	cfg.Telemetry.FlushInterval = ParseDuration("PLAYBACKD_TELEMETRY_FLUSH_INTERVAL", cfg.Telemetry.FlushInterval)
	cfg.Telemetry.FlushRPS = ParseFloat("PLAYBACKD_TELEMETRY_FLUSH_RPS", cfg.Telemetry.FlushRPS)
	cfg.Telemetry.FlushBurst = ParseInt("PLAYBACKD_TELEMETRY_FLUSH_BURST", cfg.Telemetry.FlushBurst)
	cfg.Telemetry.ProgressStep = ParseFloat("PLAYBACKD_TELEMETRY_PROGRESS_STEP", cfg.Telemetry.ProgressStep)
	cfg.Telemetry.Timeout = ParseDuration("PLAYBACKD_TELEMETRY_TIMEOUT", cfg.Telemetry.Timeout)

	cfg.Manifest.FetchTimeout = ParseDuration("PLAYBACKD_MANIFEST_TIMEOUT", cfg.Manifest.FetchTimeout)
	cfg.Manifest.CacheTTL = ParseDuration("PLAYBACKD_MANIFEST_CACHE_TTL", cfg.Manifest.CacheTTL)
	cfg.Manifest.MaxBytes = ParseInt64("PLAYBACKD_MANIFEST_MAX_BYTES", cfg.Manifest.MaxBytes)
	cfg.Manifest.AllowHosts = ParseStringSlice("PLAYBACKD_MANIFEST_ALLOW_HOSTS", cfg.Manifest.AllowHosts)
	cfg.Manifest.AllowCIDRs = ParseStringSlice("PLAYBACKD_MANIFEST_ALLOW_CIDRS", cfg.Manifest.AllowCIDRs)
	cfg.Manifest.AllowSchemes = ParseStringSlice("PLAYBACKD_MANIFEST_ALLOW_SCHEMES", cfg.Manifest.AllowSchemes)

	cfg.Cache.Backend = ParseString("PLAYBACKD_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.RedisAddr = ParseString("PLAYBACKD_REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = ParseString("PLAYBACKD_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = ParseInt("PLAYBACKD_REDIS_DB", cfg.Cache.RedisDB)

	cfg.Store.Backend = ParseString("PLAYBACKD_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = ParseString("PLAYBACKD_STORE_PATH", cfg.Store.Path)

	cfg.Tracing.Enabled = ParseBool("PLAYBACKD_OTEL_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = ParseString("PLAYBACKD_OTEL_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = ParseString("PLAYBACKD_OTEL_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = ParseFloat("PLAYBACKD_OTEL_SAMPLING", cfg.Tracing.SamplingRate)
	cfg.Tracing.Environment = ParseString("PLAYBACKD_OTEL_ENVIRONMENT", cfg.Tracing.Environment)

	cfg.API.RateLimitEnabled = ParseBool("PLAYBACKD_RATE_LIMIT_ENABLED", cfg.API.RateLimitEnabled)
	cfg.API.RateLimitRPS = ParseInt("PLAYBACKD_RATE_LIMIT_RPS", cfg.API.RateLimitRPS)
	cfg.API.RateLimitBurst = ParseInt("PLAYBACKD_RATE_LIMIT_BURST", cfg.API.RateLimitBurst)
	cfg.API.CORSOrigins = ParseStringSlice("PLAYBACKD_CORS_ORIGINS", cfg.API.CORSOrigins)

	cfg.Status.File = ParseString("PLAYBACKD_STATUS_FILE", cfg.Status.File)
	cfg.Status.Interval = ParseDuration("PLAYBACKD_STATUS_INTERVAL", cfg.Status.Interval)
}

func setStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setInt64(dst *int64, src *int64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setDur(dst *time.Duration, src *Duration) {
	if src != nil {
		*dst = src.Std()
	}
}

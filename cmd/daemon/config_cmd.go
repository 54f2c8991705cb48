// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ManuGH/playbackd/internal/config"
	"github.com/ManuGH/playbackd/internal/version"
	"gopkg.in/yaml.v3"
)

func runConfigCLI(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage()
		return 0
	}

	switch args[0] {
	case "validate":
		return runConfigValidate(args[1:])
	case "dump":
		return runConfigDump(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage()
		return 2
	}
}

func printConfigUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  playbackd config validate [--file|-f config.yaml]")
	fmt.Fprintln(os.Stderr, "  playbackd config dump --effective [--file|-f config.yaml] [--format=yaml|json]")
}

func runConfigValidate(args []string) int {
	fs := flag.NewFlagSet("playbackd config validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var file string
	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	configPath := strings.TrimSpace(file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}
	if configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --file is required (no default config.yaml found in $PLAYBACKD_DATA_DIR)")
		return 2
	}

	loader := config.NewLoader(configPath, version.Version)
	if _, err := loader.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error in %s:\n  %v\n", configPath, err)
		return 1
	}

	fmt.Printf("✓ %s is valid\n", configPath)
	return 0
}

func runConfigDump(args []string) int {
	fs := flag.NewFlagSet("playbackd config dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var file string
	var format string
	var effective bool

	fs.StringVar(&file, "file", "", "path to YAML configuration file")
	fs.StringVar(&file, "f", "", "path to YAML configuration file (shorthand)")
	fs.StringVar(&format, "format", "yaml", "output format: yaml or json")
	fs.BoolVar(&effective, "effective", false, "dump effective configuration (defaults + file + env)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !effective {
		fmt.Fprintln(os.Stderr, "Error: --effective is required")
		return 2
	}

	// An empty path is fine here: the dump then shows defaults + env.
	configPath := strings.TrimSpace(file)
	if configPath == "" {
		configPath = resolveDefaultConfigPath()
	}

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error in %s:\n  %v\n", configPath, err)
		return 1
	}

	view := effectiveViewFromAppConfig(cfg)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode YAML: %v\n", err)
			return 1
		}
		_ = enc.Close()
		return 0
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unsupported format: %s (use yaml or json)\n", format)
		return 2
	}
}

// effectiveView is the dump shape: the resolved configuration keyed like
// the YAML schema, with durations rendered as strings and secrets
// redacted.
type effectiveView struct {
	Listen        string `yaml:"listen" json:"listen"`
	MetricsListen string `yaml:"metrics_listen" json:"metrics_listen"`
	DataDir       string `yaml:"data_dir" json:"data_dir"`
	LogLevel      string `yaml:"log_level" json:"log_level"`
	APIToken      string `yaml:"api_token,omitempty" json:"api_token,omitempty"`

	Sessions struct {
		MaxSessions   int    `yaml:"max_sessions" json:"max_sessions"`
		RecoveryDelay string `yaml:"recovery_delay" json:"recovery_delay"`
		StallTimeout  string `yaml:"stall_timeout" json:"stall_timeout"`
	} `yaml:"sessions" json:"sessions"`

	Telemetry struct {
		Endpoint      string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
		QueueSize     int     `yaml:"queue_size" json:"queue_size"`
		BatchSize     int     `yaml:"batch_size" json:"batch_size"`
		FlushInterval string  `yaml:"flush_interval" json:"flush_interval"`
		FlushRPS      float64 `yaml:"flush_rps" json:"flush_rps"`
		FlushBurst    int     `yaml:"flush_burst" json:"flush_burst"`
		ProgressStep  float64 `yaml:"progress_step" json:"progress_step"`
		Timeout       string  `yaml:"timeout" json:"timeout"`
	} `yaml:"telemetry" json:"telemetry"`

	Manifest struct {
		FetchTimeout string   `yaml:"fetch_timeout" json:"fetch_timeout"`
		CacheTTL     string   `yaml:"cache_ttl" json:"cache_ttl"`
		MaxBytes     int64    `yaml:"max_bytes" json:"max_bytes"`
		AllowHosts   []string `yaml:"allow_hosts,omitempty" json:"allow_hosts,omitempty"`
		AllowCIDRs   []string `yaml:"allow_cidrs,omitempty" json:"allow_cidrs,omitempty"`
		AllowPorts   []int    `yaml:"allow_ports,omitempty" json:"allow_ports,omitempty"`
		AllowSchemes []string `yaml:"allow_schemes" json:"allow_schemes"`
	} `yaml:"manifest" json:"manifest"`

	Cache struct {
		Backend         string `yaml:"backend" json:"backend"`
		RedisAddr       string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
		RedisPassword   string `yaml:"redis_password,omitempty" json:"redis_password,omitempty"`
		RedisDB         int    `yaml:"redis_db" json:"redis_db"`
		CleanupInterval string `yaml:"cleanup_interval" json:"cleanup_interval"`
	} `yaml:"cache" json:"cache"`

	Store struct {
		Backend string `yaml:"backend" json:"backend"`
		Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	} `yaml:"store" json:"store"`

	Tracing struct {
		Enabled      bool    `yaml:"enabled" json:"enabled"`
		Exporter     string  `yaml:"exporter" json:"exporter"`
		Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
		SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate"`
		Environment  string  `yaml:"environment" json:"environment"`
	} `yaml:"tracing" json:"tracing"`

	API struct {
		RateLimitEnabled bool     `yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
		RateLimitRPS     int      `yaml:"rate_limit_rps" json:"rate_limit_rps"`
		RateLimitBurst   int      `yaml:"rate_limit_burst" json:"rate_limit_burst"`
		CORSOrigins      []string `yaml:"cors_origins,omitempty" json:"cors_origins,omitempty"`
	} `yaml:"api" json:"api"`

	Status struct {
		File     string `yaml:"file,omitempty" json:"file,omitempty"`
		Interval string `yaml:"interval" json:"interval"`
	} `yaml:"status" json:"status"`
}

func effectiveViewFromAppConfig(cfg config.AppConfig) effectiveView {
	var v effectiveView

	v.Listen = cfg.Listen
	v.MetricsListen = cfg.MetricsListen
	v.DataDir = cfg.DataDir
	v.LogLevel = cfg.LogLevel
	if cfg.APIToken != "" {
		v.APIToken = "***"
	}

	v.Sessions.MaxSessions = cfg.Sessions.MaxSessions
	v.Sessions.RecoveryDelay = cfg.Sessions.RecoveryDelay.String()
	v.Sessions.StallTimeout = cfg.Sessions.StallTimeout.String()

	v.Telemetry.Endpoint = cfg.Telemetry.Endpoint
	v.Telemetry.QueueSize = cfg.Telemetry.QueueSize
	v.Telemetry.BatchSize = cfg.Telemetry.BatchSize
	v.Telemetry.FlushInterval = cfg.Telemetry.FlushInterval.String()
	v.Telemetry.FlushRPS = cfg.Telemetry.FlushRPS
	v.Telemetry.FlushBurst = cfg.Telemetry.FlushBurst
	v.Telemetry.ProgressStep = cfg.Telemetry.ProgressStep
	v.Telemetry.Timeout = cfg.Telemetry.Timeout.String()

	v.Manifest.FetchTimeout = cfg.Manifest.FetchTimeout.String()
	v.Manifest.CacheTTL = cfg.Manifest.CacheTTL.String()
	v.Manifest.MaxBytes = cfg.Manifest.MaxBytes
	v.Manifest.AllowHosts = cfg.Manifest.AllowHosts
	v.Manifest.AllowCIDRs = cfg.Manifest.AllowCIDRs
	v.Manifest.AllowPorts = cfg.Manifest.AllowPorts
	v.Manifest.AllowSchemes = cfg.Manifest.AllowSchemes

	v.Cache.Backend = cfg.Cache.Backend
	v.Cache.RedisAddr = cfg.Cache.RedisAddr
	if cfg.Cache.RedisPassword != "" {
		v.Cache.RedisPassword = "***"
	}
	v.Cache.RedisDB = cfg.Cache.RedisDB
	v.Cache.CleanupInterval = cfg.Cache.CleanupInterval.String()

	v.Store.Backend = cfg.Store.Backend
	v.Store.Path = cfg.Store.Path

	v.Tracing.Enabled = cfg.Tracing.Enabled
	v.Tracing.Exporter = cfg.Tracing.Exporter
	v.Tracing.Endpoint = cfg.Tracing.Endpoint
	v.Tracing.SamplingRate = cfg.Tracing.SamplingRate
	v.Tracing.Environment = cfg.Tracing.Environment

	v.API.RateLimitEnabled = cfg.API.RateLimitEnabled
	v.API.RateLimitRPS = cfg.API.RateLimitRPS
	v.API.RateLimitBurst = cfg.API.RateLimitBurst
	v.API.CORSOrigins = cfg.API.CORSOrigins

	v.Status.File = cfg.Status.File
	v.Status.Interval = cfg.Status.Interval.String()

	return v
}

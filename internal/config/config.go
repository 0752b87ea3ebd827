// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

// Package config provides centralized configuration for Vicinus.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//
//  1. Built-in defaults
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (DUCKDB_PATH, ITEMCF_TOP_N, LOG_LEVEL, ...)
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import "time"

// Config holds all application configuration for the daemon and the
// training CLI.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Loader   LoaderConfig   `koanf:"loader"`
	Service  ServiceConfig  `koanf:"service"`
	ItemCF   ItemCFConfig   `koanf:"itemcf"`
	Random   RandomConfig   `koanf:"random"`
	Artifact ArtifactConfig `koanf:"artifact"`
	Training TrainingConfig `koanf:"training"`
	Breaker  BreakerConfig  `koanf:"breaker"`
	Ops      OpsConfig      `koanf:"ops"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatabaseConfig holds DuckDB interaction store settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" for an ephemeral store.
	Path string `koanf:"path"`

	// MaxMemory limits DuckDB memory usage (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`

	// SeedMockData loads a small synthetic interaction set on startup.
	// Intended for development and CI only.
	SeedMockData bool `koanf:"seed_mock_data"`
}

// LoaderConfig holds data loader settings.
type LoaderConfig struct {
	// EventTypes restricts loading to the listed interaction event types.
	// Empty means all types.
	EventTypes []string `koanf:"event_types"`

	// QueryTimeout bounds each interaction store read.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// ServiceConfig holds recommendation service settings.
type ServiceConfig struct {
	// DefaultAlgorithm is used when a request names no algorithm.
	DefaultAlgorithm string `koanf:"default_algorithm"`

	// DefaultK is the result size when a request passes k=0.
	DefaultK int `koanf:"default_k"`

	// MaxK is the upper bound for requested k. Requests outside
	// [1, MaxK] are rejected, never clamped.
	MaxK int `koanf:"max_k"`
}

// ItemCFConfig holds item-neighbor training parameters.
type ItemCFConfig struct {
	// MinInteractions excludes items with fewer total interactions
	// before pairing.
	MinInteractions int `koanf:"min_interactions"`

	// TopN bounds the neighbor list kept per item.
	TopN int `koanf:"top_n"`

	// MinSimilarity drops neighbors scoring below this threshold.
	MinSimilarity float64 `koanf:"min_similarity"`

	// Method selects the similarity measure: "cosine" or "jaccard".
	Method string `koanf:"method"`
}

// RandomConfig holds random strategy settings.
type RandomConfig struct {
	// Seed fixes the random source for reproducible sampling.
	// 0 = unseeded (non-reproducible, the production default).
	Seed int64 `koanf:"seed"`
}

// ArtifactConfig holds similarity artifact persistence settings.
type ArtifactConfig struct {
	// Dir is the directory holding serialized similarity artifacts.
	Dir string `koanf:"dir"`

	// KeepVersions is how many artifact versions Prune retains.
	KeepVersions int `koanf:"keep_versions"`
}

// TrainingConfig holds the periodic training scheduler settings.
type TrainingConfig struct {
	// Enabled runs the supervised training loop in the daemon.
	Enabled bool `koanf:"enabled"`

	// Interval is how often to retrain.
	Interval time.Duration `koanf:"interval"`

	// OnStartup triggers one training run when the daemon starts.
	OnStartup bool `koanf:"on_startup"`

	// Timeout bounds a single training run.
	Timeout time.Duration `koanf:"timeout"`
}

// BreakerConfig holds the interaction store circuit breaker settings.
type BreakerConfig struct {
	// Enabled wraps store reads in a circuit breaker.
	Enabled bool `koanf:"enabled"`

	// MaxRequests allowed through in half-open state.
	MaxRequests uint32 `koanf:"max_requests"`

	// Interval is the cyclic reset period for failure counts.
	Interval time.Duration `koanf:"interval"`

	// Timeout is the open-state duration before probing half-open.
	Timeout time.Duration `koanf:"timeout"`

	// FailureThreshold is the consecutive failures before opening.
	FailureThreshold uint32 `koanf:"failure_threshold"`
}

// OpsConfig holds the operational HTTP listener settings
// (health, readiness, Prometheus metrics).
type OpsConfig struct {
	// Enabled starts the ops listener in the daemon.
	Enabled bool `koanf:"enabled"`

	// Addr is the listen address, e.g. ":9565".
	Addr string `koanf:"addr"`

	// Timeout bounds request read/write on the listener.
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format: json or console.
	Format string `koanf:"format"`

	// Caller includes file:line in log output.
	Caller bool `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "/data/vicinus.duckdb",
			MaxMemory:    "1GB",
			Threads:      0, // 0 = runtime.NumCPU()
			SeedMockData: false,
		},
		Loader: LoaderConfig{
			EventTypes:   nil, // all event types
			QueryTimeout: 30 * time.Second,
		},
		Service: ServiceConfig{
			DefaultAlgorithm: "popular",
			DefaultK:         10,
			MaxK:             100,
		},
		ItemCF: ItemCFConfig{
			MinInteractions: 1,
			TopN:            50,
			MinSimilarity:   0.1,
			Method:          "cosine",
		},
		Random: RandomConfig{
			Seed: 0, // unseeded
		},
		Artifact: ArtifactConfig{
			Dir:          "/data/artifacts",
			KeepVersions: 3,
		},
		Training: TrainingConfig{
			Enabled:   false, // opt-in: training is expected to run out-of-band
			Interval:  24 * time.Hour,
			OnStartup: false,
			Timeout:   30 * time.Minute,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         30 * time.Second,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
		Ops: OpsConfig{
			Enabled: true,
			Addr:    ":9565",
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

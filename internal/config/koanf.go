// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in priority order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/vicinus/config.yaml",
	"/etc/vicinus/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using Koanf v2 with layered sources:
//
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// The returned Config has already passed Validate.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// LOG_LEVEL -> logging.level, ITEMCF_TOP_N -> itemcf.top_n
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Env vars arrive as strings; known slice fields are comma-split.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as
// comma-separated slices when they arrive from the environment.
var sliceConfigPaths = []string{
	"loader.event_types",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - DUCKDB_PATH -> database.path
//   - ITEMCF_TOP_N -> itemcf.top_n
//   - TRAIN_INTERVAL -> training.interval
//   - LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",
		"seed_mock_data":    "database.seed_mock_data",

		// Loader
		"loader_event_types":   "loader.event_types",
		"loader_query_timeout": "loader.query_timeout",

		// Service
		"service_default_algorithm": "service.default_algorithm",
		"service_default_k":         "service.default_k",
		"service_max_k":             "service.max_k",

		// ItemCF training parameters
		"itemcf_min_interactions": "itemcf.min_interactions",
		"itemcf_top_n":            "itemcf.top_n",
		"itemcf_min_similarity":   "itemcf.min_similarity",
		"itemcf_method":           "itemcf.method",

		// Random strategy
		"random_seed": "random.seed",

		// Artifact store
		"artifact_dir":           "artifact.dir",
		"artifact_keep_versions": "artifact.keep_versions",

		// Training scheduler
		"train_enabled":    "training.enabled",
		"train_interval":   "training.interval",
		"train_on_startup": "training.on_startup",
		"train_timeout":    "training.timeout",

		// Circuit breaker
		"breaker_enabled":           "breaker.enabled",
		"breaker_max_requests":      "breaker.max_requests",
		"breaker_interval":          "breaker.interval",
		"breaker_timeout":           "breaker.timeout",
		"breaker_failure_threshold": "breaker.failure_threshold",

		// Ops listener
		"ops_enabled": "ops.enabled",
		"ops_addr":    "ops.addr",
		"ops_timeout": "ops.timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if path, ok := envMappings[key]; ok {
		return path
	}

	// Unknown variables are ignored rather than guessed at.
	return ""
}

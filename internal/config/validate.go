// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateItemCF(); err != nil {
		return err
	}
	if err := c.validateArtifact(); err != nil {
		return err
	}
	if err := c.validateTraining(); err != nil {
		return err
	}
	if err := c.validateOps(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("database.threads must be >= 0, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateService() error {
	if c.Service.DefaultK < 1 {
		return fmt.Errorf("service.default_k must be >= 1, got %d", c.Service.DefaultK)
	}
	if c.Service.MaxK < c.Service.DefaultK {
		return fmt.Errorf("service.max_k must be >= service.default_k, got %d < %d",
			c.Service.MaxK, c.Service.DefaultK)
	}
	if c.Service.DefaultAlgorithm == "" {
		return fmt.Errorf("service.default_algorithm must not be empty")
	}
	return nil
}

func (c *Config) validateItemCF() error {
	if c.ItemCF.MinInteractions < 1 {
		return fmt.Errorf("itemcf.min_interactions must be >= 1, got %d", c.ItemCF.MinInteractions)
	}
	if c.ItemCF.TopN < 1 {
		return fmt.Errorf("itemcf.top_n must be >= 1, got %d", c.ItemCF.TopN)
	}
	if c.ItemCF.MinSimilarity < 0 || c.ItemCF.MinSimilarity > 1 {
		return fmt.Errorf("itemcf.min_similarity must be in [0, 1], got %f", c.ItemCF.MinSimilarity)
	}
	switch strings.ToLower(c.ItemCF.Method) {
	case "cosine", "jaccard":
		return nil
	default:
		return fmt.Errorf("itemcf.method must be one of [cosine, jaccard], got %q", c.ItemCF.Method)
	}
}

func (c *Config) validateArtifact() error {
	if c.Artifact.Dir == "" {
		return fmt.Errorf("artifact.dir must not be empty")
	}
	if c.Artifact.KeepVersions < 1 {
		return fmt.Errorf("artifact.keep_versions must be >= 1, got %d", c.Artifact.KeepVersions)
	}
	return nil
}

func (c *Config) validateTraining() error {
	if !c.Training.Enabled {
		return nil
	}
	if c.Training.Interval <= 0 {
		return fmt.Errorf("training.interval must be > 0 when training is enabled, got %s",
			c.Training.Interval)
	}
	if c.Training.Timeout <= 0 {
		return fmt.Errorf("training.timeout must be > 0 when training is enabled, got %s",
			c.Training.Timeout)
	}
	return nil
}

func (c *Config) validateOps() error {
	if !c.Ops.Enabled {
		return nil
	}
	if c.Ops.Addr == "" {
		return fmt.Errorf("ops.addr must not be empty when the ops listener is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled", "":
	default:
		return fmt.Errorf("logging.level must be a valid level, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "":
		return nil
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
}

// Copyright (c) 2025 Open Swarm Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package hive

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the coordinator's construction-time configuration: everything
// the core needs that the CLI/environment collaborator would otherwise
// supply (spec.md §6 — "the coordinator accepts a fully-populated config
// value at construction").
type Config struct {
	Supervisor  SupervisorConfig  `yaml:"supervisor"`
	Verification VerificationConfig `yaml:"verification"`
	ToolBus     ToolBusConfig     `yaml:"tool_bus"`
	Batch       BatchDefaults     `yaml:"batch"`
}

// SupervisorConfig mirrors supervisor.Config's YAML-facing fields.
type SupervisorConfig struct {
	IntervalSeconds     int `yaml:"interval_seconds"`
	MaxRecoveryAttempts int `yaml:"max_recovery_attempts"`
}

// VerificationConfig mirrors the adaptive-threshold tracker's tunables.
type VerificationConfig struct {
	WindowSize         int     `yaml:"window_size"`
	EveryOutcomes      int     `yaml:"every_outcomes"`
	EveryIntervalMin   int     `yaml:"every_interval_minutes"`
	MinSamples         int     `yaml:"min_samples"`
	InitialThreshold   float64 `yaml:"initial_threshold"`
}

// ToolBusConfig mirrors the bus's rate-limit and backpressure knobs.
type ToolBusConfig struct {
	RateLimitPerSecond    float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst        float64 `yaml:"rate_limit_burst"`
	MaxConcurrentMessages int     `yaml:"max_concurrent_messages"`
}

// BatchDefaults mirrors toolbus.BatchConfig, per spec.md §6's Batch config
// field list (max_concurrent 1-50 default 10, etc).
type BatchDefaults struct {
	MaxConcurrent        int `yaml:"max_concurrent"`
	DefaultTimeoutMS     int `yaml:"default_timeout_ms"`
	DependencyTimeoutMS  int `yaml:"dependency_timeout_ms"`
	RetryAttempts        int `yaml:"retry_attempts"`
}

// DefaultConfig returns every field at its spec.md default.
func DefaultConfig() Config {
	return Config{
		Supervisor: SupervisorConfig{IntervalSeconds: 30, MaxRecoveryAttempts: 3},
		Verification: VerificationConfig{
			WindowSize: 200, EveryOutcomes: 50, EveryIntervalMin: 10,
			MinSamples: 20, InitialThreshold: 0.75,
		},
		ToolBus: ToolBusConfig{RateLimitPerSecond: 50, RateLimitBurst: 50, MaxConcurrentMessages: 2000},
		Batch: BatchDefaults{
			MaxConcurrent: 10, DefaultTimeoutMS: 30_000,
			DependencyTimeoutMS: 300_000, RetryAttempts: 3,
		},
	}
}

// LoadConfig reads and parses a YAML config file over DefaultConfig, so
// fields omitted from the file keep their defaults; a field set explicitly
// to zero stays zero.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, Wrap(KindValidation, "hive.load_config", fmt.Errorf("reading config: %w", err))
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, Wrap(KindValidation, "hive.load_config", fmt.Errorf("parsing config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every bound spec.md §6 names explicitly.
func (c Config) Validate() error {
	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 50 {
		return New(KindValidation, "hive.config.validate", "batch.max_concurrent must be in [1,50]")
	}
	if c.Batch.RetryAttempts < 1 || c.Batch.RetryAttempts > 10 {
		return New(KindValidation, "hive.config.validate", "batch.retry_attempts must be in [1,10]")
	}
	if c.Supervisor.IntervalSeconds <= 0 {
		return New(KindValidation, "hive.config.validate", "supervisor.interval_seconds must be positive")
	}
	if c.ToolBus.MaxConcurrentMessages < 0 {
		return New(KindValidation, "hive.config.validate", "tool_bus.max_concurrent_messages must be non-negative")
	}
	return nil
}

// SupervisorInterval converts the YAML-facing seconds field to a duration.
func (c SupervisorConfig) SupervisorInterval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// EveryInterval converts the YAML-facing minutes field to a duration.
func (c VerificationConfig) EveryInterval() time.Duration {
	return time.Duration(c.EveryIntervalMin) * time.Minute
}

// DependencyTimeout converts the YAML-facing milliseconds field to a duration.
func (c BatchDefaults) DependencyTimeout() time.Duration {
	return time.Duration(c.DependencyTimeoutMS) * time.Millisecond
}

// DefaultTimeout converts the YAML-facing milliseconds field to a duration.
func (c BatchDefaults) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutMS) * time.Millisecond
}

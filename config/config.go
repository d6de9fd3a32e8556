package config

import (
	"path/filepath"
	"time"

	coretypes "github.com/projecteru2/core/types"
)

// Config holds global configuration for the rwlock CLI.
type Config struct {
	// RootDir is the base directory for persistent data (run history).
	RootDir string `json:"root_dir"`
	// Sim holds workload defaults for the run command; flags override.
	Sim SimDefaults `json:"sim"`
	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log"`
}

// SimDefaults are the default workload parameters, durations in
// milliseconds.
type SimDefaults struct {
	Policy         string `json:"policy"`
	Readers        int    `json:"readers"`
	Writers        int    `json:"writers"`
	Iterations     int    `json:"iterations"`
	MaxJitterMS    int    `json:"max_jitter_ms"`
	MaxReadHoldMS  int    `json:"max_read_hold_ms"`
	MaxWriteHoldMS int    `json:"max_write_hold_ms"`
	MaxWaiters     int    `json:"max_waiters"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RootDir: "/var/lib/rwlock",
		Sim: SimDefaults{
			Policy:         "fair",
			Readers:        5,
			Writers:        2,
			Iterations:     5,
			MaxJitterMS:    200,
			MaxReadHoldMS:  200,
			MaxWriteHoldMS: 300,
		},
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// Normalize clamps nonsensical values back to defaults after an
// unmarshal from file/env.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.RootDir == "" {
		c.RootDir = def.RootDir
	}
	if c.Sim.Policy == "" {
		c.Sim.Policy = def.Sim.Policy
	}
	if c.Sim.Readers < 0 {
		c.Sim.Readers = def.Sim.Readers
	}
	if c.Sim.Writers < 0 {
		c.Sim.Writers = def.Sim.Writers
	}
	if c.Sim.Iterations <= 0 {
		c.Sim.Iterations = def.Sim.Iterations
	}
	if c.Sim.MaxJitterMS < 0 {
		c.Sim.MaxJitterMS = def.Sim.MaxJitterMS
	}
	if c.Sim.MaxReadHoldMS < 0 {
		c.Sim.MaxReadHoldMS = def.Sim.MaxReadHoldMS
	}
	if c.Sim.MaxWriteHoldMS < 0 {
		c.Sim.MaxWriteHoldMS = def.Sim.MaxWriteHoldMS
	}
	if c.Sim.MaxWaiters < 0 {
		c.Sim.MaxWaiters = 0
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// HistoryDir returns the directory holding the run history files.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.RootDir, "history")
}

// MaxJitter returns the jitter bound as a duration.
func (s SimDefaults) MaxJitter() time.Duration {
	return time.Duration(s.MaxJitterMS) * time.Millisecond
}

// MaxReadHold returns the read hold bound as a duration.
func (s SimDefaults) MaxReadHold() time.Duration {
	return time.Duration(s.MaxReadHoldMS) * time.Millisecond
}

// MaxWriteHold returns the write hold bound as a duration.
func (s SimDefaults) MaxWriteHold() time.Duration {
	return time.Duration(s.MaxWriteHoldMS) * time.Millisecond
}

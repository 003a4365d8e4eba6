package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvEngineLeaseWait    = "SENTINEL_ENGINE_LEASE_WAIT"
	EnvEngineStageTimeout = "SENTINEL_ENGINE_STAGE_TIMEOUT"
)

// EngineConfig holds orchestrator engine parameters.
type EngineConfig struct {
	// LeaseWait makes concurrent operations on the same thread queue
	// behind the lease instead of failing fast.
	LeaseWait bool `toml:"lease_wait"`

	// StageTimeout bounds each stage handler invocation.
	StageTimeout string `toml:"stage_timeout"`
}

// StageTimeoutDuration returns StageTimeout as a time.Duration.
func (c *EngineConfig) StageTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.StageTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *EngineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *EngineConfig) Merge(overlay *EngineConfig) {
	if overlay.LeaseWait {
		c.LeaseWait = true
	}
	if overlay.StageTimeout != "" {
		c.StageTimeout = overlay.StageTimeout
	}
}

func (c *EngineConfig) loadDefaults() {
	if c.StageTimeout == "" {
		c.StageTimeout = "5m"
	}
}

func (c *EngineConfig) loadEnv() {
	if v := os.Getenv(EnvEngineLeaseWait); v != "" {
		if wait, err := strconv.ParseBool(v); err == nil {
			c.LeaseWait = wait
		}
	}
	if v := os.Getenv(EnvEngineStageTimeout); v != "" {
		c.StageTimeout = v
	}
}

func (c *EngineConfig) validate() error {
	if _, err := time.ParseDuration(c.StageTimeout); err != nil {
		return fmt.Errorf("invalid stage_timeout: %w", err)
	}
	return nil
}

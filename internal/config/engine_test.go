package config_test

import (
	"testing"
	"time"

	"github.com/sentinel-compliance/sentinel/internal/config"
)

func TestEngineConfigFinalizeDefaults(t *testing.T) {
	cfg := config.EngineConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.LeaseWait {
		t.Error("LeaseWait should default to false")
	}
	if cfg.StageTimeout != "5m" {
		t.Errorf("StageTimeout = %q, want 5m", cfg.StageTimeout)
	}
	if cfg.StageTimeoutDuration() != 5*time.Minute {
		t.Errorf("StageTimeoutDuration() = %v, want 5m", cfg.StageTimeoutDuration())
	}
}

func TestEngineConfigFinalizeEnvOverrides(t *testing.T) {
	t.Setenv(config.EnvEngineLeaseWait, "true")
	t.Setenv(config.EnvEngineStageTimeout, "30s")

	cfg := config.EngineConfig{}
	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if !cfg.LeaseWait {
		t.Error("LeaseWait = false, want true")
	}
	if cfg.StageTimeoutDuration() != 30*time.Second {
		t.Errorf("StageTimeoutDuration() = %v, want 30s", cfg.StageTimeoutDuration())
	}
}

func TestEngineConfigFinalizeValidation(t *testing.T) {
	cfg := config.EngineConfig{StageTimeout: "not-a-duration"}
	if err := cfg.Finalize(); err == nil {
		t.Fatal("expected error for invalid stage_timeout, got nil")
	}
}

func TestEngineConfigMerge(t *testing.T) {
	base := config.EngineConfig{StageTimeout: "5m"}
	overlay := config.EngineConfig{LeaseWait: true, StageTimeout: "90s"}
	base.Merge(&overlay)

	if !base.LeaseWait {
		t.Error("LeaseWait = false, want true")
	}
	if base.StageTimeout != "90s" {
		t.Errorf("StageTimeout = %q, want 90s", base.StageTimeout)
	}
}

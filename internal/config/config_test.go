package config

import (
	"testing"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	InitViper()
	t.Cleanup(viper.Reset)
}

func TestDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine != "piper" {
		t.Errorf("Engine = %q, want piper", cfg.Engine)
	}
	if cfg.Speed != 1.0 {
		t.Errorf("Speed = %v, want 1.0", cfg.Speed)
	}
	if cfg.Lookahead != 3 {
		t.Errorf("Lookahead = %d, want 3", cfg.Lookahead)
	}
	if cfg.ChunkSize != 220 {
		t.Errorf("ChunkSize = %d, want 220", cfg.ChunkSize)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("SPEAKDOWN_ENGINE", "mock")
	t.Setenv("SPEAKDOWN_SPEED", "1.5")
	t.Setenv("SPEAKDOWN_RECYCLE_CAPACITY", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine != "mock" {
		t.Errorf("Engine = %q, want mock", cfg.Engine)
	}
	if cfg.Speed != 1.5 {
		t.Errorf("Speed = %v, want 1.5", cfg.Speed)
	}
	if cfg.RecycleCapacity != 25 {
		t.Errorf("RecycleCapacity = %d, want 25", cfg.RecycleCapacity)
	}
	// Untouched fields keep their file/default layer values.
	if cfg.Lookahead != 3 {
		t.Errorf("Lookahead = %d, want 3", cfg.Lookahead)
	}
}

func TestValidation(t *testing.T) {
	resetViper(t)

	t.Setenv("SPEAKDOWN_ENGINE", "espeak")
	if _, err := Load(); err == nil {
		t.Error("unknown engine should fail validation")
	}

	t.Setenv("SPEAKDOWN_ENGINE", "mock")
	t.Setenv("SPEAKDOWN_SPEED", "3.0")
	if _, err := Load(); err == nil {
		t.Error("out-of-range speed should fail validation")
	}
}

func TestEffectiveCacheDir(t *testing.T) {
	resetViper(t)

	cfg := Config{CacheDir: "/tmp/audio-cache"}
	if got := cfg.EffectiveCacheDir(); got != "/tmp/audio-cache" {
		t.Errorf("explicit dir not honored, got %q", got)
	}
	if got := (Config{}).EffectiveCacheDir(); got == "" {
		t.Error("default cache dir should never be empty")
	}
}

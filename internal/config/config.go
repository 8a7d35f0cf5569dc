// Package config resolves runtime settings from, in increasing precedence,
// built-in defaults, a YAML config file, and SPEAKDOWN_* environment
// variables. Command-line flags are bound on top by the CLI layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

const appName = "speakdown"

// Config holds every tunable the reader exposes.
type Config struct {
	// Engine selects the speech backend: "piper" or "mock".
	Engine string `env:"SPEAKDOWN_ENGINE"`

	// Speed is the initial playback rate multiplier.
	Speed float64 `env:"SPEAKDOWN_SPEED"`

	// Lookahead is how many utterances stay queued ahead of playback.
	Lookahead int `env:"SPEAKDOWN_LOOKAHEAD"`

	// ChunkSize is the preferred utterance length in characters.
	ChunkSize int `env:"SPEAKDOWN_CHUNK_SIZE"`

	// RecycleCapacity bounds the instant-rewind history.
	RecycleCapacity int `env:"SPEAKDOWN_RECYCLE_CAPACITY"`

	// ResumeAt is the character offset to resume reading from.
	ResumeAt int `env:"SPEAKDOWN_RESUME_AT"`

	// CacheDir overrides the synthesized-audio cache location.
	CacheDir string `env:"SPEAKDOWN_CACHE_DIR"`

	// CacheMaxMB bounds the audio cache size on disk.
	CacheMaxMB int `env:"SPEAKDOWN_CACHE_MAX_MB"`

	// PiperBinary overrides PATH lookup for the piper executable.
	PiperBinary string `env:"SPEAKDOWN_PIPER_BINARY"`

	// PiperModel is the narration voice model (ONNX path).
	PiperModel string `env:"SPEAKDOWN_PIPER_MODEL"`

	// PiperAnnouncementModel is the announcement voice model. Empty
	// reuses the narration model.
	PiperAnnouncementModel string `env:"SPEAKDOWN_PIPER_ANNOUNCEMENT_MODEL"`

	// Style is the glamour style for the on-screen rendering.
	Style string `env:"SPEAKDOWN_STYLE"`

	// Width word-wraps the rendering; zero disables wrapping.
	Width uint `env:"SPEAKDOWN_WIDTH"`
}

// InitViper registers the config file search path and defaults. Called once
// at startup before Load.
func InitViper() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		log.Warn("could not resolve configuration directories", "error", err)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}
	for _, d := range dirs {
		viper.AddConfigPath(d)
	}
	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")

	viper.SetDefault("engine", "piper")
	viper.SetDefault("speed", 1.0)
	viper.SetDefault("lookahead", 3)
	viper.SetDefault("chunk_size", 220)
	viper.SetDefault("recycle_capacity", 10)
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.max_mb", 100)
	viper.SetDefault("piper.binary", "")
	viper.SetDefault("piper.model", "")
	viper.SetDefault("piper.announcement_model", "")
	viper.SetDefault("style", "auto")
	viper.SetDefault("width", 0)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("could not parse configuration file", "error", err)
		}
	} else {
		log.Debug("using configuration file", "path", viper.ConfigFileUsed())
	}
}

// Load builds the effective configuration: file values first, then
// environment overrides.
func Load() (Config, error) {
	cfg := fromViper()
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.validate()
}

// fromViper reads the file-or-default layer. env.Parse only overwrites
// fields whose variables are set, so these survive as the base.
func fromViper() Config {
	return Config{
		Engine:                 viper.GetString("engine"),
		Speed:                  viper.GetFloat64("speed"),
		Lookahead:              viper.GetInt("lookahead"),
		ChunkSize:              viper.GetInt("chunk_size"),
		RecycleCapacity:        viper.GetInt("recycle_capacity"),
		CacheDir:               viper.GetString("cache.dir"),
		CacheMaxMB:             viper.GetInt("cache.max_mb"),
		PiperBinary:            viper.GetString("piper.binary"),
		PiperModel:             viper.GetString("piper.model"),
		PiperAnnouncementModel: viper.GetString("piper.announcement_model"),
		Style:                  viper.GetString("style"),
		Width:                  viper.GetUint("width"),
	}
}

func (c Config) validate() error {
	switch c.Engine {
	case "piper", "mock":
	default:
		return fmt.Errorf("unknown engine %q (want piper or mock)", c.Engine)
	}
	if c.Speed < 0.5 || c.Speed > 2.0 {
		return fmt.Errorf("speed %.2f out of range [0.5, 2.0]", c.Speed)
	}
	return nil
}

// EffectiveCacheDir returns the configured cache directory, defaulting to
// the user cache scope.
func (c Config) EffectiveCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	scope := gap.NewScope(gap.User, appName)
	dir, err := scope.CacheDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "."+appName, "cache")
	}
	return filepath.Join(dir, "audio")
}

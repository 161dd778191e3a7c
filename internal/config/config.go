// Package config loads preload settings from defaults, an optional TOML
// file and PRELOAD_ environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/iliamunaev/async-tracker/internal/apperr"
	"github.com/iliamunaev/async-tracker/internal/pool"
)

// EnvPrefix is the prefix of environment overrides. PRELOAD_AUDIO_DIR maps
// to audio.dir.
const EnvPrefix = "PRELOAD_"

// Config holds the settings of a preload run.
type Config struct {
	// Timeout bounds each action. Zero disables per-action timeouts.
	Timeout time.Duration `koanf:"timeout"`
	// RequestTimeout bounds the whole batch.
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// Concurrency is the number of decodes allowed at once.
	Concurrency int `koanf:"concurrency"`
	// ReportInterval is how often progress is logged while waiting.
	ReportInterval time.Duration `koanf:"report_interval"`

	Audio AudioConfig `koanf:"audio"`
}

// AudioConfig configures the audio manager.
type AudioConfig struct {
	Dir     string `koanf:"dir"`
	Ext     string `koanf:"ext"`
	NoCache bool   `koanf:"no_cache"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"timeout":         "10s",
		"request_timeout": "60s",
		"concurrency":     4,
		"report_interval": "500ms",
		"audio.dir":       ".",
		"audio.ext":       ".ogg",
		"audio.no_cache":  false,
	}
}

// Load builds a Config. path may be empty; a missing file is an error only
// when path was given explicitly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Load config file if any
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: config file %s: %v", apperr.ErrInvalidConfig, path, err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: failed to load config from %s: %v", apperr.ErrInvalidConfig, path, err)
		}
	}

	// 3. Environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns PRELOAD_AUDIO_NO_CACHE into audio.no_cache. Only the first
// underscore after a known section is treated as a separator.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if rest, ok := strings.CutPrefix(key, "audio_"); ok {
		return "audio." + rest
	}
	return key
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Timeout < 0:
		return fmt.Errorf("%w: timeout must not be negative", apperr.ErrInvalidConfig)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: request_timeout must be positive", apperr.ErrInvalidConfig)
	case c.Concurrency <= 0 || c.Concurrency > pool.MaxSize:
		return fmt.Errorf("%w: concurrency must be between 1 and %d", apperr.ErrInvalidConfig, pool.MaxSize)
	case c.ReportInterval <= 0:
		return fmt.Errorf("%w: report_interval must be positive", apperr.ErrInvalidConfig)
	}
	if c.Audio.Ext != "" && !strings.HasPrefix(c.Audio.Ext, ".") {
		c.Audio.Ext = "." + c.Audio.Ext
	}
	return nil
}

package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config describes which collaborators a feature tracker is built from
type Config struct {
	Detector   ComponentConfig   `yaml:"detector"`
	Extractor  ComponentConfig   `yaml:"extractor"`
	Matcher    MatcherConfig     `yaml:"matcher"`
	LoopCloser *LoopCloserConfig `yaml:"loop_closer" validate:"omitempty"`
	LogLevel   string            `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// ComponentConfig names registered implementation and its free-form parameters
type ComponentConfig struct {
	Type   string         `yaml:"type" validate:"required"`
	Params map[string]any `yaml:"params"`
}

// MatcherConfig configures matching.DescriptorMatcher
type MatcherConfig struct {
	Algorithm   string  `yaml:"algorithm" validate:"required,oneof=hungarian greedy"`
	MaxDistance float64 `yaml:"max_distance" validate:"gt=0"`
}

// LoopCloserConfig configures closing.GapCloser. Absent section disables loop closing
type LoopCloserConfig struct {
	Window                int64   `yaml:"window" validate:"gte=1"`
	MaxPixelDistance      float64 `yaml:"max_pixel_distance" validate:"gt=0"`
	MaxDescriptorDistance float64 `yaml:"max_descriptor_distance" validate:"gt=0"`
	HistoryLen            int     `yaml:"history_len" validate:"gte=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Default returns configuration with default matcher and no loop closer.
// Detector and extractor types are left empty since they have no defaults
func Default() *Config {
	return &Config{
		Matcher: MatcherConfig{
			Algorithm:   "hungarian",
			MaxDistance: 0.7,
		},
		LogLevel: "info",
	}
}

// Load reads and validates YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read config '%s'", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Bad config '%s'", path)
	}
	return cfg, nil
}

// Parse decodes YAML configuration over defaults and validates it
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "Can't decode config")
	}
	if cfg.LoopCloser != nil {
		cfg.LoopCloser.applyDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (cfg *Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(err, "Invalid config")
	}
	return nil
}

// SlogLevel converts LogLevel to slog.Level. Unknown or empty level means info
func (cfg *Config) SlogLevel() slog.Level {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (lc *LoopCloserConfig) applyDefaults() {
	if lc.Window == 0 {
		lc.Window = 5
	}
	if lc.MaxPixelDistance == 0 {
		lc.MaxPixelDistance = 20.0
	}
	if lc.MaxDescriptorDistance == 0 {
		lc.MaxDescriptorDistance = 0.5
	}
	if lc.HistoryLen == 0 {
		lc.HistoryLen = 10
	}
}

// Package config loads the cilmeta tool configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"cilmeta/internal/blob"
	"cilmeta/internal/logging"
)

var ErrInvalid = errors.New("config: invalid")

const (
	ModeStrict     = "strict"
	ModeBestEffort = "best-effort"
)

type Config struct {
	Codec   Codec   `toml:"codec"`
	Rebuild Rebuild `toml:"rebuild"`
	Log     Log     `toml:"log"`
}

type Codec struct {
	// MaxDepth caps type signature nesting.
	MaxDepth int    `toml:"max_depth"`
	Mode     string `toml:"mode"`
}

type Rebuild struct {
	// Workers bounds concurrent signature patching; 0 = one per CPU.
	Workers int `toml:"workers"`
}

type Log struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads path. An empty path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return nil, fmt.Errorf("%w: unknown key %s", ErrInvalid, undec[0])
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Codec.MaxDepth == 0 {
		cfg.Codec.MaxDepth = blob.DefaultMaxDepth
	}
	if strings.TrimSpace(cfg.Codec.Mode) == "" {
		cfg.Codec.Mode = ModeStrict
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
}

func validate(cfg *Config) error {
	if cfg.Codec.MaxDepth < 0 {
		return fmt.Errorf("%w: codec.max_depth must be positive, got %d", ErrInvalid, cfg.Codec.MaxDepth)
	}
	switch cfg.Codec.Mode {
	case ModeStrict, ModeBestEffort:
	default:
		return fmt.Errorf("%w: codec.mode %q (want %q or %q)", ErrInvalid, cfg.Codec.Mode, ModeStrict, ModeBestEffort)
	}
	if cfg.Rebuild.Workers < 0 {
		return fmt.Errorf("%w: rebuild.workers must not be negative, got %d", ErrInvalid, cfg.Rebuild.Workers)
	}
	if _, ok := logging.LookupLevel(cfg.Log.Level); !ok {
		return fmt.Errorf("%w: log.level %q", ErrInvalid, cfg.Log.Level)
	}
	return nil
}

// BlobOptions converts the codec section into decode options.
func (c Codec) BlobOptions() blob.Options {
	opts := blob.Options{MaxDepth: c.MaxDepth}
	if c.Mode == ModeBestEffort {
		opts.Mode = blob.ModeBestEffort
	}
	return opts
}

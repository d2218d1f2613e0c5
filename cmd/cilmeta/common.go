package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"cilmeta/internal/blob"
	"cilmeta/internal/config"
	"cilmeta/internal/logging"
	"cilmeta/internal/manifest"
	"cilmeta/internal/metadata"
)

// commonFlags are accepted by every subcommand and override the config file.
type commonFlags struct {
	config     string
	strict     bool
	bestEffort bool
	maxDepth   int
	logLevel   string
}

func (c *commonFlags) add(fs *pflag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "TOML configuration file")
	fs.BoolVar(&c.strict, "strict", false, "fail on first malformed blob")
	fs.BoolVar(&c.bestEffort, "best-effort", false, "report malformed blobs and continue")
	fs.IntVar(&c.maxDepth, "max-depth", 0, "type signature nesting limit")
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn, error or quiet")
}

// env is what a subcommand runs with once flags and config are merged.
type env struct {
	cfg  *config.Config
	log  *slog.Logger
	opts blob.Options
}

func (c *commonFlags) setup() (*env, error) {
	if c.strict && c.bestEffort {
		return nil, fmt.Errorf("--strict and --best-effort are mutually exclusive")
	}
	if c.logLevel != "" {
		if _, ok := logging.LookupLevel(c.logLevel); !ok {
			return nil, fmt.Errorf("--log-level: unknown level %q", c.logLevel)
		}
	}
	cfg, err := config.Load(c.config)
	if err != nil {
		return nil, err
	}
	if c.maxDepth > 0 {
		cfg.Codec.MaxDepth = c.maxDepth
	}
	switch {
	case c.strict:
		cfg.Codec.Mode = config.ModeStrict
	case c.bestEffort:
		cfg.Codec.Mode = config.ModeBestEffort
	}
	return &env{
		cfg:  cfg,
		log:  logging.New(os.Stderr, logging.Level(c.logLevel, cfg.Log.Level)),
		opts: cfg.Codec.BlobOptions(),
	}, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func loadArena(path string) (*metadata.Arena, error) {
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	return m.Arena()
}

// parseHex accepts hex with optional whitespace, commas and 0x prefixes.
func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer(",", " ", "0x", "", "0X", "").Replace(s)
	b, err := hex.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, fmt.Errorf("--hex: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("--hex: empty blob")
	}
	return b, nil
}

// Package config holds the settings of a jitdump run, loaded from an
// optional JSON file and overridden by command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config is the on-disk configuration.
type Config struct {
	Syntax          string `json:"syntax,omitempty" jsonschema:"title=Assembler syntax,enum=att,enum=intel,enum=go,default=att"`
	DebugInfo       string `json:"debugInfo,omitempty" jsonschema:"title=Source annotations,enum=default,enum=source,enum=none,default=default"`
	Binary          bool   `json:"binary,omitempty" jsonschema:"title=Print code origin and raw instruction bytes"`
	LineStart       string `json:"lineStart,omitempty" jsonschema:"title=Comment prefix of annotation lines,default=; "`
	NoDWARF         bool   `json:"noDwarf,omitempty" jsonschema:"title=Ignore DWARF debug info"`
	NoDemangle      bool   `json:"noDemangle,omitempty" jsonschema:"title=Print symbol names as stored"`
	NoStrings       bool   `json:"noStrings,omitempty" jsonschema:"title=Do not name string literals in read-only data"`
	LidiaPath       string `json:"lidiaPath,omitempty" jsonschema:"title=Lidia symbol table consulted for names"`
	SymbolCacheSize int    `json:"symbolCacheSize,omitempty" jsonschema:"title=Entries kept in the symbol name cache,minimum=1,default=4096"`
}

var ErrInvalid = errors.New("invalid configuration")

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Syntax:          "att",
		DebugInfo:       "default",
		LineStart:       "; ",
		SymbolCacheSize: 4096,
	}
}

// Load reads path on top of the defaults. An empty path yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field against its allowed values.
func (c Config) Validate() error {
	switch c.Syntax {
	case "att", "intel", "go":
	default:
		return fmt.Errorf("%w: syntax %q", ErrInvalid, c.Syntax)
	}
	switch c.DebugInfo {
	case "default", "source", "none":
	default:
		return fmt.Errorf("%w: debugInfo %q", ErrInvalid, c.DebugInfo)
	}
	if c.LineStart == "" {
		return fmt.Errorf("%w: empty lineStart", ErrInvalid)
	}
	if c.SymbolCacheSize < 1 {
		return fmt.Errorf("%w: symbolCacheSize %d", ErrInvalid, c.SymbolCacheSize)
	}
	return nil
}

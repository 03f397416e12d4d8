// Package config reads kvsql's engine configuration file, grounded on the
// teacher's TOML schema parser (internal/parser/toml/parser.go: an
// exported struct with `toml:` tags decoded via BurntSushi/toml's
// Decoder) applied here to the engine's own runtime settings instead of
// a database schema document.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level kvsql.toml document.
type Config struct {
	Storage StorageConfig `toml:"storage"`
}

// StorageConfig controls which kv.Engine backs the database and how it
// behaves.
type StorageConfig struct {
	// Backend selects the engine: "memory" or "disk".
	Backend string `toml:"backend"`
	// Path is the DiskKV log file path; ignored for the memory backend.
	Path string `toml:"path"`
	// CompactOnOpen replays the log and immediately compacts it away, per
	// internal/kv.DiskKV's compact-on-open flag.
	CompactOnOpen bool `toml:"compact_on_open"`
}

// Default returns the configuration used when no kvsql.toml is present: an
// in-memory engine, safe for quick sessions and tests.
func Default() *Config {
	return &Config{Storage: StorageConfig{Backend: "memory"}}
}

// Load reads and parses a kvsql.toml file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a kvsql.toml document from r, applying defaults for any
// field the document omits.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode error: %w", err)
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	return cfg, nil
}

// Validate enforces the invariants Load/Parse alone can't: a disk backend
// needs a path.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory":
		return nil
	case "disk":
		if c.Storage.Path == "" {
			return fmt.Errorf("config: storage.path is required for the disk backend")
		}
		return nil
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
}

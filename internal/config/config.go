// Package config loads the settings that parameterize a BTree and its
// pager from a YAML file, the way the rest of the pack's tools read their
// settings: struct tags plus yaml.Unmarshal, no bespoke parser.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds everything needed to construct a pager and a BTree over it.
type Config struct {
	// Branch is the tree's branching factor b. Must be odd and >= 3.
	Branch int `yaml:"branch"`

	// Unique rejects duplicate keys when true.
	Unique bool `yaml:"unique"`

	// PagePath, when non-empty, selects a file-backed pager at this path.
	// An empty path selects the in-memory pager.
	PagePath string `yaml:"page_path"`

	// WriteBufferPages bounds the file-backed pager's write buffer.
	WriteBufferPages int `yaml:"write_buffer_pages"`

	// ReadCachePages bounds the file-backed pager's read cache.
	ReadCachePages int `yaml:"read_cache_pages"`

	// RebuildSchedule is a standard five-field cron expression that
	// triggers an explicit tree Rebuild. Empty disables the scheduler.
	RebuildSchedule string `yaml:"rebuild_schedule"`
}

// Default returns a Config with sane defaults for an in-memory tree.
func Default() Config {
	return Config{
		Branch:           101,
		Unique:           true,
		WriteBufferPages: 64,
		ReadCachePages:   256,
	}
}

// Load reads and parses a YAML config file at path, applying Default()
// for any field the file omits. A field the file sets explicitly, even to
// its zero value, keeps the file's value.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Branch%2 == 0 || cfg.Branch < 3 {
		return Config{}, fmt.Errorf("config: branch must be odd and >= 3, got %d", cfg.Branch)
	}
	return cfg, nil
}

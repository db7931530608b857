// Package config loads mnemo's configuration file.
//
// Configuration is optional: a missing file yields the defaults, and
// every field in the file is optional too. The MNEMO_DATA_DIR
// environment variable overrides the data directory regardless of what
// the file says, which is what tests and one-off sandboxes use.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mnemo-mcp/mnemo/internal/memory"
)

// envDataDir overrides the data directory when set.
const envDataDir = "MNEMO_DATA_DIR"

// File is the on-disk configuration shape at ~/.mnemo/config.yaml.
// Zero values mean "use the default".
type File struct {
	DataDir             string `yaml:"data_dir"`
	MaxTextLength       int    `yaml:"max_text_length"`
	MaxSearchResults    int    `yaml:"max_search_results"`
	MaxContextItems     int    `yaml:"max_context_items"`
	DedupeWindowMinutes int    `yaml:"dedupe_window_minutes"`
}

// Path returns the path to the config file.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".mnemo", "config.yaml")
	}
	return filepath.Join(home, ".mnemo", "config.yaml")
}

// Load reads the config file at the default path and applies the
// environment override. A missing file is not an error.
func Load() (memory.Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config file at an explicit path, overlaying its
// values on the defaults. The MNEMO_DATA_DIR environment variable wins
// over both.
func LoadFile(path string) (memory.Config, error) {
	cfg := memory.DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file is the common case.
	case err != nil:
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	default:
		var f File
		if err := yaml.Unmarshal(data, &f); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
		applyFile(&cfg, f)
	}

	if dir := os.Getenv(envDataDir); dir != "" {
		cfg.DataDir = dir
	}

	return cfg, nil
}

// applyFile overlays the non-zero fields of f onto cfg.
func applyFile(cfg *memory.Config, f File) {
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.MaxTextLength > 0 {
		cfg.MaxTextLength = f.MaxTextLength
	}
	if f.MaxSearchResults > 0 {
		cfg.MaxSearchResults = f.MaxSearchResults
	}
	if f.MaxContextItems > 0 {
		cfg.MaxContextItems = f.MaxContextItems
	}
	if f.DedupeWindowMinutes > 0 {
		cfg.DedupeWindow = time.Duration(f.DedupeWindowMinutes) * time.Minute
	}
}

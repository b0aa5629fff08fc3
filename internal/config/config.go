// Package config holds the process-wide dataset configuration: where
// datasets are saved and where bundled resources are looked up.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// FileName is the default configuration file name inside the exa home.
const FileName = "config.yml"

// Config stores the settings used when a dataset call does not override
// them.
type Config struct {
	// SaveDir is the default directory for saved datasets.
	SaveDir string `yaml:"savedir"`

	// ResourceDir overrides the bundled reference data. Empty means the
	// embedded copy is used.
	ResourceDir string `yaml:"resources,omitempty"`

	// GitAuthor and GitEmail sign commits made to a versioned save
	// directory.
	GitAuthor string `yaml:"git_author,omitempty"`
	GitEmail  string `yaml:"git_email,omitempty"`
}

var current atomic.Pointer[Config]

// Home returns the exa home directory, ~/.exa.
func Home() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".exa"
	}
	return filepath.Join(home, ".exa")
}

// New returns the built-in defaults, honoring the EXA_SAVEDIR and
// EXA_RESOURCES environment variables.
func New() *Config {
	c := &Config{
		SaveDir:   filepath.Join(Home(), "data"),
		GitAuthor: "exa",
		GitEmail:  "exa@localhost",
	}
	if v := os.Getenv("EXA_SAVEDIR"); v != "" {
		c.SaveDir = v
	}
	if v := os.Getenv("EXA_RESOURCES"); v != "" {
		c.ResourceDir = v
	}
	return c
}

// Default returns the process-wide configuration.
func Default() *Config {
	if c := current.Load(); c != nil {
		return c
	}
	c := New()
	if current.CompareAndSwap(nil, c) {
		return c
	}
	return current.Load()
}

// SetDefault replaces the process-wide configuration.
func SetDefault(c *Config) {
	current.Store(c)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.SaveDir == "" {
		return errors.New("savedir is required")
	}
	if c.ResourceDir != "" {
		fi, err := os.Stat(c.ResourceDir)
		if err != nil {
			return fmt.Errorf("resources: %w", err)
		}
		if !fi.IsDir() {
			return fmt.Errorf("resources: %s is not a directory", c.ResourceDir)
		}
	}
	return nil
}

// Resource returns the path of a resource file in ResourceDir, or "" when
// the embedded resources are in use.
func (c *Config) Resource(name string) string {
	if c.ResourceDir == "" {
		return ""
	}
	return filepath.Join(c.ResourceDir, name)
}

// Load reads the configuration from path. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	c := New()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is chosen by the operator
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return c, nil
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return c, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

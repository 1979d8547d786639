// Package config loads the reporter's TOML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the reporter configuration.
type Config struct {
	// Host is the tracker base URL, e.g. "https://gitlab.com".
	Host string `toml:"host"`

	// Token is the private API token. Prefer TokenEnv in checked-in files.
	Token string `toml:"token"`

	// TokenEnv names an environment variable to read the token from.
	// When set it takes precedence over Token.
	TokenEnv string `toml:"token_env"`

	// ProjectID is the tracker project issues are reported into.
	ProjectID int `toml:"project_id"`

	// AssigneeID optionally assigns created issues to a user. Zero means
	// unassigned.
	AssigneeID int `toml:"assignee_id"`

	// LogLevel is one of debug, info, warn, error. Empty means info.
	LogLevel string `toml:"log_level"`
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "glreporter", "config.toml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "glreporter", "config.toml")
}

// Load reads and validates a config file. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks the fields required to reach the tracker.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.ResolveToken() == "" {
		if c.TokenEnv != "" {
			return fmt.Errorf("token_env %s is unset or empty", c.TokenEnv)
		}
		return errors.New("token is required")
	}
	if c.ProjectID <= 0 {
		return errors.New("project_id is required")
	}
	return nil
}

// ResolveToken returns the effective API token.
func (c *Config) ResolveToken() string {
	if c.TokenEnv != "" {
		return os.Getenv(c.TokenEnv)
	}
	return c.Token
}

// Assignee returns the optional assignee as a pointer, nil when unset.
func (c *Config) Assignee() *int {
	if c.AssigneeID <= 0 {
		return nil
	}
	id := c.AssigneeID
	return &id
}

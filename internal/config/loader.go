package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a healing configuration from the given YAML file
// path. After parsing, defaults are applied to fields left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault searches for a config in standard locations and loads the
// first one found. Search order: ./healfactory.yaml,
// ~/.healfactory/config.yaml. When none exists the built-in defaults are
// returned.
func LoadDefault() (*Config, error) {
	candidates := []string{"healfactory.yaml"}

	home, err := os.UserHomeDir()
	if err == nil {
		candidates = append(candidates, filepath.Join(home, ".healfactory", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	cfg := &Config{}
	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills in the standard workspace location, loop bound,
// tool names, and provider settings for fields the file leaves unset.
func applyDefaults(cfg *Config) {
	h := &cfg.Healing

	if h.WorkspaceDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			h.WorkspaceDir = filepath.Join(home, ".healfactory", "workspace")
		} else {
			h.WorkspaceDir = "workspace"
		}
	}
	if h.MaxIterations == 0 {
		h.MaxIterations = 5
	}
	if h.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			h.DBPath = filepath.Join(home, ".healfactory", "healfactory.db")
		} else {
			h.DBPath = "healfactory.db"
		}
	}
	if h.Tools.Python == "" {
		h.Tools.Python = "python3"
	}
	if h.Tools.Flake8 == "" {
		h.Tools.Flake8 = "flake8"
	}
	if h.Provider.Mode == "" {
		h.Provider.Mode = "static"
	}
	if h.Provider.Model == "" {
		h.Provider.Model = "gpt-4o-mini"
	}
	if h.Provider.APIKeyEnv == "" {
		h.Provider.APIKeyEnv = "OPENAI_API_KEY"
	}
	if h.Git.TokenEnv == "" {
		h.Git.TokenEnv = "GITHUB_TOKEN"
	}
	if h.Server.Port == 0 {
		h.Server.Port = 8000
	}
}

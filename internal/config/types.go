package config

import "time"

// Config is the top-level configuration structure parsed from healing YAML.
type Config struct {
	Healing Healing `yaml:"healing"`
}

// Healing defines the full healing setup: workspace, loop bounds, tool
// binaries, provider, git, and server settings.
type Healing struct {
	WorkspaceDir  string   `yaml:"workspace_dir"`
	MaxIterations int      `yaml:"max_iterations"`
	DBPath        string   `yaml:"db_path"`
	Timeouts      Timeouts `yaml:"timeouts"`
	Tools         Tools    `yaml:"tools"`
	Provider      Provider `yaml:"provider"`
	Git           Git      `yaml:"git"`
	Server        Server   `yaml:"server"`
}

// Timeouts holds per-operation budgets as duration strings.
type Timeouts struct {
	Analysis string `yaml:"analysis"`
	Clone    string `yaml:"clone"`
	Push     string `yaml:"push"`
	Install  string `yaml:"install"`
	Tests    string `yaml:"tests"`
}

// Tools names the external binaries the deterministic detector shells
// out to.
type Tools struct {
	Python string `yaml:"python"`
	Flake8 string `yaml:"flake8"`
}

// Provider configures the generative fix provider.
type Provider struct {
	Mode      string `yaml:"mode"` // "openai" or "static"
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Git holds authentication settings for pushes.
type Git struct {
	TokenEnv string `yaml:"token_env"`
}

// Server holds the HTTP API settings.
type Server struct {
	Port int `yaml:"port"`
}

// Duration accessors fall back to the standard budgets so a missing or
// malformed timeout never stalls a run on a zero value.

func (t Timeouts) AnalysisDuration() time.Duration { return parseTimeout(t.Analysis, 30*time.Second) }
func (t Timeouts) CloneDuration() time.Duration    { return parseTimeout(t.Clone, 2*time.Minute) }
func (t Timeouts) PushDuration() time.Duration     { return parseTimeout(t.Push, time.Minute) }
func (t Timeouts) InstallDuration() time.Duration  { return parseTimeout(t.Install, 2*time.Minute) }
func (t Timeouts) TestsDuration() time.Duration    { return parseTimeout(t.Tests, 5*time.Minute) }

func parseTimeout(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

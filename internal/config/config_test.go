package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validConfig = `
healing:
  workspace_dir: /tmp/healing-workspace
  max_iterations: 3
  timeouts:
    analysis: "30s"
    clone: "2m"
    push: "1m"
    tests: "5m"
  tools:
    python: python3
    flake8: flake8
  provider:
    mode: openai
    model: gpt-4o-mini
    base_url: https://openrouter.ai/api/v1
  server:
    port: 9000
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healfactory.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	h := cfg.Healing
	if h.WorkspaceDir != "/tmp/healing-workspace" {
		t.Errorf("workspace_dir = %q", h.WorkspaceDir)
	}
	if h.MaxIterations != 3 {
		t.Errorf("max_iterations = %d, want 3", h.MaxIterations)
	}
	if h.Provider.Mode != "openai" {
		t.Errorf("provider mode = %q", h.Provider.Mode)
	}
	if h.Server.Port != 9000 {
		t.Errorf("port = %d", h.Server.Port)
	}
	if errs := Validate(cfg); len(errs) != 0 {
		t.Errorf("unexpected validation errors: %v", errs)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "healing:\n  workspace_dir: /tmp/w\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	h := cfg.Healing
	if h.MaxIterations != 5 {
		t.Errorf("max_iterations default = %d, want 5", h.MaxIterations)
	}
	if h.Tools.Python != "python3" || h.Tools.Flake8 != "flake8" {
		t.Errorf("tool defaults = %+v", h.Tools)
	}
	if h.Provider.Mode != "static" {
		t.Errorf("provider mode default = %q", h.Provider.Mode)
	}
	if h.Server.Port != 8000 {
		t.Errorf("port default = %d", h.Server.Port)
	}
	if h.DBPath == "" {
		t.Error("db_path default missing")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "healing: [not a map")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTimeoutDurations(t *testing.T) {
	ts := Timeouts{Analysis: "45s", Tests: "bogus"}
	if got := ts.AnalysisDuration(); got != 45*time.Second {
		t.Errorf("analysis = %s", got)
	}
	if got := ts.TestsDuration(); got != 5*time.Minute {
		t.Errorf("malformed tests timeout should fall back, got %s", got)
	}
	if got := ts.CloneDuration(); got != 2*time.Minute {
		t.Errorf("empty clone timeout should default, got %s", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{Healing: Healing{
		WorkspaceDir:  "",
		MaxIterations: 0,
		Provider:      Provider{Mode: "quantum"},
		Server:        Server{Port: 70000},
		Timeouts:      Timeouts{Tests: "five minutes"},
	}}

	errs := Validate(cfg)
	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{
		"healing.max_iterations",
		"healing.workspace_dir",
		"healing.provider.mode",
		"healing.server.port",
		"healing.timeouts.tests",
	} {
		if !fields[want] {
			t.Errorf("missing validation error for %s (got %v)", want, errs)
		}
	}
}

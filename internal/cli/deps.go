package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lucasnoah/healfactory/internal/config"
	"github.com/lucasnoah/healfactory/internal/db"
	"github.com/lucasnoah/healfactory/internal/detect"
	"github.com/lucasnoah/healfactory/internal/event"
	"github.com/lucasnoah/healfactory/internal/heal"
	"github.com/lucasnoah/healfactory/internal/patch"
	"github.com/lucasnoah/healfactory/internal/provider"
	"github.com/lucasnoah/healfactory/internal/testrun"
	"github.com/lucasnoah/healfactory/internal/vcs"
)

var configFile string

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadDefault()
}

func loadValidConfig() (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %s", errs[0])
	}
	return cfg, nil
}

// openDatabase opens the run-history database and applies migrations.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.Healing.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return database, nil
}

// newDetector wires the deterministic scans from the configured tool
// binaries. Module resolution prefers the workspace manifest and falls
// back to asking the interpreter.
func newDetector(cfg *config.Config) *detect.Detector {
	h := cfg.Healing
	timeout := h.Timeouts.AnalysisDuration()
	return detect.NewDetector(
		detect.NewPyParseChecker(h.Tools.Python, timeout),
		detect.NewInterpreterResolver(h.Tools.Python, timeout),
		detect.NewFlake8Runner(h.Tools.Flake8, timeout),
	)
}

func newProvider(cfg *config.Config) (provider.FixProvider, error) {
	p := cfg.Healing.Provider
	switch p.Mode {
	case "openai":
		key := os.Getenv(p.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("provider mode %q requires %s to be set", p.Mode, p.APIKeyEnv)
		}
		return provider.NewOpenAI(key, p.Model, p.BaseURL), nil
	case "static":
		return &provider.Static{}, nil
	default:
		return nil, fmt.Errorf("unrecognized provider mode %q", p.Mode)
	}
}

// newHealer assembles the full healing flow from config. Broker, store,
// and database are optional; pass nil to skip streaming or persistence.
func newHealer(cfg *config.Config, broker *event.Broker, store *heal.Store, database *db.DB) (*heal.Healer, error) {
	h := cfg.Healing

	fixer, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}

	repo := vcs.NewClient(
		&vcs.ExecGit{},
		h.Timeouts.CloneDuration(),
		h.Timeouts.PushDuration(),
		os.Getenv(h.Git.TokenEnv),
	)
	tests := testrun.NewRunner(
		&testrun.ExecRunner{},
		h.Timeouts.InstallDuration(),
		h.Timeouts.TestsDuration(),
	)

	return heal.New(heal.Deps{
		Repo:          repo,
		Detector:      newDetector(cfg),
		Engine:        patch.NewEngine(),
		Tests:         tests,
		Provider:      fixer,
		Broker:        broker,
		Store:         store,
		DB:            database,
		WorkspaceDir:  h.WorkspaceDir,
		MaxIterations: h.MaxIterations,
	}), nil
}

// reportDir is where run reports are written, next to the database.
func reportDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Healing.DBPath)
}

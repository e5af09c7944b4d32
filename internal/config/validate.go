package config

import (
	"fmt"
	"time"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedProviderModes is the set of valid provider modes.
var recognizedProviderModes = map[string]bool{
	"openai": true,
	"static": true,
}

// Validate checks a Config for structural and semantic errors. It returns
// a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError
	h := cfg.Healing

	if h.MaxIterations < 1 {
		errs = append(errs, ValidationError{
			Field:   "healing.max_iterations",
			Message: "must be at least 1",
		})
	}
	if h.WorkspaceDir == "" {
		errs = append(errs, ValidationError{
			Field:   "healing.workspace_dir",
			Message: "is required",
		})
	}
	if !recognizedProviderModes[h.Provider.Mode] {
		errs = append(errs, ValidationError{
			Field:   "healing.provider.mode",
			Message: fmt.Sprintf("unrecognized mode %q", h.Provider.Mode),
		})
	}
	if h.Server.Port < 1 || h.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "healing.server.port",
			Message: fmt.Sprintf("invalid port %d", h.Server.Port),
		})
	}

	for _, tc := range []struct {
		field string
		value string
	}{
		{"healing.timeouts.analysis", h.Timeouts.Analysis},
		{"healing.timeouts.clone", h.Timeouts.Clone},
		{"healing.timeouts.push", h.Timeouts.Push},
		{"healing.timeouts.install", h.Timeouts.Install},
		{"healing.timeouts.tests", h.Timeouts.Tests},
	} {
		if tc.value == "" {
			continue
		}
		if d, err := time.ParseDuration(tc.value); err != nil || d <= 0 {
			errs = append(errs, ValidationError{
				Field:   tc.field,
				Message: fmt.Sprintf("invalid duration %q", tc.value),
			})
		}
	}

	return errs
}

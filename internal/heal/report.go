// Package heal drives a full healing run: clone, analysis, branch, the
// deterministic fix pass, and the bounded test-fix-commit loop.
package heal

import (
	"github.com/lucasnoah/healfactory/internal/analyze"
	"github.com/lucasnoah/healfactory/internal/patch"
	"github.com/lucasnoah/healfactory/internal/testrun"
	"github.com/lucasnoah/healfactory/internal/vcs"
)

// Iteration statuses.
const (
	IterationRunning          = "running"
	IterationPassed           = "passed"
	IterationFixed            = "fixed"
	IterationNoFixes          = "no_fixes"
	IterationNoFixesApplied   = "no_fixes_applied"
	IterationDeterministicFix = "deterministic_fix"
)

// Final run statuses.
const (
	StatusRunning       = "RUNNING"
	StatusPassed        = "PASSED"
	StatusFailed        = "FAILED"
	StatusMaxIterations = "MAX_ITERATIONS"
	StatusError         = "ERROR"
)

// IterationRecord captures one pass of the healing loop. Index 0 is
// reserved for the deterministic pass.
type IterationRecord struct {
	Index          int               `json:"iteration"`
	Timestamp      string            `json:"timestamp"`
	Status         string            `json:"status"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []testrun.Failure `json:"failures,omitempty"`
	PatchesApplied []patch.Patch     `json:"fixes_applied,omitempty"`
	Commit         *vcs.PushResult   `json:"commit,omitempty"`
}

// Report is the full record of a healing run.
type Report struct {
	RunID          string            `json:"run_id"`
	RepoURL        string            `json:"repo_url"`
	Team           string            `json:"team_name"`
	Leader         string            `json:"leader_name"`
	Branch         string            `json:"branch_name"`
	Analysis       *analyze.Report   `json:"analysis,omitempty"`
	Iterations     []IterationRecord `json:"iterations"`
	TotalFailures  int               `json:"total_failures_detected"`
	PatchesApplied int               `json:"total_fixes_applied"`
	AllPatches     []patch.Patch     `json:"all_fixes"`
	FinalStatus    string            `json:"final_status"`
	Error          string            `json:"error,omitempty"`
	TimeTaken      float64           `json:"time_taken"`
}

package heal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucasnoah/healfactory/internal/analyze"
	"github.com/lucasnoah/healfactory/internal/db"
	"github.com/lucasnoah/healfactory/internal/event"
	"github.com/lucasnoah/healfactory/internal/patch"
	"github.com/lucasnoah/healfactory/internal/provider"
	"github.com/lucasnoah/healfactory/internal/testrun"
	"github.com/lucasnoah/healfactory/internal/vcs"
)

const deterministicCommitTitle = "[AI-AGENT] Fix syntax, import, linting, and indentation errors (deterministic)"

// Payload size caps for stream events.
const (
	maxRawOutputEvent    = 3000
	maxFileContentEvent  = 2000
	timestampLayout      = "2006-01-02 15:04:05"
	defaultMaxIterations = 5
)

// repoClient is the slice of vcs.Client the healer uses.
type repoClient interface {
	Clone(ctx context.Context, url, workspaceDir string) (string, error)
	CreateBranch(ctx context.Context, repoPath, branch string) error
	CommitAndPush(ctx context.Context, repoPath, message, branch string) (*vcs.PushResult, error)
}

// defectDetector runs the deterministic scans.
type defectDetector interface {
	Detect(workspace string) []patch.Patch
}

// patchApplier applies patches in place and reports per-patch status.
type patchApplier interface {
	Apply(workspace string, patches []patch.Patch) []patch.Patch
}

// suiteRunner executes the test suite and parses its output.
type suiteRunner interface {
	Run(ctx context.Context, workspace, testCommand string, installDeps bool) (*testrun.Result, error)
}

// Options identifies one healing run.
type Options struct {
	RepoURL string
	Team    string
	Leader  string
}

// Deps collects the collaborators a Healer needs. Broker, Store, and DB
// may be nil; the run then skips streaming, report files, or history.
type Deps struct {
	Repo          repoClient
	Detector      defectDetector
	Engine        patchApplier
	Tests         suiteRunner
	Provider      provider.FixProvider
	Broker        *event.Broker
	Store         *Store
	DB            *db.DB
	WorkspaceDir  string
	MaxIterations int
}

// Healer runs the two-pass healing flow: deterministic fixes first, then
// the bounded provider loop.
type Healer struct {
	repo          repoClient
	detector      defectDetector
	engine        patchApplier
	tests         suiteRunner
	provider      provider.FixProvider
	broker        *event.Broker
	store         *Store
	db            *db.DB
	workspaceDir  string
	maxIterations int
}

// New creates a Healer from its dependencies.
func New(d Deps) *Healer {
	if d.MaxIterations <= 0 {
		d.MaxIterations = defaultMaxIterations
	}
	return &Healer{
		repo:          d.Repo,
		detector:      d.Detector,
		engine:        d.Engine,
		tests:         d.Tests,
		provider:      d.Provider,
		broker:        d.Broker,
		store:         d.Store,
		db:            d.DB,
		workspaceDir:  d.WorkspaceDir,
		maxIterations: d.MaxIterations,
	}
}

// Run executes the full healing flow and always returns a report, partial
// on error. The returned error marks a fatal step; test failures and
// unapplied fixes are reported through FinalStatus instead.
func (h *Healer) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{
		RunID:       uuid.NewString(),
		RepoURL:     opts.RepoURL,
		Team:        opts.Team,
		Leader:      opts.Leader,
		FinalStatus: StatusRunning,
		AllPatches:  []patch.Patch{},
	}

	if h.db != nil {
		if err := h.db.InsertRun(report.RunID, opts.RepoURL, opts.Team, opts.Leader); err != nil {
			log.Printf("[HEAL] record run start: %v", err)
		}
	}

	runErr := h.run(ctx, opts, report)
	report.TimeTaken = math.Round(time.Since(start).Seconds()*100) / 100

	if runErr != nil {
		report.FinalStatus = StatusError
		report.Error = runErr.Error()
		h.emit(report.RunID, event.TypeError, map[string]any{"message": runErr.Error()})
	}

	log.Printf("[HEAL] run %s finished: status=%s iterations=%d fixes=%d time=%.2fs",
		report.RunID, report.FinalStatus, len(report.Iterations), report.PatchesApplied, report.TimeTaken)

	h.emit(report.RunID, event.TypeDone, map[string]any{
		"final_status":            report.FinalStatus,
		"total_iterations":        len(report.Iterations),
		"total_failures_detected": report.TotalFailures,
		"total_fixes_applied":     report.PatchesApplied,
		"branch_name":             report.Branch,
		"time_taken":              report.TimeTaken,
	})

	if h.db != nil {
		if err := h.db.FinishRun(report.RunID, report.FinalStatus, len(report.Iterations), report.PatchesApplied); err != nil {
			log.Printf("[HEAL] record run finish: %v", err)
		}
	}
	if h.store != nil {
		if err := h.store.Save(report); err != nil {
			log.Printf("[HEAL] save report: %v", err)
		}
	}
	return report, runErr
}

func (h *Healer) run(ctx context.Context, opts Options, report *Report) error {
	// Step 1: clone.
	h.emit(report.RunID, event.TypeStep, map[string]any{
		"step":    "clone",
		"message": fmt.Sprintf("Cloning %s...", opts.RepoURL),
	})
	repoPath, err := h.repo.Clone(ctx, opts.RepoURL, h.workspaceDir)
	if err != nil {
		return err
	}
	h.emit(report.RunID, event.TypeClone, map[string]any{
		"status":    "success",
		"repo_url":  opts.RepoURL,
		"repo_path": repoPath,
		"message":   "Repository cloned successfully",
	})

	// Step 2: analyze once; the tree does not change meaningfully later.
	h.emit(report.RunID, event.TypeStep, map[string]any{
		"step":    "analyze",
		"message": "Analyzing repository structure...",
	})
	analysis := analyze.Analyze(repoPath)
	report.Analysis = analysis
	h.emit(report.RunID, event.TypeAnalysis, map[string]any{
		"tree":         analysis.Tree,
		"test_files":   analysis.TestFiles,
		"language":     analysis.Language,
		"test_command": analysis.TestCommand,
	})

	// Step 3: fix branch.
	branch := vcs.BranchName(opts.Team, opts.Leader)
	report.Branch = branch
	if err := h.repo.CreateBranch(ctx, repoPath, branch); err != nil {
		return err
	}
	if h.db != nil {
		if err := h.db.SetRunBranch(report.RunID, branch); err != nil {
			log.Printf("[HEAL] record branch: %v", err)
		}
	}
	h.emit(report.RunID, event.TypeBranch, map[string]any{
		"branch_name": branch,
		"message":     "Created and checked out branch: " + branch,
	})

	// Step 4: deterministic pass, recorded as iteration 0 when it commits.
	if err := h.deterministicPass(ctx, repoPath, branch, report); err != nil {
		return err
	}

	// Step 5: bounded provider loop.
	depsInstalled := false
	for iteration := 1; iteration <= h.maxIterations; iteration++ {
		done, err := h.runIteration(ctx, repoPath, branch, analysis, iteration, &depsInstalled, report)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	report.FinalStatus = StatusMaxIterations
	h.emit(report.RunID, event.TypeMaxIterations, map[string]any{
		"max_iterations": h.maxIterations,
		"message":        fmt.Sprintf("Maximum iterations (%d) reached. Some errors may remain.", h.maxIterations),
	})
	return nil
}

func (h *Healer) deterministicPass(ctx context.Context, repoPath, branch string, report *Report) error {
	h.emit(report.RunID, event.TypeStep, map[string]any{
		"step":    "deterministic",
		"message": "Running deterministic bug detection...",
	})

	patches := h.detector.Detect(repoPath)
	if len(patches) == 0 {
		log.Printf("[HEAL] no deterministic fixes needed")
		return nil
	}

	h.emit(report.RunID, event.TypeFixes, map[string]any{
		"iteration":        0,
		"fixes":            patches,
		"commit_title":     deterministicCommitTitle,
		"message":          fmt.Sprintf("Deterministic: %d fixes (no model needed)", len(patches)),
		"is_deterministic": true,
	})

	applied := h.engine.Apply(repoPath, patches)
	appliedCount, failedCount := countByStatus(applied)
	report.PatchesApplied += appliedCount
	report.AllPatches = append(report.AllPatches, applied...)

	log.Printf("[HEAL] deterministic: applied %d, failed %d", appliedCount, failedCount)
	h.emit(report.RunID, event.TypeFixApplied, map[string]any{
		"iteration":        0,
		"applied":          appliedCount,
		"failed":           failedCount,
		"details":          applied,
		"message":          fmt.Sprintf("Deterministic: Applied %d/%d fixes", appliedCount, len(applied)),
		"is_deterministic": true,
	})
	h.logPatches(report.RunID, 0, applied)

	if appliedCount == 0 {
		return nil
	}

	commit, err := h.repo.CommitAndPush(ctx, repoPath, deterministicCommitTitle, branch)
	if err != nil {
		return err
	}
	h.emit(report.RunID, event.TypeCommit, map[string]any{
		"iteration":        0,
		"commit_hash":      commit.CommitHash,
		"branch":           commit.Branch,
		"push_success":     commit.PushSuccess,
		"commit_message":   deterministicCommitTitle,
		"message":          "Committed deterministic fixes",
		"is_deterministic": true,
	})

	report.Iterations = append(report.Iterations, IterationRecord{
		Index:          0,
		Timestamp:      time.Now().Format(timestampLayout),
		Status:         IterationDeterministicFix,
		PatchesApplied: applied,
		Commit:         commit,
	})
	return nil
}

// runIteration performs one test-fix-commit pass. done is true when the
// run reached a terminal state.
func (h *Healer) runIteration(ctx context.Context, repoPath, branch string, analysis *analyze.Report, iteration int, depsInstalled *bool, report *Report) (bool, error) {
	h.emit(report.RunID, event.TypeIterationStart, map[string]any{
		"iteration":      iteration,
		"max_iterations": h.maxIterations,
		"message":        fmt.Sprintf("Starting iteration %d/%d", iteration, h.maxIterations),
	})

	rec := IterationRecord{
		Index:     iteration,
		Timestamp: time.Now().Format(timestampLayout),
		Status:    IterationRunning,
	}

	h.emit(report.RunID, event.TypeStep, map[string]any{
		"step":      "testing",
		"iteration": iteration,
		"message":   "Running test suite...",
	})
	results, err := h.tests.Run(ctx, repoPath, analysis.TestCommand, !*depsInstalled)
	if err != nil {
		return false, err
	}
	*depsInstalled = true

	rec.Passed = results.Passed
	rec.Failed = results.Failed
	rec.Failures = results.Failures
	log.Printf("[HEAL] iteration %d: passed=%d failed=%d failures=%d",
		iteration, results.Passed, results.Failed, len(results.Failures))

	h.emit(report.RunID, event.TypeTestResult, map[string]any{
		"iteration":   iteration,
		"passed":      results.Passed,
		"failed":      results.Failed,
		"error_count": len(results.Failures),
		"errors":      results.Failures,
		"raw_output":  truncate(results.RawOutput, maxRawOutputEvent),
	})

	if results.Failed == 0 && len(results.Failures) == 0 {
		rec.Status = IterationPassed
		report.Iterations = append(report.Iterations, rec)
		report.FinalStatus = StatusPassed
		h.emit(report.RunID, event.TypeAllPassed, map[string]any{
			"iteration": iteration,
			"message":   fmt.Sprintf("All tests passed on iteration %d!", iteration),
		})
		return true, nil
	}
	report.TotalFailures += results.Failed + len(results.Failures)

	files := discoverSourceFiles(repoPath, results.Failures)
	h.emit(report.RunID, event.TypeFilesNeeded, map[string]any{
		"iteration": iteration,
		"files":     files,
		"message":   fmt.Sprintf("Discovered %d source files", len(files)),
	})

	contents := readFileContents(repoPath, files)
	h.emit(report.RunID, event.TypeFileContents, map[string]any{
		"iteration": iteration,
		"files":     truncateAll(contents, maxFileContentEvent),
		"message":   fmt.Sprintf("Read %d files", len(contents)),
	})

	h.emit(report.RunID, event.TypeStep, map[string]any{
		"step":      "llm_fixes",
		"iteration": iteration,
		"message":   "Asking model for code fixes...",
	})
	proposal, err := h.provider.ProposeFixes(ctx, provider.Request{
		Tree:     analysis.Tree,
		Files:    contents,
		Failures: results.Failures,
	})
	if err != nil {
		return false, err
	}

	if len(proposal.Patches) == 0 {
		rec.Status = IterationNoFixes
		report.Iterations = append(report.Iterations, rec)
		report.FinalStatus = StatusFailed
		h.emit(report.RunID, event.TypeNoFixes, map[string]any{
			"iteration": iteration,
			"message":   "Model could not generate any fixes",
		})
		return true, nil
	}

	h.emit(report.RunID, event.TypeFixes, map[string]any{
		"iteration":    iteration,
		"fixes":        proposal.Patches,
		"commit_title": proposal.CommitTitle,
		"message":      fmt.Sprintf("Model generated %d fixes", len(proposal.Patches)),
	})

	h.emit(report.RunID, event.TypeStep, map[string]any{
		"step":      "applying",
		"iteration": iteration,
		"message":   fmt.Sprintf("Applying %d fixes...", len(proposal.Patches)),
	})
	applied := h.engine.Apply(repoPath, proposal.Patches)
	rec.PatchesApplied = applied

	appliedCount, failedCount := countByStatus(applied)
	report.PatchesApplied += appliedCount
	report.AllPatches = append(report.AllPatches, applied...)
	log.Printf("[HEAL] iteration %d: applied %d, failed %d", iteration, appliedCount, failedCount)

	h.emit(report.RunID, event.TypeFixApplied, map[string]any{
		"iteration": iteration,
		"applied":   appliedCount,
		"failed":    failedCount,
		"details":   applied,
		"message":   fmt.Sprintf("Applied %d/%d fixes", appliedCount, len(applied)),
	})
	h.logPatches(report.RunID, iteration, applied)

	if appliedCount == 0 {
		rec.Status = IterationNoFixesApplied
		report.Iterations = append(report.Iterations, rec)
		report.FinalStatus = StatusFailed
		h.emit(report.RunID, event.TypeNoFixesApplied, map[string]any{
			"iteration": iteration,
			"message":   "No fixes could be applied to the code",
		})
		return true, nil
	}

	h.emit(report.RunID, event.TypeStep, map[string]any{
		"step":      "committing",
		"iteration": iteration,
		"message":   "Committing and pushing changes...",
	})
	commitMsg := proposal.CommitTitle
	if !strings.HasPrefix(commitMsg, vcs.CommitPrefix) {
		commitMsg = vcs.CommitPrefix + " " + commitMsg
	}
	commit, err := h.repo.CommitAndPush(ctx, repoPath, commitMsg, branch)
	if err != nil {
		return false, err
	}
	rec.Commit = commit

	h.emit(report.RunID, event.TypeCommit, map[string]any{
		"iteration":      iteration,
		"commit_hash":    commit.CommitHash,
		"branch":         commit.Branch,
		"push_success":   commit.PushSuccess,
		"commit_message": commitMsg,
		"message":        fmt.Sprintf("Committed %s and pushed to %s", commit.CommitHash, branch),
	})

	rec.Status = IterationFixed
	report.Iterations = append(report.Iterations, rec)
	h.emit(report.RunID, event.TypeIterationComplete, map[string]any{
		"iteration":     iteration,
		"fixes_applied": appliedCount,
		"message":       fmt.Sprintf("Iteration %d complete, %d fixes applied. Re-testing...", iteration, appliedCount),
	})
	return false, nil
}

// emit publishes an event on the broker and mirrors it into the run
// history table.
func (h *Healer) emit(runID string, t event.Type, data map[string]any) {
	if h.broker != nil {
		h.broker.Emit(t, data)
	}
	if h.db != nil {
		detail, err := json.Marshal(data)
		if err != nil {
			detail = []byte("{}")
		}
		if err := h.db.LogRunEvent(runID, string(t), string(detail)); err != nil {
			log.Printf("[HEAL] record event %s: %v", t, err)
		}
	}
}

func (h *Healer) logPatches(runID string, iteration int, applied []patch.Patch) {
	if h.db == nil {
		return
	}
	if err := h.db.LogPatches(runID, iteration, applied); err != nil {
		log.Printf("[HEAL] record patches: %v", err)
	}
}

func countByStatus(patches []patch.Patch) (applied, failed int) {
	for _, p := range patches {
		switch p.Status {
		case patch.StatusApplied:
			applied++
		case patch.StatusFailed:
			failed++
		}
	}
	return applied, failed
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func truncateAll(files map[string]string, max int) map[string]string {
	out := make(map[string]string, len(files))
	for k, v := range files {
		out[k] = truncate(v, max)
	}
	return out
}

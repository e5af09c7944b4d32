package testrun

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// CommandRunner abstracts child-process execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, dir string, command string) (stdout string, stderr string, exitCode int, err error)
}

// ExecRunner implements CommandRunner by shelling out.
type ExecRunner struct{}

func (e *ExecRunner) Run(ctx context.Context, dir string, command string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return stdoutBuf.String(), stderrBuf.String(), -1, fmt.Errorf("exec: %w", err)
		}
	}
	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// Runner executes the workspace test suite with bounded child-process
// calls and parses the output.
type Runner struct {
	cmd            CommandRunner
	installTimeout time.Duration
	testTimeout    time.Duration
}

// NewRunner creates a Runner with the given budgets (defaults: 120s for
// dependency install, 300s for the test command).
func NewRunner(cmd CommandRunner, installTimeout, testTimeout time.Duration) *Runner {
	if installTimeout <= 0 {
		installTimeout = 2 * time.Minute
	}
	if testTimeout <= 0 {
		testTimeout = 5 * time.Minute
	}
	return &Runner{cmd: cmd, installTimeout: installTimeout, testTimeout: testTimeout}
}

// Run executes the test command and returns the parsed result. When
// installDeps is set and the workspace carries a dependency manifest, the
// manifest is installed first; callers set it only for the first run of a
// healing loop since patch-only edits leave dependencies stable.
func (r *Runner) Run(ctx context.Context, workspace string, testCommand string, installDeps bool) (*Result, error) {
	if installDeps {
		if err := r.installRequirements(ctx, workspace); err != nil {
			return nil, err
		}
	}

	log.Printf("[TESTRUN] running %q in %s", testCommand, workspace)
	runCtx, cancel := context.WithTimeout(ctx, r.testTimeout)
	defer cancel()

	stdout, stderr, exitCode, err := r.cmd.Run(runCtx, workspace, testCommand)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("test run timed out after %s", r.testTimeout)
		}
		return nil, fmt.Errorf("run tests: %w", err)
	}
	log.Printf("[TESTRUN] exit code %d", exitCode)

	result := Parse(stdout + "\n" + stderr)
	log.Printf("[TESTRUN] passed=%d failed=%d failures=%d", result.Passed, result.Failed, len(result.Failures))
	return result, nil
}

// installRequirements runs pip against requirements.txt if present. A
// failed install is logged but not fatal; the test run will surface any
// genuinely missing dependency.
func (r *Runner) installRequirements(ctx context.Context, workspace string) error {
	if _, err := os.Stat(filepath.Join(workspace, "requirements.txt")); err != nil {
		return nil
	}

	log.Printf("[TESTRUN] installing dependencies from requirements.txt")
	installCtx, cancel := context.WithTimeout(ctx, r.installTimeout)
	defer cancel()

	_, stderr, exitCode, err := r.cmd.Run(installCtx, workspace, "pip install -r requirements.txt")
	if err != nil {
		if installCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("dependency install timed out after %s", r.installTimeout)
		}
		return fmt.Errorf("install dependencies: %w", err)
	}
	if exitCode != 0 {
		log.Printf("[TESTRUN] pip install exited %d: %s", exitCode, strings.TrimSpace(stderr))
	}
	return nil
}

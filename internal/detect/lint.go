package detect

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lucasnoah/healfactory/internal/patch"
)

// Finding is one line-oriented linter report: path:row:col:code:text.
type Finding struct {
	File string
	Line int
	Col  int
	Code string
	Text string
}

// LintRunner invokes an external linter restricted to a rule selection,
// excluding test files. ErrUnavailable means the binary is missing.
type LintRunner interface {
	Run(workspace string, rules []string) ([]Finding, error)
}

var (
	unusedImportRules = []string{"F401"}
	indentationRules  = []string{"E111", "E117", "E112", "E113", "E114", "E115", "E116"}

	quotedModule = regexp.MustCompile(`'([\w\.]+)'`)
)

// scanUnusedImports deletes imports the linter reports as unused in
// non-test sources. The test framework's own import is allow-listed.
func (d *Detector) scanUnusedImports(workspace string) []patch.Patch {
	findings := d.lint(workspace, unusedImportRules, "unused-import")
	var patches []patch.Patch
	for _, f := range findings {
		if f.Code != "F401" {
			continue
		}
		module := "unknown"
		if m := quotedModule.FindStringSubmatch(f.Text); m != nil {
			module = m[1]
		}
		if module == "pytest" {
			continue
		}

		lines := readLines(filepath.Join(workspace, filepath.FromSlash(f.File)))
		if lines == nil || f.Line < 1 || f.Line > len(lines) {
			continue
		}

		log.Printf("[DETECT] unused import %q in %s:%d", module, f.File, f.Line)
		patches = append(patches, patch.Patch{
			File:        f.File,
			Line:        f.Line,
			OldText:     lines[f.Line-1],
			NewText:     "",
			Category:    patch.CategoryLint,
			Description: "remove unused import '" + module + "'",
		})
	}
	return patches
}

// scanIndentation recomputes the indentation of lines the linter flags,
// proposing a full-line replacement when the inferred indent differs from
// the current one. Findings are grouped per file so each file is read
// once.
func (d *Detector) scanIndentation(workspace string) []patch.Patch {
	findings := d.lint(workspace, indentationRules, "indentation")

	byFile := make(map[string][]Finding)
	var order []string
	for _, f := range findings {
		if _, seen := byFile[f.File]; !seen {
			order = append(order, f.File)
		}
		byFile[f.File] = append(byFile[f.File], f)
	}

	var patches []patch.Patch
	for _, file := range order {
		lines := readLines(filepath.Join(workspace, filepath.FromSlash(file)))
		if lines == nil {
			continue
		}
		for _, f := range byFile[file] {
			if f.Line < 1 || f.Line > len(lines) {
				continue
			}
			old := lines[f.Line-1]
			content := strings.TrimLeft(old, " \t")
			fixed := InferIndent(lines, f.Line-1) + content
			if fixed == old {
				continue
			}
			log.Printf("[DETECT] fixing indent in %s:%d (%s)", file, f.Line, f.Code)
			patches = append(patches, patch.Patch{
				File:        file,
				Line:        f.Line,
				OldText:     old,
				NewText:     fixed,
				Category:    patch.CategoryIndentation,
				Description: "normalize indentation to 4-space blocks",
			})
		}
	}
	return patches
}

// lint runs the linter and degrades to an empty result when the tool is
// missing or failing.
func (d *Detector) lint(workspace string, rules []string, scan string) []Finding {
	if d.linter == nil {
		return nil
	}
	findings, err := d.linter.Run(workspace, rules)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			log.Printf("[DETECT] linter not installed, skipping %s scan", scan)
		} else {
			log.Printf("[DETECT] linter error during %s scan: %v", scan, err)
		}
		return nil
	}
	return findings
}

// Flake8Runner runs flake8 against the workspace's source tree.
type Flake8Runner struct {
	Binary  string
	Timeout time.Duration
}

// NewFlake8Runner creates a runner ("flake8" when binary is empty).
func NewFlake8Runner(binary string, timeout time.Duration) *Flake8Runner {
	if binary == "" {
		binary = "flake8"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Flake8Runner{Binary: binary, Timeout: timeout}
}

func (r *Flake8Runner) Run(workspace string, rules []string) ([]Finding, error) {
	// Restrict to src/ when the project has one; otherwise the exclusion
	// pattern keeps test files out.
	target := "."
	if info, err := os.Stat(filepath.Join(workspace, "src")); err == nil && info.IsDir() {
		target = "src"
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Binary,
		"--select="+strings.Join(rules, ","),
		"--exclude=tests,test_*,*_test.py,conftest.py",
		"--format=%(path)s:%(row)d:%(col)d:%(code)s:%(text)s",
		target,
	)
	cmd.Dir = workspace

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrUnavailable
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ctx.Err()
		}
		// flake8 exits 1 when it has findings; that is a normal result.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
	}
	return ParseLintOutput(stdout.String()), nil
}

// ParseLintOutput parses path:row:col:code:text lines, dropping anything
// malformed.
func ParseLintOutput(output string) []Finding {
	var findings []Finding
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ":", 5)
		if len(parts) < 5 {
			continue
		}
		row, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		col, _ := strconv.Atoi(parts[2])
		findings = append(findings, Finding{
			File: patch.NormalizePath(parts[0]),
			Line: row,
			Col:  col,
			Code: strings.TrimSpace(parts[3]),
			Text: strings.TrimSpace(parts[4]),
		})
	}
	return findings
}

// Package detect finds structural and static-analysis-class defects in a
// Python workspace without any model calls. Each scan proposes line-level
// patches; the detector concatenates scan output in a fixed priority order
// (syntax, import, lint, indentation) and deduplicates by file and line.
package detect

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasnoah/healfactory/internal/patch"
)

// ErrUnavailable is returned by exec-backed capabilities when the
// underlying tool binary is not installed. Scans degrade by skipping.
var ErrUnavailable = errors.New("tool unavailable")

// skipDirs are never descended into during workspace walks.
var skipDirs = map[string]bool{
	".git":          true,
	"__pycache__":   true,
	"node_modules":  true,
	".venv":         true,
	"venv":          true,
	"env":           true,
	".pytest_cache": true,
	".tox":          true,
}

// Detector runs the deterministic scans. All capabilities are interfaces
// so tests (and degraded environments) can substitute them.
type Detector struct {
	syntax   SyntaxChecker
	resolver ModuleResolver
	linter   LintRunner
}

// NewDetector creates a Detector. Any capability may be nil, in which case
// the scans that need it are skipped.
func NewDetector(syntax SyntaxChecker, resolver ModuleResolver, linter LintRunner) *Detector {
	return &Detector{syntax: syntax, resolver: resolver, linter: linter}
}

// Detect runs all four scans against the workspace and returns the
// deduplicated candidate patches. It performs no writes and is idempotent:
// on a tree where every returned patch has been applied, a second call
// returns nothing.
func (d *Detector) Detect(workspace string) []patch.Patch {
	var all []patch.Patch

	syntaxPatches := d.scanSyntax(workspace)
	log.Printf("[DETECT] syntax scan: %d patches", len(syntaxPatches))
	all = append(all, syntaxPatches...)

	importPatches := d.scanImports(workspace)
	log.Printf("[DETECT] import scan: %d patches", len(importPatches))
	all = append(all, importPatches...)

	unusedPatches := d.scanUnusedImports(workspace)
	log.Printf("[DETECT] unused-import scan: %d patches", len(unusedPatches))
	all = append(all, unusedPatches...)

	indentPatches := d.scanIndentation(workspace)
	log.Printf("[DETECT] indentation scan: %d patches", len(indentPatches))
	all = append(all, indentPatches...)

	return patch.Dedupe(all)
}

// walkPython calls fn for every .py file under workspace, passing the
// absolute path and the forward-slash relative path. Unreadable entries
// are skipped silently.
func walkPython(workspace string, fn func(path, rel string)) {
	_ = filepath.WalkDir(workspace, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if entry.IsDir() {
			if skipDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(entry.Name(), ".py") {
			return nil
		}
		rel, err := filepath.Rel(workspace, path)
		if err != nil {
			return nil
		}
		fn(path, filepath.ToSlash(rel))
		return nil
	})
}

// isTestFile reports whether a file name follows the test-file naming
// conventions. Test files are exempt from import scans.
func isTestFile(name string) bool {
	return strings.HasPrefix(name, "test_") ||
		strings.HasSuffix(name, "_test.py") ||
		name == "conftest.py"
}

// readLines reads a file and returns its lines without terminators, or
// nil if the file cannot be read.
func readLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	lines := strings.Split(string(data), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimSuffix(ln, "\r")
	}
	return lines
}

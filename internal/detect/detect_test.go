package detect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lucasnoah/healfactory/internal/patch"
)

// fakeSyntax reports syntax errors keyed by file base name.
type fakeSyntax struct {
	errs map[string]*SyntaxError
}

func (f *fakeSyntax) Check(path string) (*SyntaxError, error) {
	return f.errs[filepath.Base(path)], nil
}

// fakeResolver resolves only the names it was given.
type fakeResolver struct {
	known map[string]bool
}

func (f *fakeResolver) Exists(name string) (bool, error) {
	return f.known[name], nil
}

// fakeLint returns canned findings.
type fakeLint struct {
	findings []Finding
	err      error
}

func (f *fakeLint) Run(workspace string, rules []string) ([]Finding, error) {
	return f.findings, f.err
}

func writeWorkspaceFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDetect_MissingColonOnDef(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "app.py", "def f(x)\n    return x\n")

	d := NewDetector(
		&fakeSyntax{errs: map[string]*SyntaxError{"app.py": {Line: 1, Message: "expected ':'"}}},
		nil, nil,
	)
	patches := d.Detect(dir)
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}
	p := patches[0]
	if p.File != "app.py" || p.Line != 1 {
		t.Errorf("patch target = %s:%d", p.File, p.Line)
	}
	if p.NewText != "def f(x):" {
		t.Errorf("NewText = %q, want %q", p.NewText, "def f(x):")
	}
	if p.Category != patch.CategorySyntax {
		t.Errorf("category = %q", p.Category)
	}
}

func TestDetect_MissingColonOnPreviousLine(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "app.py", "def f(x)\n    return x\n")

	// Parser blames the body line; the heuristic must walk back to the def.
	d := NewDetector(
		&fakeSyntax{errs: map[string]*SyntaxError{"app.py": {Line: 2, Message: "expected ':'"}}},
		nil, nil,
	)
	patches := d.Detect(dir)
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}
	if patches[0].Line != 1 || patches[0].NewText != "def f(x):" {
		t.Errorf("patch = %+v, want colon appended to line 1", patches[0])
	}
}

func TestDetect_UnknownSyntaxClassEmitsNothing(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "app.py", "x = ((1\n")

	d := NewDetector(
		&fakeSyntax{errs: map[string]*SyntaxError{"app.py": {Line: 1, Message: "invalid syntax"}}},
		nil, nil,
	)
	if patches := d.Detect(dir); len(patches) != 0 {
		t.Errorf("expected no patches for unmatched syntax class, got %d", len(patches))
	}
}

func TestDetect_UnresolvableImportDeleted(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "src/calc.py", "import os\nimport totally_missing_pkg\n\ndef add(a, b):\n    return a + b\n")

	d := NewDetector(nil, &fakeResolver{known: map[string]bool{"os": true}}, nil)
	patches := d.Detect(dir)
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d: %+v", len(patches), patches)
	}
	p := patches[0]
	if p.File != "src/calc.py" || p.Line != 2 {
		t.Errorf("patch target = %s:%d", p.File, p.Line)
	}
	if p.OldText != "import totally_missing_pkg" || p.NewText != "" {
		t.Errorf("expected deletion of the import line, got %+v", p)
	}
	if p.Category != patch.CategoryImport {
		t.Errorf("category = %q", p.Category)
	}
}

func TestDetect_TestFilesExemptFromImportScan(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "tests/test_calc.py", "import pytest\nimport not_installed\n")
	writeWorkspaceFile(t, dir, "conftest.py", "import not_installed_either\n")

	d := NewDetector(nil, &fakeResolver{known: map[string]bool{}}, nil)
	if patches := d.Detect(dir); len(patches) != 0 {
		t.Errorf("expected no patches for test files, got %+v", patches)
	}
}

func TestDetect_LocalModulesResolve(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "utils.py", "x = 1\n")
	writeWorkspaceFile(t, dir, "src/helpers.py", "y = 2\n")
	writeWorkspaceFile(t, dir, "main.py", "import utils\nimport helpers\nfrom . import something\n")

	d := NewDetector(nil, &fakeResolver{known: map[string]bool{}}, nil)
	if patches := d.Detect(dir); len(patches) != 0 {
		t.Errorf("local and relative imports must not be flagged: %+v", patches)
	}
}

func TestDetect_UnusedImportFromLinter(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "src/app.py", "import json\nimport os\n\nprint(os.sep)\n")

	d := NewDetector(nil, nil, &fakeLint{findings: []Finding{
		{File: "src/app.py", Line: 1, Col: 1, Code: "F401", Text: "'json' imported but unused"},
	}})
	patches := d.Detect(dir)
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}
	if patches[0].OldText != "import json" || patches[0].NewText != "" {
		t.Errorf("patch = %+v", patches[0])
	}
	if patches[0].Category != patch.CategoryLint {
		t.Errorf("category = %q", patches[0].Category)
	}
}

func TestDetect_PytestImportAllowListed(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "src/app.py", "import pytest\n")

	d := NewDetector(nil, nil, &fakeLint{findings: []Finding{
		{File: "src/app.py", Line: 1, Col: 1, Code: "F401", Text: "'pytest' imported but unused"},
	}})
	if patches := d.Detect(dir); len(patches) != 0 {
		t.Errorf("pytest import must not be removed: %+v", patches)
	}
}

func TestDetect_IndentationRecomputed(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "src/app.py", "def f():\n  x = 1\n    y = 2\n")

	d := NewDetector(nil, nil, &fakeLint{findings: []Finding{
		{File: "src/app.py", Line: 2, Col: 3, Code: "E111", Text: "indentation is not a multiple of four"},
		{File: "src/app.py", Line: 3, Col: 5, Code: "E111", Text: "indentation is not a multiple of four"},
	}})
	patches := d.Detect(dir)
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch (line 3 already at four), got %d: %+v", len(patches), patches)
	}
	if patches[0].Line != 2 || patches[0].NewText != "    x = 1" {
		t.Errorf("patch = %+v", patches[0])
	}
	if patches[0].Category != patch.CategoryIndentation {
		t.Errorf("category = %q", patches[0].Category)
	}
}

func TestDetect_LinterUnavailableDegrades(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "src/app.py", "import os\n")

	d := NewDetector(nil, nil, &fakeLint{err: ErrUnavailable})
	if patches := d.Detect(dir); len(patches) != 0 {
		t.Errorf("expected graceful degradation, got %+v", patches)
	}
}

// flakySyntax succeeds for some files and reports the parser missing for
// others.
type flakySyntax struct {
	errs map[string]*SyntaxError
	gone map[string]bool
}

func (f *flakySyntax) Check(path string) (*SyntaxError, error) {
	base := filepath.Base(path)
	if f.gone[base] {
		return nil, ErrUnavailable
	}
	return f.errs[base], nil
}

func TestDetect_ParserVanishingMidScanKeepsEarlierPatches(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "a.py", "def f(x)\n    return x\n")
	writeWorkspaceFile(t, dir, "z.py", "def g(y)\n    return y\n")

	d := NewDetector(&flakySyntax{
		errs: map[string]*SyntaxError{"a.py": {Line: 1, Message: "invalid syntax"}},
		gone: map[string]bool{"z.py": true},
	}, nil, nil)

	patches := d.Detect(dir)
	if len(patches) != 1 {
		t.Fatalf("expected the patch found before the parser vanished, got %+v", patches)
	}
	if patches[0].File != "a.py" || patches[0].NewText != "def f(x):" {
		t.Errorf("patch = %+v", patches[0])
	}
}

func TestDetect_DedupPrefersEarlierScan(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "app.py", "import gone\n")

	// Both the import scan and the lint scan flag line 1; the import
	// scan runs earlier, so its patch must win.
	d := NewDetector(
		nil,
		&fakeResolver{known: map[string]bool{}},
		&fakeLint{findings: []Finding{
			{File: "app.py", Line: 1, Col: 1, Code: "F401", Text: "'gone' imported but unused"},
		}},
	)
	patches := d.Detect(dir)
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch after dedup, got %d", len(patches))
	}
	if patches[0].Category != patch.CategoryImport {
		t.Errorf("category = %q, want import (earlier scan wins)", patches[0].Category)
	}
}

func TestDetect_IdempotentAfterApply(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "src/calc.py", "import gone\n\ndef add(a, b):\n    return a + b\n")

	d := NewDetector(nil, &fakeResolver{known: map[string]bool{}}, nil)
	first := d.Detect(dir)
	if len(first) != 1 {
		t.Fatalf("expected 1 patch on first pass, got %d", len(first))
	}

	applied := patch.NewEngine().Apply(dir, first)
	if applied[0].Status != patch.StatusApplied {
		t.Fatalf("apply failed: %s", applied[0].StatusMessage)
	}

	if second := d.Detect(dir); len(second) != 0 {
		t.Errorf("detector is not idempotent: second pass returned %+v", second)
	}
}

func TestDetect_CleanTreeReturnsNothing(t *testing.T) {
	dir := t.TempDir()
	writeWorkspaceFile(t, dir, "src/calc.py", "import os\n\ndef add(a, b):\n    return a + b\n")

	d := NewDetector(
		&fakeSyntax{errs: nil},
		&fakeResolver{known: map[string]bool{"os": true}},
		&fakeLint{},
	)
	if patches := d.Detect(dir); len(patches) != 0 {
		t.Errorf("clean tree produced patches: %+v", patches)
	}
}

package patch

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Engine applies patches to files on disk. Failures are isolated per
// patch: a patch that cannot be applied is marked failed and the file it
// targeted is left untouched.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply applies each patch to the workspace, populating Status and
// StatusMessage in place, and returns the same slice. The engine assumes
// exclusive access to the files it edits; it does not re-validate syntax
// after writing (the next test run does that).
func (e *Engine) Apply(workspace string, patches []Patch) []Patch {
	applied := 0
	for i := range patches {
		if err := e.applyOne(workspace, &patches[i]); err != nil {
			patches[i].Status = StatusFailed
			patches[i].StatusMessage = err.Error()
			continue
		}
		patches[i].Status = StatusApplied
		patches[i].StatusMessage = "patch applied"
		applied++
	}
	log.Printf("[PATCH] applied %d/%d patches", applied, len(patches))
	return patches
}

func (e *Engine) applyOne(workspace string, p *Patch) error {
	path := filepath.Join(workspace, filepath.FromSlash(p.File))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p.File)
		}
		return fmt.Errorf("read %s: %w", p.File, err)
	}

	lines := splitLines(string(data))
	idx := p.Line - 1
	if idx < 0 || idx >= len(lines) {
		return fmt.Errorf("line %d out of range (file has %d lines)", p.Line, len(lines))
	}

	// Verify the target line still holds the expected content. If it
	// moved, one linear scan may relocate it by exact trimmed match.
	want := strings.TrimSpace(p.OldText)
	if want != "" && strings.TrimSpace(lineText(lines[idx])) != want {
		found := -1
		for i, ln := range lines {
			if strings.TrimSpace(lineText(ln)) == want {
				found = i
				break
			}
		}
		if found < 0 {
			return fmt.Errorf("expected %q at line %d, found %q",
				strings.TrimSpace(p.OldText), p.Line, strings.TrimSpace(lineText(lines[idx])))
		}
		idx = found
	}

	if p.NewText == "" {
		lines = append(lines[:idx], lines[idx+1:]...)
		log.Printf("[PATCH] removed line %d from %s", p.Line, p.File)
	} else {
		lines[idx] = p.NewText + lineEnding(lines[idx])
		log.Printf("[PATCH] replaced line %d in %s", p.Line, p.File)
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "")), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p.File, err)
	}
	return nil
}

// splitLines splits source text into lines, each keeping its own
// terminator. A trailing line without a newline is kept as-is; the
// terminating empty chunk SplitAfter produces for newline-ended text is
// dropped so indices map 1:1 to editor line numbers.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// lineText returns a line without its terminator.
func lineText(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

// lineEnding returns the terminator of a line: "\r\n", "\n", or "" for a
// final line with no newline.
func lineEnding(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return "\n"
	}
	return ""
}

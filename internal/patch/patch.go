package patch

import "strings"

// Category classifies what kind of defect a patch corrects.
type Category string

const (
	CategorySyntax      Category = "syntax"
	CategoryImport      Category = "import"
	CategoryLint        Category = "lint"
	CategoryIndentation Category = "indentation"
	CategoryLogic       Category = "logic"
	CategoryTypeError   Category = "type_error"
	CategoryOther       Category = "other"
)

// Status of a patch after the engine has seen it.
type Status string

const (
	StatusPending Status = "pending"
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
)

// Patch is a proposed single-line edit to a source file: replace the line
// at Line (1-based) with NewText, or delete it when NewText is empty.
type Patch struct {
	File          string   `json:"file"`
	Line          int      `json:"line"`
	OldText       string   `json:"old_text"`
	NewText       string   `json:"new_text"`
	Category      Category `json:"category"`
	Description   string   `json:"description"`
	Status        Status   `json:"status,omitempty"`
	StatusMessage string   `json:"status_message,omitempty"`
}

// NormalizePath converts backslashes to forward slashes and strips a
// leading "./" so patches from different scanners compare equal.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return p
}

// Dedupe removes patches that target a (file, line) pair already claimed
// by an earlier patch. Paths are normalized in place; the first occurrence
// wins, so callers control priority by concatenation order.
func Dedupe(patches []Patch) []Patch {
	type key struct {
		file string
		line int
	}
	seen := make(map[key]bool)
	unique := make([]Patch, 0, len(patches))
	for _, p := range patches {
		p.File = NormalizePath(p.File)
		k := key{p.File, p.Line}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, p)
	}
	return unique
}

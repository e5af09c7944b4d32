package detect

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lucasnoah/healfactory/internal/patch"
)

// SyntaxError locates a parse failure inside one file.
type SyntaxError struct {
	Line    int
	Message string
}

// SyntaxChecker parses a single source file. A nil *SyntaxError means the
// file parses cleanly. ErrUnavailable means no parser is installed.
type SyntaxChecker interface {
	Check(path string) (*SyntaxError, error)
}

// blockOpener matches statements that must end with a colon: definitions,
// conditionals, loops, and exception handlers.
var blockOpener = regexp.MustCompile(`^\s*(def\s+\w+\(.*\)|class\s+\w+.*|if\s+.+|elif\s+.+|else|for\s+.+|while\s+.+|with\s+.+|try|except.*|finally)\s*$`)

// scanSyntax parses every .py file and proposes a terminator-insertion
// patch for the failures it can pattern-match. Unknown syntax classes emit
// nothing; they are left for the model-assisted pass.
func (d *Detector) scanSyntax(workspace string) []patch.Patch {
	if d.syntax == nil {
		return nil
	}
	var patches []patch.Patch
	unavailable := false

	walkPython(workspace, func(path, rel string) {
		if unavailable {
			return
		}
		serr, err := d.syntax.Check(path)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				log.Printf("[DETECT] no parser available, skipping syntax scan")
				unavailable = true
			}
			return
		}
		if serr == nil {
			return
		}
		log.Printf("[DETECT] syntax error in %s:%d: %s", rel, serr.Line, serr.Message)
		if p := fixMissingColon(path, rel, serr); p != nil {
			patches = append(patches, *p)
		}
	})
	// Patches found before the parser went missing are still valid.
	return patches
}

// fixMissingColon applies the two terminator heuristics: the offending
// line itself, then, for the "expected ':'" error class, the nearest
// preceding non-blank, non-comment line. At most one patch per failure.
func fixMissingColon(path, rel string, serr *SyntaxError) *patch.Patch {
	lines := readLines(path)
	if serr.Line < 1 || serr.Line > len(lines) {
		return nil
	}

	if p := colonPatch(rel, serr.Line, lines[serr.Line-1]); p != nil {
		return p
	}

	if strings.Contains(strings.ToLower(serr.Message), "expected ':'") {
		for i := serr.Line - 2; i >= 0; i-- {
			stripped := strings.TrimSpace(lines[i])
			if stripped == "" || strings.HasPrefix(stripped, "#") {
				continue
			}
			return colonPatch(rel, i+1, lines[i])
		}
	}
	return nil
}

// colonPatch proposes appending ":" to a block-opening line that lacks
// one, or nil when the line does not match a block opener.
func colonPatch(rel string, lineNo int, line string) *patch.Patch {
	if !blockOpener.MatchString(line) || strings.HasSuffix(strings.TrimRight(line, " \t"), ":") {
		return nil
	}
	old := strings.TrimRight(line, " \t")
	return &patch.Patch{
		File:        rel,
		Line:        lineNo,
		OldText:     old,
		NewText:     old + ":",
		Category:    patch.CategorySyntax,
		Description: "add missing colon at end of statement",
	}
}

// PyParseChecker checks syntax by asking a Python interpreter to
// ast.parse the file. The probe always exits 0 and prints "line:message"
// on stdout when parsing fails, so exec errors are clearly separable from
// syntax errors.
type PyParseChecker struct {
	Python  string
	Timeout time.Duration
}

const parseProbe = `import ast, sys
try:
    with open(sys.argv[1], encoding="utf-8") as f:
        ast.parse(f.read())
except SyntaxError as e:
    print("%d:%s" % (e.lineno or 0, e.msg or ""))
`

// NewPyParseChecker creates a checker using the given interpreter
// ("python3" when empty).
func NewPyParseChecker(python string, timeout time.Duration) *PyParseChecker {
	if python == "" {
		python = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PyParseChecker{Python: python, Timeout: timeout}
}

func (c *PyParseChecker) Check(path string) (*SyntaxError, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Python, "-c", parseProbe, path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, ErrUnavailable
		}
		return nil, err
	}

	report := strings.TrimSpace(out.String())
	if report == "" {
		return nil, nil
	}
	lineStr, msg, _ := strings.Cut(report, ":")
	line, _ := strconv.Atoi(lineStr)
	return &SyntaxError{Line: line, Message: msg}, nil
}

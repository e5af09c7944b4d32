package provider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/lucasnoah/healfactory/internal/patch"
)

const systemPrompt = "You are a code-fixing AI. Analyze test errors and source code, " +
	"return precise fixes in the exact JSON format requested. " +
	"ONLY return valid JSON - no markdown, no explanation."

// defaultCommitTitle is used when the model omits one.
const defaultCommitTitle = "[AI-AGENT] Auto-fix errors"

// buildPrompt renders the fix request: failures first, then the candidate
// files, then the response contract.
func buildPrompt(req Request) string {
	var errs strings.Builder
	for _, f := range req.Failures {
		fmt.Fprintf(&errs, "  - Test: %s | File: %s | Line: %d | Error: %s\n",
			f.TestName, f.File, f.Line, f.Message)
	}

	paths := make([]string, 0, len(req.Files))
	for p := range req.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var files strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&files, "\n--- FILE: %s ---\n%s\n", p, req.Files[p])
	}

	return fmt.Sprintf(`You are a code-fixing AI. Here are the test errors:

%s
Here are the source files:
%s
For each bug, provide a fix.

Respond ONLY with valid JSON:
{
  "fixes": [
    {
      "file": "relative/path/to/file.py",
      "line": <line_number>,
      "old_code": "<exact current line>",
      "new_code": "<corrected line>",
      "bug_type": "<SYNTAX|LOGIC|IMPORT|LINTING|TYPE_ERROR|INDENTATION|OTHER>",
      "description": "<short description>"
    }
  ],
  "commit_title": "[AI-AGENT] <summary of fixes>"
}

IMPORTANT:
- "old_code" must match the EXACT current line (whitespace matters).
- "new_code" is the replacement. Use "" to delete a line.
- Include ALL fixes needed.
`, errs.String(), files.String())
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")

// wireFix is the JSON shape models are asked to emit.
type wireFix struct {
	File        string `json:"file"`
	Line        int    `json:"line"`
	OldCode     string `json:"old_code"`
	NewCode     string `json:"new_code"`
	BugType     string `json:"bug_type"`
	Description string `json:"description"`
}

type wireResponse struct {
	Fixes       []wireFix `json:"fixes"`
	CommitTitle string    `json:"commit_title"`
}

// parseResponse extracts JSON from a model reply (fenced code block or
// bare), decodes it, and converts the well-formed fixes into patches.
// Malformed individual fixes are skipped, not fatal.
func parseResponse(text string) (*Response, error) {
	raw := strings.TrimSpace(text)
	if m := codeFence.FindStringSubmatch(text); m != nil {
		raw = strings.TrimSpace(m[1])
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("parse fix response: %w", err)
	}

	resp := &Response{CommitTitle: wire.CommitTitle}
	if resp.CommitTitle == "" {
		resp.CommitTitle = defaultCommitTitle
	}
	for _, f := range wire.Fixes {
		if f.File == "" || f.Line < 1 {
			continue
		}
		resp.Patches = append(resp.Patches, patch.Patch{
			File:        patch.NormalizePath(f.File),
			Line:        f.Line,
			OldText:     f.OldCode,
			NewText:     f.NewCode,
			Category:    categoryFor(f.BugType),
			Description: f.Description,
			Status:      patch.StatusPending,
		})
	}
	return resp, nil
}

func categoryFor(bugType string) patch.Category {
	switch strings.ToUpper(strings.TrimSpace(bugType)) {
	case "SYNTAX":
		return patch.CategorySyntax
	case "IMPORT":
		return patch.CategoryImport
	case "LINTING", "LINT":
		return patch.CategoryLint
	case "INDENTATION":
		return patch.CategoryIndentation
	case "LOGIC":
		return patch.CategoryLogic
	case "TYPE_ERROR":
		return patch.CategoryTypeError
	default:
		return patch.CategoryOther
	}
}

// Package testrun executes a workspace's test suite and turns the
// semi-structured process output into structured failure records.
package testrun

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasnoah/healfactory/internal/patch"
)

// Failure is one structured test failure or collection error.
type Failure struct {
	TestName string `json:"test_name"`
	File     string `json:"file"`
	Line     int    `json:"line"` // 0 when not recoverable from output
	Message  string `json:"message"`
}

// Result summarizes one test run. It is derived purely from process
// output and never mutates files.
type Result struct {
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Failures  []Failure `json:"failures"`
	RawOutput string    `json:"raw_output"`
}

// Clean reports whether the run had no failures of any kind.
func (r *Result) Clean() bool {
	return r.Failed == 0 && len(r.Failures) == 0
}

// maxCollectionMessage bounds collection-error messages, which embed
// whole tracebacks.
const maxCollectionMessage = 200

var (
	failureBanner  = regexp.MustCompile(`^_{5,}\s+(\S+)\s+_{5,}$`)
	sectionBanner  = regexp.MustCompile(`^={5,}.*={5,}$`)
	fileLineRef    = regexp.MustCompile(`([\w/\\.-]+\.py):(\d+)`)
	failedSummary  = regexp.MustCompile(`FAILED\s+([\w/\\.-]+)::(\w+)`)
	collectingLine = regexp.MustCompile(`ERROR\s+collecting\s+([\w/\\.-]+)`)
	embeddedLineNo = regexp.MustCompile(`line\s+(\d+)`)
)

// Parse extracts pass/fail counts and failure records from pytest verbose
// output. It is best-effort over whatever text it is given and never
// fails: malformed input yields a partial Result.
func Parse(raw string) *Result {
	result := &Result{
		Passed:    strings.Count(raw, "PASSED"),
		Failed:    strings.Count(raw, "FAILED"),
		RawOutput: raw,
	}

	lines := strings.Split(raw, "\n")
	result.Failures = parseFailureBlocks(lines)

	// No delimited blocks: synthesize minimal records from the short
	// test summary so callers still learn which tests failed.
	if len(result.Failures) == 0 {
		seen := make(map[string]bool)
		for _, m := range failedSummary.FindAllStringSubmatch(raw, -1) {
			file := patch.NormalizePath(m[1])
			key := file + "::" + m[2]
			if seen[key] {
				continue
			}
			seen[key] = true
			result.Failures = append(result.Failures, Failure{
				TestName: m[2],
				File:     file,
				Line:     0,
				Message:  "Test " + m[2] + " failed",
			})
		}
	}

	result.Failures = append(result.Failures, parseCollectionErrors(lines)...)
	return result
}

// parseFailureBlocks walks the FAILURES section: each failure is fenced
// by an underscore banner naming the test, runs until the next banner,
// and conventionally ends with the assertion output.
func parseFailureBlocks(lines []string) []Failure {
	var failures []Failure
	var current *Failure
	var block []string

	flush := func() {
		if current == nil {
			return
		}
		attributeBlock(current, block)
		failures = append(failures, *current)
		current = nil
		block = nil
	}

	for _, line := range lines {
		if m := failureBanner.FindStringSubmatch(line); m != nil {
			flush()
			current = &Failure{TestName: m[1]}
			continue
		}
		if sectionBanner.MatchString(line) {
			flush()
			continue
		}
		if current != nil {
			block = append(block, line)
		}
	}
	flush()
	return failures
}

// attributeBlock fills file, line, and message from a failure block: the
// first path:line reference wins, and the last non-banner, non-blank line
// carries the assertion message.
func attributeBlock(f *Failure, block []string) {
	f.File = "unknown"
	for _, line := range block {
		if m := fileLineRef.FindStringSubmatch(line); m != nil {
			f.File = patch.NormalizePath(m[1])
			f.Line, _ = strconv.Atoi(m[2])
			break
		}
	}
	for i := len(block) - 1; i >= 0; i-- {
		msg := strings.TrimSpace(block[i])
		if msg != "" && !strings.HasPrefix(msg, "_") {
			f.Message = msg
			break
		}
	}
}

// parseCollectionErrors finds "ERROR collecting" banners, defects that
// keep a test file from even loading, and records them with any line
// number embedded in the traceback.
func parseCollectionErrors(lines []string) []Failure {
	var failures []Failure
	for i := 0; i < len(lines); i++ {
		m := collectingLine.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		file := patch.NormalizePath(m[1])

		// The detail is everything below the banner up to the next
		// section: pytest prints the traceback at column 0, so only
		// another banner (or another collection error) ends the block.
		var detail []string
		j := i + 1
		for ; j < len(lines); j++ {
			if sectionBanner.MatchString(lines[j]) || failureBanner.MatchString(lines[j]) ||
				collectingLine.MatchString(lines[j]) {
				break
			}
			detail = append(detail, lines[j])
		}
		i = j - 1

		text := strings.TrimSpace(strings.Join(detail, "\n"))
		lineNo := 0
		if lm := embeddedLineNo.FindStringSubmatch(text); lm != nil {
			lineNo, _ = strconv.Atoi(lm[1])
		}
		if len(text) > maxCollectionMessage {
			text = text[:maxCollectionMessage]
		}
		failures = append(failures, Failure{
			TestName: "collection_error:" + file,
			File:     file,
			Line:     lineNo,
			Message:  text,
		})
	}
	return failures
}

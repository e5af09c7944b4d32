// Package analyze inspects a cloned workspace: it renders a file tree,
// discovers test files, detects the dominant language, and infers the
// test command the healing loop should run.
package analyze

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var skipDirs = map[string]bool{
	".git":          true,
	"__pycache__":   true,
	"node_modules":  true,
	".venv":         true,
	"venv":          true,
	"env":           true,
	".tox":          true,
	".pytest_cache": true,
}

// Report summarizes one workspace analysis.
type Report struct {
	Tree        string   `json:"tree"`
	TestFiles   []string `json:"test_files"`
	Language    string   `json:"language"`
	TestCommand string   `json:"test_command"`
}

// Analyze runs the full workspace analysis.
func Analyze(workspace string) *Report {
	r := &Report{
		Tree:      BuildFileTree(workspace),
		TestFiles: DiscoverTestFiles(workspace),
		Language:  DetectLanguage(workspace),
	}
	r.TestCommand = InferTestCommand(r.Language)

	log.Printf("[ANALYZE] language: %s", r.Language)
	log.Printf("[ANALYZE] test files found: %d", len(r.TestFiles))
	log.Printf("[ANALYZE] test command: %s", r.TestCommand)
	return r
}

// BuildFileTree renders a sorted box-drawing tree of the workspace,
// omitting VCS and environment directories.
func BuildFileTree(root string) string {
	return strings.Join(treeLines(root, ""), "\n")
}

func treeLines(dir, prefix string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if skipDirs[e.Name()] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var lines []string
	for i, name := range names {
		last := i == len(names)-1
		connector := "├── "
		childPrefix := prefix + "│   "
		if last {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		lines = append(lines, prefix+connector+name)

		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			lines = append(lines, treeLines(path, childPrefix)...)
		}
	}
	return lines
}

// DiscoverTestFiles returns sorted workspace-relative paths of files
// matching test_*.py or *_test.py.
func DiscoverTestFiles(root string) []string {
	var found []string
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".py") {
			return nil
		}
		if strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test.py") {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			found = append(found, filepath.ToSlash(rel))
		}
		return nil
	})
	sort.Strings(found)
	return found
}

var extLanguages = map[string]string{
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".java": "java",
	".go":   "go",
	".rb":   "ruby",
}

// DetectLanguage counts file extensions under the workspace and maps the
// most common one to a language name. Ties break lexicographically so the
// result is stable.
func DetectLanguage(root string) string {
	counts := make(map[string]int)
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if ext := filepath.Ext(d.Name()); ext != "" {
			counts[ext]++
		}
		return nil
	})
	if len(counts) == 0 {
		return "unknown"
	}

	var top string
	for ext, n := range counts {
		if top == "" || n > counts[top] || (n == counts[top] && ext < top) {
			top = ext
		}
	}
	if lang, ok := extLanguages[top]; ok {
		return lang
	}
	return "unknown"
}

// InferTestCommand maps a detected language to its conventional test
// invocation. Python is the default since the healing loop targets
// pytest-style suites.
func InferTestCommand(language string) string {
	switch language {
	case "javascript", "typescript":
		return "npm test"
	case "java":
		return "mvn test"
	default:
		return "pytest -v"
	}
}

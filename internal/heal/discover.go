package heal

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lucasnoah/healfactory/internal/testrun"
)

var discoverSkipDirs = map[string]bool{
	".git":          true,
	"__pycache__":   true,
	"node_modules":  true,
	".venv":         true,
	"venv":          true,
	".pytest_cache": true,
	".tox":          true,
	"tests":         true,
}

// discoverSourceFiles returns the files implicated in the failures plus
// every non-test Python source in the workspace, sorted.
func discoverSourceFiles(workspace string, failures []testrun.Failure) []string {
	files := make(map[string]bool)

	for _, f := range failures {
		if f.File == "" || f.File == "unknown" {
			continue
		}
		if strings.HasPrefix(f.File, "test") || strings.Contains(f.File, "/test_") {
			continue
		}
		files[f.File] = true
	}

	filepath.WalkDir(workspace, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != workspace && discoverSkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".py") {
			return nil
		}
		if strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test.py") {
			return nil
		}
		rel, err := filepath.Rel(workspace, path)
		if err != nil {
			return nil
		}
		files[filepath.ToSlash(rel)] = true
		return nil
	})

	out := make([]string, 0, len(files))
	for f := range files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// readFileContents reads each listed file from the workspace. Missing
// files are skipped; unreadable files get an error placeholder so the
// provider still sees the path.
func readFileContents(workspace string, paths []string) map[string]string {
	contents := make(map[string]string)
	for _, p := range paths {
		full := filepath.Join(workspace, p)
		if _, err := os.Stat(full); err != nil {
			log.Printf("[HEAL] file not found: %s", p)
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			contents[p] = fmt.Sprintf("<Error reading file: %v>", err)
			log.Printf("[HEAL] error reading %s: %v", p, err)
			continue
		}
		contents[p] = string(data)
	}
	return contents
}

package detect

import (
	"context"
	"errors"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lucasnoah/healfactory/internal/patch"
)

// ModuleResolver reports whether an imported top-level module name can be
// resolved in the target environment.
type ModuleResolver interface {
	Exists(name string) (bool, error)
}

var (
	importStmt = regexp.MustCompile(`^import\s+([\w\.]+)`)
	fromStmt   = regexp.MustCompile(`^from\s+([\w\.]+)\s+import`)
)

// scanImports proposes deleting import lines whose module resolves
// neither locally nor through the module resolver. Test files are exempt:
// their imports (the test framework, the code under test) are assumed
// valid.
func (d *Detector) scanImports(workspace string) []patch.Patch {
	if d.resolver == nil {
		return nil
	}

	local := localModules(workspace)
	var patches []patch.Patch
	unavailable := false

	walkPython(workspace, func(path, rel string) {
		if unavailable || isTestFile(filepath.Base(path)) {
			return
		}
		lines := readLines(path)
		for i, line := range lines {
			stripped := strings.TrimSpace(line)
			if stripped == "" || strings.HasPrefix(stripped, "#") {
				continue
			}

			var module string
			if m := importStmt.FindStringSubmatch(stripped); m != nil {
				module = m[1]
			} else if m := fromStmt.FindStringSubmatch(stripped); m != nil {
				module = m[1]
			}
			if module == "" || strings.HasPrefix(module, ".") {
				continue
			}

			top := strings.SplitN(module, ".", 2)[0]
			if local[top] {
				continue
			}

			exists, err := d.resolver.Exists(top)
			if err != nil {
				if errors.Is(err, ErrUnavailable) {
					log.Printf("[DETECT] module resolver unavailable, skipping import scan")
					unavailable = true
					return
				}
				continue
			}
			if exists {
				continue
			}

			log.Printf("[DETECT] unresolved module %q in %s:%d", module, rel, i+1)
			patches = append(patches, patch.Patch{
				File:        rel,
				Line:        i + 1,
				OldText:     strings.TrimRight(line, "\r\n"),
				NewText:     "",
				Category:    patch.CategoryImport,
				Description: "remove import of non-existent module '" + module + "'",
			})
		}
	})
	if unavailable {
		return nil
	}
	return patches
}

// localModules collects module names defined by the project itself:
// top-level files and directories of the workspace root and of the
// conventional src/ subdirectory.
func localModules(workspace string) map[string]bool {
	local := make(map[string]bool)
	addEntries := func(dir string) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				if !skipDirs[name] {
					local[name] = true
				}
			} else if strings.HasSuffix(name, ".py") && name != "__init__.py" {
				local[strings.TrimSuffix(name, ".py")] = true
			}
		}
	}
	addEntries(workspace)
	addEntries(filepath.Join(workspace, "src"))
	return local
}

// ManifestResolver resolves module names against a static set: the Python
// standard library table plus the names declared in the workspace
// dependency manifest. It is the build-time stand-in for querying a
// runtime loader.
type ManifestResolver struct {
	known map[string]bool
}

// NewManifestResolver builds a resolver from requirements.txt in the
// workspace (missing manifest just means no extra names).
func NewManifestResolver(workspace string) *ManifestResolver {
	known := make(map[string]bool, len(stdlibModules))
	for name := range stdlibModules {
		known[name] = true
	}
	data, err := os.ReadFile(filepath.Join(workspace, "requirements.txt"))
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if name := requirementName(line); name != "" {
				known[name] = true
				// Import names conventionally use underscores where
				// package names use dashes.
				known[strings.ReplaceAll(name, "-", "_")] = true
			}
		}
	}
	return &ManifestResolver{known: known}
}

func (r *ManifestResolver) Exists(name string) (bool, error) {
	return r.known[strings.ToLower(name)], nil
}

// requirementName extracts the bare package name from one manifest line,
// dropping comments, extras, and version specifiers.
func requirementName(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
		return ""
	}
	for _, sep := range []string{"==", ">=", "<=", "~=", "!=", ">", "<", "[", ";", " "} {
		if i := strings.Index(line, sep); i >= 0 {
			line = line[:i]
		}
	}
	return strings.ToLower(strings.TrimSpace(line))
}

// InterpreterResolver asks a Python interpreter whether a module spec can
// be found. A probe failure other than a clean "not found" counts as
// unresolved, matching the reference behavior of treating resolution
// exceptions as missing modules.
type InterpreterResolver struct {
	Python  string
	Timeout time.Duration
}

const resolveProbe = `import importlib.util, sys
try:
    spec = importlib.util.find_spec(sys.argv[1])
except (ModuleNotFoundError, ValueError):
    spec = None
sys.exit(0 if spec is not None else 1)
`

// NewInterpreterResolver creates a resolver using the given interpreter
// ("python3" when empty).
func NewInterpreterResolver(python string, timeout time.Duration) *InterpreterResolver {
	if python == "" {
		python = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &InterpreterResolver{Python: python, Timeout: timeout}
}

func (r *InterpreterResolver) Exists(name string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Python, "-c", resolveProbe, name)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, ErrUnavailable
}

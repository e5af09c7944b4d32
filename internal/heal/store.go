package heal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists run reports on disk: one file per run under reports/,
// plus results.json holding the latest report for quick retrieval.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Save writes the report for its run and updates the latest pointer.
func (s *Store) Save(r *Report) error {
	if r.RunID == "" {
		return fmt.Errorf("report has no run ID")
	}
	path := filepath.Join(s.dir, "reports", r.RunID+".json")
	if err := writeReport(path, r); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if err := writeReport(filepath.Join(s.dir, "results.json"), r); err != nil {
		return fmt.Errorf("save latest report: %w", err)
	}
	return nil
}

// Get loads one report by run ID, or nil if it does not exist.
func (s *Store) Get(runID string) (*Report, error) {
	return readReport(filepath.Join(s.dir, "reports", runID+".json"))
}

// Latest loads the most recently saved report, or nil if none exists.
func (s *Store) Latest() (*Report, error) {
	return readReport(filepath.Join(s.dir, "results.json"))
}

// writeReport marshals the report and writes it atomically: a temp file
// in the target directory, then a rename, so a crash mid-write never
// leaves a truncated report behind.
func writeReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	return nil
}

func readReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return &r, nil
}

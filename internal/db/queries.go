package db

import (
	"database/sql"
	"fmt"

	"github.com/lucasnoah/healfactory/internal/patch"
)

// Run represents a row in the runs table.
type Run struct {
	ID             string
	RepoURL        string
	Team           string
	Leader         string
	Branch         string
	FinalStatus    string
	Iterations     int
	PatchesApplied int
	StartedAt      string
	FinishedAt     string
}

// RunEvent represents a row in the run_events table.
type RunEvent struct {
	ID        int
	RunID     string
	Event     string
	Detail    string
	Timestamp string
}

// PatchRow represents a row in the patches table.
type PatchRow struct {
	ID            int
	RunID         string
	Iteration     int
	File          string
	Line          int
	Category      string
	Description   string
	Status        string
	StatusMessage string
	Timestamp     string
}

// InsertRun records the start of a healing run.
func (d *DB) InsertRun(id, repoURL, team, leader string) error {
	_, err := d.conn.Exec(
		`INSERT INTO runs (id, repo_url, team, leader) VALUES (?, ?, ?, ?)`,
		id, repoURL, team, leader,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// SetRunBranch records the fix branch once it is created.
func (d *DB) SetRunBranch(id, branch string) error {
	_, err := d.conn.Exec(`UPDATE runs SET branch = ? WHERE id = ?`, branch, id)
	if err != nil {
		return fmt.Errorf("set run branch: %w", err)
	}
	return nil
}

// FinishRun records the terminal state of a run.
func (d *DB) FinishRun(id, finalStatus string, iterations, patchesApplied int) error {
	_, err := d.conn.Exec(
		`UPDATE runs SET final_status = ?, iterations = ?, patches_applied = ?, finished_at = datetime('now') WHERE id = ?`,
		finalStatus, iterations, patchesApplied, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun returns one run by ID, or nil if it does not exist.
func (d *DB) GetRun(id string) (*Run, error) {
	row := d.conn.QueryRow(
		`SELECT id, repo_url, team, leader, branch, final_status, iterations, patches_applied, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (d *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(
		`SELECT id, repo_url, team, leader, branch, final_status, iterations, patches_applied, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var branch, finishedAt sql.NullString
	err := row.Scan(&r.ID, &r.RepoURL, &r.Team, &r.Leader, &branch, &r.FinalStatus,
		&r.Iterations, &r.PatchesApplied, &r.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	r.Branch = branch.String
	r.FinishedAt = finishedAt.String
	return &r, nil
}

// LogRunEvent appends a progress event for a run.
func (d *DB) LogRunEvent(runID, eventType, detail string) error {
	_, err := d.conn.Exec(
		`INSERT INTO run_events (run_id, event, detail) VALUES (?, ?, ?)`,
		runID, eventType, detail,
	)
	if err != nil {
		return fmt.Errorf("log run event: %w", err)
	}
	return nil
}

// ListRunEvents returns all events for a run in insertion order.
func (d *DB) ListRunEvents(runID string) ([]RunEvent, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, event, detail, timestamp FROM run_events WHERE run_id = ? ORDER BY id ASC`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var e RunEvent
		var detail sql.NullString
		if err := rows.Scan(&e.ID, &e.RunID, &e.Event, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		e.Detail = detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// LogPatches records the outcome of an applied patch set.
func (d *DB) LogPatches(runID string, iteration int, patches []patch.Patch) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range patches {
		_, err := tx.Exec(
			`INSERT INTO patches (run_id, iteration, file, line, category, description, status, status_message)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, iteration, p.File, p.Line, string(p.Category), p.Description, string(p.Status), p.StatusMessage,
		)
		if err != nil {
			return fmt.Errorf("log patch: %w", err)
		}
	}
	return tx.Commit()
}

// ListPatches returns all patches recorded for a run in insertion order.
func (d *DB) ListPatches(runID string) ([]PatchRow, error) {
	rows, err := d.conn.Query(
		`SELECT id, run_id, iteration, file, line, category, description, status, status_message, timestamp
		 FROM patches WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("list patches: %w", err)
	}
	defer rows.Close()

	var out []PatchRow
	for rows.Next() {
		var p PatchRow
		var desc, msg sql.NullString
		if err := rows.Scan(&p.ID, &p.RunID, &p.Iteration, &p.File, &p.Line, &p.Category,
			&desc, &p.Status, &msg, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan patch: %w", err)
		}
		p.Description = desc.String
		p.StatusMessage = msg.String
		out = append(out, p)
	}
	return out, rows.Err()
}

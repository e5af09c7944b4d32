package heal

import "sync"

// Manager statuses.
const (
	ManagerIdle    = "idle"
	ManagerRunning = "running"
	ManagerDone    = "done"
	ManagerError   = "error"
)

// RunManager tracks the single in-flight healing run. Only one run may be
// active at a time; TryStart rejects concurrent starts.
type RunManager struct {
	mu      sync.Mutex
	status  string
	message string
	report  *Report
}

// NewRunManager returns an idle manager.
func NewRunManager() *RunManager {
	return &RunManager{status: ManagerIdle}
}

// TryStart claims the run slot. It returns false if a run is already in
// flight.
func (m *RunManager) TryStart(message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == ManagerRunning {
		return false
	}
	m.status = ManagerRunning
	m.message = message
	m.report = nil
	return true
}

// SetMessage updates the progress message of the active run.
func (m *RunManager) SetMessage(message string) {
	m.mu.Lock()
	m.message = message
	m.mu.Unlock()
}

// Complete releases the run slot with a final report.
func (m *RunManager) Complete(r *Report, message string) {
	m.mu.Lock()
	m.status = ManagerDone
	m.message = message
	m.report = r
	m.mu.Unlock()
}

// Fail releases the run slot after an error. A partial report may still be
// attached.
func (m *RunManager) Fail(r *Report, message string) {
	m.mu.Lock()
	m.status = ManagerError
	m.message = message
	m.report = r
	m.mu.Unlock()
}

// Snapshot returns the current status, message, and report.
func (m *RunManager) Snapshot() (status, message string, report *Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.message, m.report
}

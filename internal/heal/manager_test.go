package heal

import "testing"

func TestRunManagerSingleFlight(t *testing.T) {
	m := NewRunManager()

	if !m.TryStart("first") {
		t.Fatal("first start should succeed")
	}
	if m.TryStart("second") {
		t.Fatal("concurrent start should be rejected")
	}

	status, message, _ := m.Snapshot()
	if status != ManagerRunning || message != "first" {
		t.Errorf("snapshot = %q %q", status, message)
	}
}

func TestRunManagerComplete(t *testing.T) {
	m := NewRunManager()
	m.TryStart("run")
	m.Complete(&Report{FinalStatus: StatusPassed}, "done")

	status, message, report := m.Snapshot()
	if status != ManagerDone || message != "done" {
		t.Errorf("snapshot = %q %q", status, message)
	}
	if report == nil || report.FinalStatus != StatusPassed {
		t.Errorf("report = %+v", report)
	}

	if !m.TryStart("again") {
		t.Error("slot should be free after completion")
	}
}

func TestRunManagerFail(t *testing.T) {
	m := NewRunManager()
	m.TryStart("run")
	m.Fail(nil, "clone failed")

	status, message, _ := m.Snapshot()
	if status != ManagerError || message != "clone failed" {
		t.Errorf("snapshot = %q %q", status, message)
	}
	if !m.TryStart("again") {
		t.Error("slot should be free after failure")
	}
}

func TestRunManagerStartClearsPreviousReport(t *testing.T) {
	m := NewRunManager()
	m.TryStart("run")
	m.Complete(&Report{FinalStatus: StatusPassed}, "done")
	m.TryStart("next")

	_, _, report := m.Snapshot()
	if report != nil {
		t.Error("stale report should be cleared on start")
	}
}

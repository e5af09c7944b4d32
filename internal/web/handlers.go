package web

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/lucasnoah/healfactory/internal/event"
	"github.com/lucasnoah/healfactory/internal/heal"
)

type runRequest struct {
	RepoURL string `json:"repo_url"`
	Team    string `json:"team_name"`
	Leader  string `json:"leader_name"`
}

// handleRun starts a healing run in the background. Only one run may be
// active at a time; a second request is rejected with 409.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.RepoURL = strings.TrimSpace(req.RepoURL)
	req.Team = strings.TrimSpace(req.Team)
	req.Leader = strings.TrimSpace(req.Leader)

	switch {
	case req.RepoURL == "":
		writeError(w, http.StatusBadRequest, "repo_url is required")
		return
	case req.Team == "":
		writeError(w, http.StatusBadRequest, "team_name is required")
		return
	case req.Leader == "":
		writeError(w, http.StatusBadRequest, "leader_name is required")
		return
	}

	if !s.manager.TryStart("Starting healing run...") {
		writeError(w, http.StatusConflict, "a healing run is already in progress")
		return
	}

	go s.runInBackground(heal.Options{RepoURL: req.RepoURL, Team: req.Team, Leader: req.Leader})

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Healing run started",
		"status":  heal.ManagerRunning,
	})
}

// runInBackground owns the run slot claimed by handleRun; the run outlives
// the triggering request. While the run is active, step messages from the
// event stream are mirrored into the manager so polling clients see live
// progress.
func (s *Server) runInBackground(opts heal.Options) {
	stop := s.forwardProgress()
	s.broker.Emit(event.TypeStatus, map[string]any{"message": "Healing run started"})

	report, err := s.healer.Run(context.Background(), opts)
	stop()
	if err != nil {
		log.Printf("[WEB] healing run failed: %v", err)
		s.manager.Fail(report, err.Error())
		return
	}
	s.manager.Complete(report, "Healing run completed")
}

// forwardProgress copies the message of status and step events into the
// run manager until the returned stop function is called. stop waits for
// the forwarder to drain so a late message never overwrites the final
// one.
func (s *Server) forwardProgress() (stop func()) {
	ch := s.broker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			if e.Type != event.TypeStatus && e.Type != event.TypeStep {
				continue
			}
			if msg, ok := e.Data["message"].(string); ok && msg != "" {
				s.manager.SetMessage(msg)
			}
		}
	}()
	return func() {
		s.broker.Unsubscribe(ch)
		<-done
	}
}

// handleStatus reports the current run state for polling clients.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, message, report := s.manager.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  status,
		"message": message,
		"result":  report,
	})
}

// handleRuns returns the recent run history, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "run history is not enabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	runs, err := s.db.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleResults serves the latest saved run report.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "report storage is not enabled")
		return
	}
	report, err := s.store.Latest()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if report == nil {
		writeError(w, http.StatusNotFound, "no results yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

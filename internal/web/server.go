// Package web exposes the healing pipeline over HTTP: a run trigger, a
// polling status endpoint, an SSE event stream, and run history.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/lucasnoah/healfactory/internal/db"
	"github.com/lucasnoah/healfactory/internal/event"
	"github.com/lucasnoah/healfactory/internal/heal"
)

// runStarter is the slice of heal.Healer the server needs. Interface for
// testing.
type runStarter interface {
	Run(ctx context.Context, opts heal.Options) (*heal.Report, error)
}

// Server is the healing API server.
type Server struct {
	healer  runStarter
	manager *heal.RunManager
	broker  *event.Broker
	store   *heal.Store
	db      *db.DB
	port    int
}

// NewServer creates a Server. store and database may be nil; the matching
// endpoints then report no data.
func NewServer(healer runStarter, manager *heal.RunManager, broker *event.Broker, store *heal.Store, database *db.DB, port int) *Server {
	return &Server{
		healer:  healer,
		manager: manager,
		broker:  broker,
		store:   store,
		db:      database,
		port:    port,
	}
}

// Handler returns the route mux. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/results", s.handleResults)
	mux.HandleFunc("/api/health", s.handleHealth)
	return mux
}

// Start listens on the configured port and serves until the listener
// fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	log.Printf("[WEB] listening on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[WEB] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

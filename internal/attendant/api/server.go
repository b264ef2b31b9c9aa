package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/nordvoice/attendant/internal/attendant/session"
)

// SessionProvider supplies session snapshots and lifetime counters for
// the API. Implemented by app.Tracker.
type SessionProvider interface {
	Active() []session.Info
	TotalStarted() int
	TerminationCounts() map[string]int
}

// Server provides the ops HTTP API for the attendant worker (headless,
// API only)
type Server struct {
	addr       string
	httpServer *http.Server
	sessions   SessionProvider
	agentName  string
	version    string
	shutdown   func()
	startTime  time.Time
}

// NewServer creates a new API server
func NewServer(addr, agentName, version string, sessions SessionProvider) *Server {
	s := &Server{
		addr:      addr,
		sessions:  sessions,
		agentName: agentName,
		version:   version,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()

	// Health and stats
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)

	// Active call sessions
	mux.HandleFunc("/api/v1/sessions", s.handleSessions)

	// Admin
	mux.HandleFunc("/api/v1/shutdown", s.handleShutdown)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

// SetShutdownFunc installs the worker shutdown trigger invoked by the
// shutdown endpoint.
func (s *Server) SetShutdownFunc(fn func()) {
	s.shutdown = fn
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	slog.Info("[API] Starting HTTP API server", "addr", s.addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("[API] Server error", "error", err)
			panic(err)
		}
	}()
	return nil
}

// Stop shuts down the server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// --- Health & Stats ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(s.startTime).Seconds()
	response := map[string]interface{}{
		"status":  "ok",
		"uptime":  int64(uptime),
		"agent":   s.agentName,
		"version": s.version,
	}
	s.writeJSON(w, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active := 0
	total := 0
	var reasons map[string]int
	if s.sessions != nil {
		active = len(s.sessions.Active())
		total = s.sessions.TotalStarted()
		reasons = s.sessions.TerminationCounts()
	}
	if reasons == nil {
		reasons = map[string]int{}
	}

	response := map[string]interface{}{
		"active_sessions": active,
		"total_sessions":  total,
		"terminations":    reasons,
	}
	s.writeJSON(w, response)
}

// --- Sessions ---

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := []session.Info{}
	if s.sessions != nil {
		infos = s.sessions.Active()
	}
	s.writeJSON(w, infos)
}

// --- Admin ---

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.shutdown == nil {
		http.Error(w, "Shutdown not configured", http.StatusServiceUnavailable)
		return
	}

	slog.Info("[API] Shutdown requested")
	response := map[string]interface{}{
		"message": "Shutdown initiated",
	}
	s.writeJSON(w, response)

	// Let the response flush before the listener dies.
	go s.shutdown()
}

// --- Helpers ---

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[API] Failed to encode JSON", "error", err)
	}
}

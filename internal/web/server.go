// Package web provides a read-only HTTP status server for the e-bike controller.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sweeney/ebike-controller/internal/status"
)

// StaleAfter is how long the control state may go without an update before
// /health reports it stale.
const StaleAfter = time.Second

// Server serves the dashboard page, its JSON form and a health check.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server on addr that reads state from tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// handleHealth answers 200 while the control loop is ticking without a
// latched fault, and 503 with the reason otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	code, msg := health(s.tracker.Snapshot())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	fmt.Fprintln(w, msg)
}

func health(snap status.Snapshot) (int, string) {
	st := snap.State
	switch {
	case st.UpdatedAt.IsZero():
		return http.StatusServiceUnavailable, "starting"
	case st.EmergencyShutdown:
		return http.StatusServiceUnavailable, "fault: " + st.Fault.String()
	case snap.Now.Sub(st.UpdatedAt) > StaleAfter:
		return http.StatusServiceUnavailable, fmt.Sprintf("stale: last tick %v ago", snap.Now.Sub(st.UpdatedAt).Round(time.Millisecond))
	}
	return http.StatusOK, "ok"
}

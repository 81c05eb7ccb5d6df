// Package http serves the latest tracker view as an HTML dashboard and as
// JSON. It is read-only: commands still go through the terminal.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"expensetracker/internal/log"
	"expensetracker/internal/tracker"
	appweb "expensetracker/web"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	refreshSeconds    = 5
)

// Server is a tracker.Sink that keeps the most recent view for its handlers.
type Server struct {
	http.Server
	templates *template.Template
	logger    *log.Logger

	mu       sync.RWMutex
	view     tracker.View
	rendered bool

	shutdownOnce sync.Once
}

var _ tracker.Sink = (*Server)(nil)

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		templates: t,
		logger:    logger.WithComponent(log.ComponentHTTP),
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/", s.withMiddleware(http.HandlerFunc(s.handleDashboard)))
	mux.Handle("/api/view", s.withMiddleware(http.HandlerFunc(s.handleView)))

	return s, nil
}

// Render stores v for the next request.
func (s *Server) Render(_ context.Context, v tracker.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
	s.rendered = true
}

func (s *Server) current() (tracker.View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view, s.rendered
}

// Serve listens on l until Shutdown; a clean shutdown returns nil.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("HTTP dashboard listening", "addr", l.Addr().String())
	if err := s.Server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the tracker has produced a view.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.current(); !ok {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, _ := s.current()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := s.templates.ExecuteTemplate(w, "dashboard", newDashboard(v)); err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to render dashboard",
			log.FieldError, err,
			log.FieldRequestID, RequestID(r.Context()))
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	v, ok := s.current()
	if !ok {
		http.Error(w, "no view yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(newViewJSON(v)); err != nil {
		s.logger.WarnContext(r.Context(), "Failed to write view", log.FieldError, err)
	}
}

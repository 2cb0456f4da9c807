// Package health exposes the worker's liveness, status and metrics over HTTP.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gmcoin/mintworker/internal/worker"
)

// StatusSource provides the runner snapshot served on /status.
type StatusSource interface {
	Status() worker.Status
}

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	source StatusSource
	server *http.Server
}

// NewServer creates a new health server.
func NewServer(source StatusSource, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.source.Status()
	w.Header().Set("Content-Type", "application/json")

	if !status.Running {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "stopped"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.source.Status())
}

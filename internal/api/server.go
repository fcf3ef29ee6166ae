package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"patron/internal/models"
	"patron/internal/orchestrator"
	"patron/internal/storage"
)

// StatusSource exposes the agent's live state
type StatusSource interface {
	Status() models.AgentStatus
	LastRound() (orchestrator.RoundResult, bool)
}

// Server represents the HTTP API server
// Provides endpoints for Prometheus metrics, health checks, and the audit trail
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	repository storage.Repository
	status     StatusSource
	port       int
}

// NewServer creates a new API server instance
// The repository is made available to all handlers for audit reads
func NewServer(port int, repository storage.Repository, status StatusSource) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:        mux,
		repository: repository,
		status:     status,
		port:       port,
	}

	// Register all HTTP routes
	s.registerRoutes()

	return s
}

// Handler returns the routed handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.handleMetrics())

	// Agent endpoints
	s.mux.HandleFunc("/status", s.getOnly(s.handleStatus))
	s.mux.HandleFunc("/grants", s.getOnly(s.handleListGrants))
	s.mux.HandleFunc("/evaluations", s.getOnly(s.handleListEvaluations))
}

func (s *Server) getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// Start starts the HTTP server in a goroutine
// Returns immediately after starting the server
func (s *Server) Start() error {
	go func() {
		slog.Info("API server starting",
			"port", s.port,
			"endpoints", []string{"/", "/health", "/metrics", "/status", "/grants", "/evaluations"},
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	// Give the server a moment to start
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Shutdown gracefully shuts down the HTTP server
// Waits for active connections to close or context to timeout
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}

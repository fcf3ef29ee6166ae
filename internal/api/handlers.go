package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"patron/internal/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// handleIndex returns basic agent information
// GET / - Returns service info and available endpoints
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	info := map[string]interface{}{
		"service":     "The Patron",
		"version":     "1.0.0",
		"description": "Autonomous onchain micro-grant agent",
		"endpoints": map[string]string{
			"GET /":            "This page - Service information",
			"GET /health":      "Health check endpoint",
			"GET /metrics":     "Prometheus metrics for monitoring",
			"GET /status":      "Agent phase, round counters, granted addresses and the last round result",
			"GET /grants":      "Disbursed grants, newest first (supports ?limit=, ?offset=)",
			"GET /evaluations": "Candidate evaluations, newest first (supports ?limit=, ?offset=)",
		},
	}

	s.sendJSON(w, info)
}

// handleHealth returns health status
// GET /health - Health check for monitoring systems, includes audit storage
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.repository.Ping(r.Context()); err != nil {
		slog.Warn("Health check failed", "error", err)
		s.sendError(w, "Storage unhealthy", http.StatusServiceUnavailable)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "patron",
	}

	s.sendJSON(w, health)
}

// handleMetrics returns Prometheus metrics
// GET /metrics - Prometheus scraping endpoint
func (s *Server) handleMetrics() http.Handler {
	return promhttp.Handler()
}

// =============================================================================
// AGENT ENDPOINTS
// =============================================================================

// handleStatus returns the agent's state snapshot
// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"agent": s.status.Status(),
	}
	if last, ok := s.status.LastRound(); ok {
		response["last_round"] = last
	}
	s.sendJSON(w, response)
}

// handleListGrants lists disbursed grants
// GET /grants?limit=50&offset=0
func (s *Server) handleListGrants(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	grants, err := s.repository.ListGrants(r.Context(), limit, offset)
	if err != nil {
		slog.Error("Failed to list grants", "error", err)
		s.sendError(w, "Failed to retrieve grants", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, models.GrantListResponse{
		Grants:   grants,
		Page:     pageNumber(limit, offset),
		PageSize: limit,
	})
}

// handleListEvaluations lists candidate evaluations
// GET /evaluations?limit=50&offset=0
func (s *Server) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	evaluations, err := s.repository.ListEvaluations(r.Context(), limit, offset)
	if err != nil {
		slog.Error("Failed to list evaluations", "error", err)
		s.sendError(w, "Failed to retrieve evaluations", http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, models.EvaluationListResponse{
		Evaluations: evaluations,
		Page:        pageNumber(limit, offset),
		PageSize:    limit,
	})
}

func (s *Server) sendJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

// sendError sends a JSON error response
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// Package server exposes the learner dashboard and the collaborator-compatible
// progress API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/learner"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

const (
	maxBodyBytes = 1 << 20
	checkTimeout = 2 * time.Second
)

// Check reports whether a dependency is ready to serve.
type Check func(ctx context.Context) error

// Config holds the dependencies of the HTTP server.
type Config struct {
	Learners *learner.Service
	Store    progress.Store
	Catalog  catalog.Source
	Checks   map[string]Check
}

// Server routes HTTP requests to the learner service and progress store.
type Server struct {
	learners     *learner.Service
	store        progress.Store
	catalog      catalog.Source
	checks       map[string]Check
	updateSchema *gojsonschema.Schema
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Learners == nil {
		return nil, fmt.Errorf("learner service is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("progress store is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog source is required")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(updateProgressSchema))
	if err != nil {
		return nil, fmt.Errorf("compile update-progress schema: %w", err)
	}

	return &Server{
		learners:     cfg.Learners,
		store:        cfg.Store,
		catalog:      cfg.Catalog,
		checks:       cfg.Checks,
		updateSchema: schema,
	}, nil
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("GET /api/learners/{id}/dashboard", s.handleDashboard)
	mux.HandleFunc("POST /api/learners/{id}/complete", s.handleComplete)
	mux.HandleFunc("POST /api/learners/{id}/take-course", s.handleTakeCourse)
	mux.HandleFunc("POST /api/learners/{id}/select", s.handleSelect)
	mux.HandleFunc("POST /api/learners/{id}/refresh", s.handleRefresh)

	// Collaborator-compatible routes.
	mux.HandleFunc("GET /api/intern-courses/{id}", s.handleInternCourses)
	mux.HandleFunc("GET /api/intern-courses/{id}/workbook", s.handleCourseWorkbook)
	mux.HandleFunc("GET /api/intern-progress/{id}", s.handleInternProgress)
	mux.HandleFunc("POST /api/update-progress", s.handleUpdateProgress)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, learner.ErrTransitionInProgress),
		errors.Is(err, learner.ErrStaleCursor),
		errors.Is(err, progress.ErrNoCursor):
		return http.StatusConflict
	case errors.Is(err, progress.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, progress.ErrLocked):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// Package api provides HTTP handlers for the Grounded API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/groundedhq/grounded/internal/analysis"
	"github.com/groundedhq/grounded/internal/auth"
	"github.com/groundedhq/grounded/internal/store"
	"github.com/groundedhq/grounded/internal/usage"
)

// Handler provides the HTTP surface over the analysis pipeline.
type Handler struct {
	pipeline      *analysis.Pipeline
	repo          store.Repository
	tracker       *usage.Tracker
	authSvc       *auth.Service
	secureCookies bool
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(pipeline *analysis.Pipeline, repo store.Repository, tracker *usage.Tracker, authSvc *auth.Service, secureCookies bool) *Handler {
	return &Handler{
		pipeline:      pipeline,
		repo:          repo,
		tracker:       tracker,
		authSvc:       authSvc,
		secureCookies: secureCookies,
	}
}

// RegisterRoutes mounts every API endpoint on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/guardians", h.RunAnalysis)
	r.Get("/api/analysis/{id}", h.GetAnalysis)
	r.Post("/api/analysis/claim", h.ClaimAnalysis)
	r.Get("/api/user/analyses", h.ListUserAnalyses)
	r.Get("/api/usage", h.GetUsage)
	r.Post("/api/upgrade", h.Upgrade)

	r.Post("/api/auth/register", h.Register)
	r.Post("/api/auth/login", h.Login)
	r.Post("/api/auth/logout", h.Logout)
	r.Get("/api/auth/me", h.Me)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/groundedhq/grounded/internal/analysis"
	"github.com/groundedhq/grounded/internal/auth"
	"github.com/groundedhq/grounded/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type runAnalysisRequest struct {
	Query string `json:"query"`
}

// RunAnalysis handles POST /api/guardians: one full pipeline run.
func (h *Handler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req runAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		Error(w, http.StatusBadRequest, "Query is required")
		return
	}

	requesterID := auth.UserIDFromContext(r.Context())
	if requesterID != "" {
		state, err := h.tracker.Check(r.Context(), requesterID)
		if err != nil {
			// A quota check that cannot complete denies the request.
			slog.Error("quota check failed", "user_id", requesterID, "error", err)
			Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		if state.Exceeded {
			JSON(w, http.StatusTooManyRequests, map[string]interface{}{
				"error":            "Daily limit exceeded",
				"usage":            state,
				"upgrade_required": true,
			})
			return
		}
	}

	result, err := h.pipeline.Run(r.Context(), query, requesterID)
	if err != nil {
		slog.Error("analysis pipeline failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"id":        result.ID,
		"query":     result.Query,
		"responses": enrichResponses(result.Responses),
		"summary":   result.Summary,
		"timestamp": result.CreatedAt.Format(time.RFC3339),
	})
}

// GetAnalysis handles GET /api/analysis/{id}. Authorization denial is
// indistinguishable from a missing analysis.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		Error(w, http.StatusBadRequest, "Analysis ID is required")
		return
	}

	result, err := h.repo.GetAnalysis(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "Analysis not found")
			return
		}
		slog.Error("load analysis failed", "analysis_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !analysis.CanRead(result, auth.UserIDFromContext(r.Context())) {
		Error(w, http.StatusNotFound, "Analysis not found")
		return
	}

	JSON(w, http.StatusOK, toAnalysisView(result))
}

type claimRequest struct {
	AnalysisID string `json:"analysis_id"`
}

// ClaimAnalysis handles POST /api/analysis/claim: one-way transfer of an
// anonymous analysis to the authenticated requester.
func (h *Handler) ClaimAnalysis(w http.ResponseWriter, r *http.Request) {
	requesterID := auth.UserIDFromContext(r.Context())
	if requesterID == "" {
		Error(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AnalysisID == "" {
		Error(w, http.StatusBadRequest, "Analysis ID is required")
		return
	}

	err := h.repo.ClaimAnalysis(r.Context(), req.AnalysisID, requesterID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		Error(w, http.StatusNotFound, "Analysis not found")
	case errors.Is(err, store.ErrConflict):
		Error(w, http.StatusConflict, "Analysis already claimed")
	case err != nil:
		slog.Error("claim analysis failed", "analysis_id", req.AnalysisID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	default:
		JSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// ListUserAnalyses handles GET /api/user/analyses.
func (h *Handler) ListUserAnalyses(w http.ResponseWriter, r *http.Request) {
	requesterID := auth.UserIDFromContext(r.Context())
	if requesterID == "" {
		Error(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxListLimit)
		}
	}

	analyses, err := h.repo.ListAnalysesByOwner(r.Context(), requesterID, limit)
	if err != nil {
		slog.Error("list analyses failed", "user_id", requesterID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]analysisView, 0, len(analyses))
	for _, a := range analyses {
		views = append(views, toAnalysisView(a))
	}
	JSON(w, http.StatusOK, map[string]interface{}{"analyses": views})
}

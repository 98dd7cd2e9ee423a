package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/groundedhq/grounded/internal/auth"
	"github.com/groundedhq/grounded/internal/domain"
	"github.com/groundedhq/grounded/internal/store"
)

// demoPaymentToken stands in for a real payment processor assertion.
const demoPaymentToken = "demo_success"

func userPayload(user *domain.User) map[string]interface{} {
	payload := map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
		"plan":  user.Plan,
	}
	if user.PlanExpiresAt != nil {
		payload["plan_expires_at"] = user.PlanExpiresAt
	}
	return payload
}

// GetUsage handles GET /api/usage.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	requesterID := auth.UserIDFromContext(r.Context())
	if requesterID == "" {
		Error(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.repo.GetUser(r.Context(), requesterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "User not found")
			return
		}
		slog.Error("get user failed", "user_id", requesterID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	state, err := h.tracker.Check(r.Context(), requesterID)
	if err != nil {
		slog.Error("usage check failed", "user_id", requesterID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user":  userPayload(user),
		"usage": state,
	})
}

type upgradeRequest struct {
	PaymentMethod string `json:"payment_method"`
}

// Upgrade handles POST /api/upgrade. Payment validation is external; this
// endpoint only mutates plan state once the token is asserted valid.
func (h *Handler) Upgrade(w http.ResponseWriter, r *http.Request) {
	requesterID := auth.UserIDFromContext(r.Context())
	if requesterID == "" {
		Error(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req upgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PaymentMethod != demoPaymentToken {
		Error(w, http.StatusBadRequest, "Invalid payment method")
		return
	}

	if err := h.tracker.Upgrade(r.Context(), requesterID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusNotFound, "User not found")
			return
		}
		slog.Error("plan upgrade failed", "user_id", requesterID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := h.repo.GetUser(r.Context(), requesterID)
	if err != nil {
		slog.Error("get user after upgrade failed", "user_id", requesterID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	state, err := h.tracker.Check(r.Context(), requesterID)
	if err != nil {
		slog.Error("usage check after upgrade failed", "user_id", requesterID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Successfully upgraded to PRO plan",
		"user":    userPayload(user),
		"usage":   state,
	})
}

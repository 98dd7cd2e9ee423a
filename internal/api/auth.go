package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/groundedhq/grounded/internal/auth"
	"github.com/groundedhq/grounded/internal/store"
)

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, session, err := h.authSvc.Register(r.Context(), req.Email, req.Name, req.Password)
	switch {
	case errors.Is(err, store.ErrEmailTaken):
		Error(w, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("registration failed", "error", err)
		Error(w, http.StatusBadRequest, "invalid registration details")
		return
	}

	auth.SetSessionCookie(w, session.Token, session.ExpiresAt, h.secureCookies)
	JSON(w, http.StatusCreated, map[string]interface{}{"user": userPayload(user)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, session, err := h.authSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			Error(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		slog.Error("login failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	auth.SetSessionCookie(w, session.Token, session.ExpiresAt, h.secureCookies)
	JSON(w, http.StatusOK, map[string]interface{}{"user": userPayload(user)})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := auth.SessionTokenFromContext(r.Context())
	if err := h.authSvc.Logout(r.Context(), token); err != nil {
		slog.Warn("logout failed", "error", err)
	}
	auth.ClearSessionCookie(w, h.secureCookies)
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	requesterID := auth.UserIDFromContext(r.Context())
	if requesterID == "" {
		Error(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := h.repo.GetUser(r.Context(), requesterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			Error(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		slog.Error("get current user failed", "user_id", requesterID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"user": userPayload(user)})
}

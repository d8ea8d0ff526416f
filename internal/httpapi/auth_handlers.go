package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"videxa.org/internal/audit"
	"videxa.org/internal/auth"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	AccountType string `json:"account_type"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	SessionID    string `json:"session_id"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	user, err := a.auth.Register(r.Context(), req.Email, req.Password, req.AccountType)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicate):
			writeError(w, http.StatusConflict, "duplicate_email", "email is already registered")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusUnprocessableEntity, "validation", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal", "registration failed")
		}
		return
	}
	audit.Event(r.Context(), "user.registered", "user_id", user.ID, "email", user.Email)
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	meta := auth.SessionMeta{
		IPAddress: clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	}
	pair, user, err := a.auth.Login(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		// One body for every failure cause; the caller cannot probe
		// which emails exist.
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}
	audit.Event(r.Context(), "user.login", "user_id", user.ID, "session_id", pair.SessionID, "ip", meta.IPAddress)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UserID:       pair.UserID,
		SessionID:    pair.SessionID,
		ExpiresIn:    pair.AccessExpiresIn,
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenReuse):
			audit.Event(r.Context(), "token.reuse_detected")
			writeError(w, http.StatusUnauthorized, "token_reuse_detected", "refresh token reuse detected; session revoked")
		case errors.Is(err, auth.ErrWrongTokenType):
			writeError(w, http.StatusUnauthorized, "invalid_token_type", "a refresh token is required")
		case errors.Is(err, auth.ErrInvalidToken):
			writeError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired refresh token")
		default:
			writeError(w, http.StatusInternalServerError, "internal", "token refresh failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UserID:       pair.UserID,
		SessionID:    pair.SessionID,
		ExpiresIn:    pair.AccessExpiresIn,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	principal, ok := requireSession(w, r)
	if !ok {
		return
	}
	if err := a.auth.Logout(r.Context(), principal); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "logout failed")
		return
	}
	audit.Event(r.Context(), "session.logout")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	principal, ok := requireSession(w, r)
	if !ok {
		return
	}
	sessions, err := a.auth.Sessions(r.Context(), principal.User.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":    sessions,
		"total_count": len(sessions),
	})
}

type revokeAllRequest struct {
	KeepCurrent bool `json:"keep_current"`
}

func (a *API) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/auth/sessions/")
	if rest == "" || strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}

	if rest == "revoke-all" {
		a.handleRevokeAllSessions(w, r)
		return
	}

	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	principal, ok := requireSession(w, r)
	if !ok {
		return
	}
	if err := a.auth.RevokeSession(r.Context(), principal.User.ID, rest); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "could not revoke session")
		return
	}
	audit.Event(r.Context(), "session.revoked", "target_session_id", rest)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	principal, ok := requireSession(w, r)
	if !ok {
		return
	}
	req := revokeAllRequest{KeepCurrent: true}
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}
	count, err := a.auth.RevokeAllSessions(r.Context(), principal.User.ID, req.KeepCurrent, principal.SessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not revoke sessions")
		return
	}
	audit.Event(r.Context(), "session.revoked_all", "revoked_count", count, "keep_current", req.KeepCurrent)
	writeJSON(w, http.StatusOK, map[string]any{"revoked_count": count})
}

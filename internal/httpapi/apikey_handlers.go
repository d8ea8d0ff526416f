package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"videxa.org/internal/apikey"
	"videxa.org/internal/audit"
)

type createKeyRequest struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Scopes           []string `json:"scopes"`
	ExpiresInSeconds int64    `json:"expires_in_seconds"`
}

func (a *API) handleAPIKeys(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAPIKeys(w, r)
	case http.MethodPost:
		a.createAPIKey(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireSession(w, r)
	if !ok {
		return
	}
	keys, err := a.keys.List(r.Context(), principal.User.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "could not list keys")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"keys":        keys,
		"total_count": len(keys),
	})
}

func (a *API) createAPIKey(w http.ResponseWriter, r *http.Request) {
	principal, ok := requireSession(w, r)
	if !ok {
		return
	}
	var req createKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ttl := time.Duration(req.ExpiresInSeconds) * time.Second
	key, secret, err := a.keys.Create(r.Context(), principal.User.ID, req.Name, req.Description, req.Scopes, ttl)
	if err != nil {
		switch {
		case errors.Is(err, apikey.ErrInvalidScope):
			writeError(w, http.StatusBadRequest, "invalid_scope", err.Error())
		case errors.Is(err, apikey.ErrInvalidInput):
			writeError(w, http.StatusUnprocessableEntity, "validation", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal", "could not create key")
		}
		return
	}
	audit.Event(r.Context(), "apikey.created", "key_id", key.ID, "scopes", key.Scopes)
	// The secret appears here once and is never retrievable again.
	writeJSON(w, http.StatusCreated, map[string]any{
		"key":    key,
		"secret": secret,
	})
}

func (a *API) handleAPIKeyByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/apikeys/")
	if rest == "" || strings.Contains(rest, "/") {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}

	if rest == "scopes" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"scopes": apikey.Registry})
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
	if err := a.keys.Revoke(r.Context(), principal.User.ID, rest); err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "key not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "could not revoke key")
		return
	}
	audit.Event(r.Context(), "apikey.revoked", "key_id", rest)
	w.WriteHeader(http.StatusNoContent)
}

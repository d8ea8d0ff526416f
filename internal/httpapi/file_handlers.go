package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"videxa.org/internal/apikey"
	"videxa.org/internal/audit"
	"videxa.org/internal/auth"
	"videxa.org/internal/file"
)

type registerFileRequest struct {
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

type shareFileRequest struct {
	GranteeType      string `json:"grantee_type"`
	GranteeID        string `json:"grantee_id"`
	Level            string `json:"level"`
	Password         string `json:"password"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

func (a *API) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireScope(w, principal, apikey.ScopeFilesUpload) {
		return
	}
	var req registerFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	f, err := a.files.Register(r.Context(), principal.User.ID, req.Name, req.MimeType, req.SizeBytes)
	if err != nil {
		writeFileError(w, err, "could not register file")
		return
	}
	audit.Event(r.Context(), "file.registered", "file_id", f.ID, "name", f.Name)
	writeJSON(w, http.StatusCreated, map[string]any{"file": f})
}

func (a *API) handleFileByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
	parts := strings.Split(rest, "/")
	if rest == "" || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}
	fileID := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			a.getFile(w, r, fileID)
		case http.MethodDelete:
			a.deleteFile(w, r, fileID)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
	case len(parts) == 2 && parts[1] == "share":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		a.shareFile(w, r, fileID)
	case len(parts) == 2 && parts[1] == "permissions":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		a.listPermissions(w, r, fileID)
	case len(parts) == 3 && parts[1] == "permissions" && parts[2] != "":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
			return
		}
		a.revokeGrant(w, r, fileID, parts[2])
	default:
		writeError(w, http.StatusNotFound, "not_found", "not found")
	}
}

func (a *API) getFile(w http.ResponseWriter, r *http.Request, fileID string) {
	caller, principal, authed := fileCaller(r)
	if authed && !requireScope(w, principal, apikey.ScopeFilesRead) {
		return
	}

	var link *file.LinkRedemption
	if token := r.URL.Query().Get("share_token"); token != "" {
		link = &file.LinkRedemption{
			Token:    token,
			Password: r.URL.Query().Get("share_password"),
		}
	}
	if !authed && link == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	f, level, err := a.files.Get(r.Context(), caller, fileID, link)
	if err != nil {
		writeFileError(w, err, "could not fetch file")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"file":          f,
		"my_permission": level,
	})
}

func (a *API) deleteFile(w http.ResponseWriter, r *http.Request, fileID string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireScope(w, principal, apikey.ScopeFilesUpload) {
		return
	}
	if err := a.files.Delete(r.Context(), callerFor(principal), fileID); err != nil {
		writeFileError(w, err, "could not delete file")
		return
	}
	audit.Event(r.Context(), "file.deleted", "file_id", fileID)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) shareFile(w http.ResponseWriter, r *http.Request, fileID string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireScope(w, principal, apikey.ScopeFilesShare) {
		return
	}
	var req shareFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	level, err := file.ParseLevel(req.Level)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation", err.Error())
		return
	}

	grant, err := a.files.Share(r.Context(), callerFor(principal), fileID, file.ShareRequest{
		GranteeType: req.GranteeType,
		GranteeID:   req.GranteeID,
		Level:       level,
		Password:    req.Password,
		TTL:         time.Duration(req.ExpiresInSeconds) * time.Second,
	})
	if err != nil {
		writeFileError(w, err, "could not share file")
		return
	}
	audit.Event(r.Context(), "file.shared",
		"file_id", fileID, "grant_id", grant.ID, "grantee_type", grant.GranteeType, "level", grant.Level.String())

	resp := map[string]any{"grant": grant}
	if grant.GranteeType == file.GranteeLink {
		resp["share_link"] = a.baseURL + "/api/files/" + fileID + "?share_token=" + grant.ID
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request, fileID string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireScope(w, principal, apikey.ScopeFilesShare) {
		return
	}
	grants, err := a.files.Permissions(r.Context(), callerFor(principal), fileID)
	if err != nil {
		writeFileError(w, err, "could not list permissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"grants":      grants,
		"total_count": len(grants),
	})
}

func (a *API) revokeGrant(w http.ResponseWriter, r *http.Request, fileID, grantID string) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	if !requireScope(w, principal, apikey.ScopeFilesShare) {
		return
	}
	if err := a.files.RevokeGrant(r.Context(), callerFor(principal), fileID, grantID); err != nil {
		writeFileError(w, err, "could not revoke grant")
		return
	}
	audit.Event(r.Context(), "file.grant_revoked", "file_id", fileID, "grant_id", grantID)
	w.WriteHeader(http.StatusNoContent)
}

// fileCaller resolves the caller for file reads, which may be anonymous.
func fileCaller(r *http.Request) (file.Caller, auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		return file.Caller{}, auth.Principal{}, false
	}
	return callerFor(principal), principal, true
}

func callerFor(principal auth.Principal) file.Caller {
	return file.Caller{
		UserID:         principal.User.ID,
		OrganizationID: principal.User.OrganizationID,
	}
}

func writeFileError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, file.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "file not found")
	case errors.Is(err, file.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "permission denied")
	case errors.Is(err, file.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, "validation", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", fallback)
	}
}

package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"videxa.org/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearer       = "Bearer "
	apiKeyHeader = "X-API-Key"
)

var publicPaths = []string{
	"/auth/register",
	"/auth/login",
	"/auth/refresh",
	"/api/apikeys/scopes",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth resolves the caller from either a bearer access token or an
// API key and stores the principal in the context. Anonymous link
// redemption (GET on a file with a share_token) passes through without
// credentials; the file handler resolves the token itself.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := strings.TrimSpace(r.Header.Get(authHeader))
		apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))

		if header == "" && apiKey == "" && isAnonymousShareGet(r) {
			next.ServeHTTP(w, r)
			return
		}

		var (
			principal auth.Principal
			err       error
		)
		switch {
		case header != "":
			var token string
			token, err = extractBearerToken(header)
			if err == nil {
				principal, err = a.auth.Authenticate(r.Context(), token)
			}
		case apiKey != "":
			principal, err = a.authenticateAPIKey(r.Context(), apiKey)
		default:
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrWrongTokenType), errors.Is(err, auth.ErrUnauthorized):
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
			default:
				writeError(w, http.StatusInternalServerError, "internal", "authentication error")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticateAPIKey resolves a key secret to a principal carrying the
// key's scope set and no session.
func (a *API) authenticateAPIKey(ctx context.Context, secret string) (auth.Principal, error) {
	key, err := a.keys.Authenticate(ctx, secret)
	if err != nil {
		return auth.Principal{}, auth.ErrUnauthorized
	}
	user, err := a.auth.UserByID(ctx, key.UserID)
	if err != nil {
		return auth.Principal{}, auth.ErrUnauthorized
	}
	return auth.Principal{User: user, Scopes: key.ScopeSet()}, nil
}

// requirePrincipal is used by every protected handler.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok || principal.User == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return auth.Principal{}, false
	}
	return principal, true
}

// requireSession rejects API-key callers: session and key management is
// reserved for interactively authenticated users.
func requireSession(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return auth.Principal{}, false
	}
	if principal.SessionID == "" {
		writeError(w, http.StatusForbidden, "forbidden", "a session credential is required")
		return auth.Principal{}, false
	}
	return principal, true
}

// requireScope enforces API-key scopes; session credentials always pass.
func requireScope(w http.ResponseWriter, principal auth.Principal, scope string) bool {
	if !principal.AllowsScope(scope) {
		writeError(w, http.StatusForbidden, "insufficient_scope", "the API key does not permit "+scope)
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", auth.ErrUnauthorized
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", auth.ErrUnauthorized
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func isAnonymousShareGet(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	if !strings.HasPrefix(r.URL.Path, "/api/files/") {
		return false
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if rest == "" || strings.Contains(rest, "/") {
		return false
	}
	return r.URL.Query().Get("share_token") != ""
}

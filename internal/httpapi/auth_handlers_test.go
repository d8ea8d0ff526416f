package httpapi

import (
	"io"
	"net/http"
	"testing"
)

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/auth/register", map[string]any{
		"email":        "not-an-email",
		"password":     "opensesame1",
		"account_type": "pro",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad email: expected 422, got %d", resp.StatusCode)
	}

	resp = api.post("/auth/register", map[string]any{
		"email":        "dup@example.com",
		"password":     "opensesame1",
		"account_type": "trial",
	}, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register: expected 201, got %d", resp.StatusCode)
	}

	resp = api.post("/auth/register", map[string]any{
		"email":        "dup@example.com",
		"password":     "opensesame1",
		"account_type": "trial",
	}, nil)
	body := decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusConflict || body["kind"] != "duplicate_email" {
		t.Fatalf("duplicate: expected 409 duplicate_email, got %d %v", resp.StatusCode, body)
	}
}

func TestLoginFailureBodyIsUniform(t *testing.T) {
	api := newTestAPI(t)
	api.signup("alice@example.com")

	read := func(payload map[string]any) (int, string) {
		resp := api.post("/auth/login", payload, nil)
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		return resp.StatusCode, string(raw)
	}

	codeUnknown, bodyUnknown := read(map[string]any{"email": "ghost@example.com", "password": "opensesame1"})
	codeWrong, bodyWrong := read(map[string]any{"email": "alice@example.com", "password": "wrong-password"})

	if codeUnknown != http.StatusUnauthorized || codeWrong != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", codeUnknown, codeWrong)
	}
	if bodyUnknown != bodyWrong {
		t.Fatalf("bodies differ:\n%s\n%s", bodyUnknown, bodyWrong)
	}
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	pair := api.signup("bob@example.com")

	resp := api.post("/auth/refresh", map[string]any{"refresh_token": pair.RefreshToken}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d", resp.StatusCode)
	}
	rotated := decode[tokenResponse](t, resp)
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// Replaying the superseded token trips theft detection.
	resp = api.post("/auth/refresh", map[string]any{"refresh_token": pair.RefreshToken}, nil)
	body := decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusUnauthorized || body["kind"] != "token_reuse_detected" {
		t.Fatalf("replay: expected 401 token_reuse_detected, got %d %v", resp.StatusCode, body)
	}

	// The whole session is dead, including the rotated pair.
	resp = api.post("/auth/refresh", map[string]any{"refresh_token": rotated.RefreshToken}, nil)
	body = decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusUnauthorized || body["kind"] != "invalid_token" {
		t.Fatalf("post-revocation refresh: expected 401 invalid_token, got %d %v", resp.StatusCode, body)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	api := newTestAPI(t)
	pair := api.signup("carol@example.com")

	resp := api.post("/auth/refresh", map[string]any{"refresh_token": pair.Token}, nil)
	body := decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusUnauthorized || body["kind"] != "invalid_token_type" {
		t.Fatalf("expected 401 invalid_token_type, got %d %v", resp.StatusCode, body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	api := newTestAPI(t)
	first := api.signup("dave@example.com")
	second := api.signup("dave@example.com")

	type sessionList struct {
		Sessions []struct {
			SessionID string `json:"session_id"`
		} `json:"sessions"`
		TotalCount int `json:"total_count"`
	}

	resp := api.get("/auth/sessions", nil, bearerHeader(second))
	list := decode[sessionList](t, resp)
	if list.TotalCount != 2 {
		t.Fatalf("expected 2 sessions, got %d", list.TotalCount)
	}

	// Revoke the first session from the second one.
	resp = api.delete("/auth/sessions/"+first.SessionID, bearerHeader(second))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke: expected 204, got %d", resp.StatusCode)
	}

	resp = api.delete("/auth/sessions/"+first.SessionID, bearerHeader(second))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second revoke: expected 404, got %d", resp.StatusCode)
	}

	// The revoked session's access token no longer authenticates.
	resp = api.get("/auth/sessions", nil, bearerHeader(first))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked session token: expected 401, got %d", resp.StatusCode)
	}
}

func TestRevokeAllKeepsCurrent(t *testing.T) {
	api := newTestAPI(t)
	api.signup("erin@example.com")
	api.signup("erin@example.com")
	current := api.signup("erin@example.com")

	resp := api.post("/auth/sessions/revoke-all", map[string]any{"keep_current": true}, bearerHeader(current))
	body := decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["revoked_count"].(float64) != 2 {
		t.Fatalf("expected revoked_count 2, got %v", body["revoked_count"])
	}

	// The current session still works.
	resp = api.get("/auth/sessions", nil, bearerHeader(current))
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current session died: %d", resp.StatusCode)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	api := newTestAPI(t)
	pair := api.signup("frank@example.com")

	resp := api.post("/auth/logout", nil, bearerHeader(pair))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: expected 204, got %d", resp.StatusCode)
	}

	resp = api.get("/auth/sessions", nil, bearerHeader(pair))
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", resp.StatusCode)
	}
}

package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

type fileResponse struct {
	File struct {
		FileID  string `json:"file_id"`
		OwnerID string `json:"owner_id"`
		Name    string `json:"name"`
	} `json:"file"`
	MyPermission string `json:"my_permission"`
}

type grantResponse struct {
	Grant struct {
		GrantID     string `json:"grant_id"`
		GranteeType string `json:"grantee_type"`
		Level       string `json:"level"`
	} `json:"grant"`
	ShareLink string `json:"share_link"`
}

func registerTestFile(t *testing.T, api *apiClient, pair tokenResponse) string {
	t.Helper()
	resp := api.post("/api/files", map[string]any{
		"name":       "report.pdf",
		"mime_type":  "application/pdf",
		"size_bytes": 2048,
	}, bearerHeader(pair))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register file: expected 201, got %d", resp.StatusCode)
	}
	body := decode[fileResponse](t, resp)
	if body.File.FileID == "" {
		t.Fatal("missing file id")
	}
	return body.File.FileID
}

func TestOwnerReadsOwnFile(t *testing.T) {
	api := newTestAPI(t)
	pair := api.signup("owner@example.com")
	fileID := registerTestFile(t, api, pair)

	resp := api.get("/api/files/"+fileID, nil, bearerHeader(pair))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decode[fileResponse](t, resp)
	if body.MyPermission != "admin" {
		t.Fatalf("owner permission = %q, want admin", body.MyPermission)
	}
}

func TestStrangerSeesNotFound(t *testing.T) {
	api := newTestAPI(t)
	owner := api.signup("owner2@example.com")
	stranger := api.signup("stranger@example.com")
	fileID := registerTestFile(t, api, owner)

	for _, id := range []string{fileID, "01JZZZZZZZZZZZZZZZZZZZZZZZ"} {
		resp := api.get("/api/files/"+id, nil, bearerHeader(stranger))
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", id, resp.StatusCode)
		}
	}
}

func TestDirectGrantFlow(t *testing.T) {
	api := newTestAPI(t)
	owner := api.signup("owner3@example.com")
	viewer := api.signup("viewer@example.com")
	fileID := registerTestFile(t, api, owner)

	resp := api.post("/api/files/"+fileID+"/share", map[string]any{
		"grantee_type": "user",
		"grantee_id":   viewer.UserID,
		"level":        "view",
	}, bearerHeader(owner))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("share: expected 201, got %d", resp.StatusCode)
	}
	grant := decode[grantResponse](t, resp)

	resp = api.get("/api/files/"+fileID, nil, bearerHeader(viewer))
	body := decode[fileResponse](t, resp)
	if resp.StatusCode != http.StatusOK || body.MyPermission != "view" {
		t.Fatalf("viewer: expected 200/view, got %d/%q", resp.StatusCode, body.MyPermission)
	}

	// A viewer cannot inspect the grant list but does learn the file exists.
	resp = api.get("/api/files/"+fileID+"/permissions", nil, bearerHeader(viewer))
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer permissions: expected 403, got %d", resp.StatusCode)
	}

	// Revoking the grant cuts access.
	resp = api.delete("/api/files/"+fileID+"/permissions/"+grant.Grant.GrantID, bearerHeader(owner))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke grant: expected 204, got %d", resp.StatusCode)
	}
	resp = api.get("/api/files/"+fileID, nil, bearerHeader(viewer))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("after revoke: expected 404, got %d", resp.StatusCode)
	}
}

func TestShareLinkRedemption(t *testing.T) {
	api := newTestAPI(t)
	owner := api.signup("owner4@example.com")
	fileID := registerTestFile(t, api, owner)

	resp := api.post("/api/files/"+fileID+"/share", map[string]any{
		"grantee_type": "link",
		"level":        "view",
		"password":     "sesame-open",
	}, bearerHeader(owner))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("share: expected 201, got %d", resp.StatusCode)
	}
	grant := decode[grantResponse](t, resp)
	if !strings.Contains(grant.ShareLink, "share_token="+grant.Grant.GrantID) {
		t.Fatalf("unexpected share link %q", grant.ShareLink)
	}

	// Anonymous redemption with the right password.
	params := url.Values{
		"share_token":    {grant.Grant.GrantID},
		"share_password": {"sesame-open"},
	}
	resp = api.get("/api/files/"+fileID, params, nil)
	body := decode[fileResponse](t, resp)
	if resp.StatusCode != http.StatusOK || body.MyPermission != "view" {
		t.Fatalf("redeem: expected 200/view, got %d/%q", resp.StatusCode, body.MyPermission)
	}

	// Wrong password is refused without hiding the file.
	params.Set("share_password", "wrong")
	resp = api.get("/api/files/"+fileID, params, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong password: expected 403, got %d", resp.StatusCode)
	}

	// No token at all means no anonymous access.
	resp = api.get("/api/files/"+fileID, nil, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous without token: expected 401, got %d", resp.StatusCode)
	}
}

func TestDeleteFileCascades(t *testing.T) {
	api := newTestAPI(t)
	owner := api.signup("owner5@example.com")
	fileID := registerTestFile(t, api, owner)

	resp := api.post("/api/files/"+fileID+"/share", map[string]any{
		"grantee_type": "link",
		"level":        "view",
	}, bearerHeader(owner))
	grant := decode[grantResponse](t, resp)

	resp = api.delete("/api/files/"+fileID, bearerHeader(owner))
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	params := url.Values{"share_token": {grant.Grant.GrantID}}
	resp = api.get("/api/files/"+fileID, params, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("link after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestShareValidationOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	owner := api.signup("owner6@example.com")
	fileID := registerTestFile(t, api, owner)

	resp := api.post("/api/files/"+fileID+"/share", map[string]any{
		"grantee_type": "user",
		"grantee_id":   "someone",
		"level":        "superuser",
	}, bearerHeader(owner))
	body := decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusUnprocessableEntity || body["kind"] != "validation" {
		t.Fatalf("expected 422 validation, got %d %v", resp.StatusCode, body)
	}

	// A past expiry is rejected rather than dropped.
	resp = api.post("/api/files/"+fileID+"/share", map[string]any{
		"grantee_type":       "link",
		"level":              "view",
		"expires_in_seconds": -60,
	}, bearerHeader(owner))
	body = decode[map[string]any](t, resp)
	if resp.StatusCode != http.StatusUnprocessableEntity || body["kind"] != "validation" {
		t.Fatalf("expected 422 validation for past expiry, got %d %v", resp.StatusCode, body)
	}
}

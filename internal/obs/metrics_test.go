package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                   "/",
		"/metrics":                           "/metrics",
		"/auth/login":                        "/auth/login",
		"/api/files":                         "/api/files",
		"/api/files/01ABC":                   "/api/files/:id",
		"/api/files/01ABC/share":             "/api/files/:id/share",
		"/api/files/01ABC/permissions":       "/api/files/:id/permissions",
		"/api/files/01ABC/permissions/01XYZ": "/api/files/:id/permissions/:pid",
		"/api/apikeys":                       "/api/apikeys",
		"/api/apikeys/scopes":                "/api/apikeys/scopes",
		"/api/apikeys/01DEF":                 "/api/apikeys/:id",
		"/api/files/01ABC?share_token=x":     "/api/files/:id",
		"/auth/sessions":                     "/auth/sessions",
		"/auth/sessions/8d6d7c1e":            "/auth/sessions/:id",
		"/auth/sessions/revoke-all":          "/auth/sessions/revoke-all",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

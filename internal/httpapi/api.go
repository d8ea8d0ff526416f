// Package httpapi exposes the identity core over HTTP: registration,
// login, token rotation, session management, API keys and file sharing.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"videxa.org/internal/apikey"
	"videxa.org/internal/auth"
	"videxa.org/internal/file"
	"videxa.org/internal/obs"
)

// ReadyProbe reports readiness, pinging the DB when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the services the API depends on.
type Config struct {
	Auth    *auth.Service
	Keys    *apikey.Service
	Files   *file.Service
	Ready   ReadyProbe
	Version string

	// BaseURL prefixes generated share links, e.g. "https://api.videxa.io".
	BaseURL string

	// Rate limiting per client IP; zero values pick the defaults.
	RateBurst     int
	RatePerSecond int
}

// API is the HTTP layer.
type API struct {
	mux     *http.ServeMux
	auth    *auth.Service
	keys    *apikey.Service
	files   *file.Service
	ready   ReadyProbe
	version string
	baseURL string

	rateBurst     int
	ratePerSecond int
}

func New(cfg Config) *API {
	a := &API{
		mux:           http.NewServeMux(),
		auth:          cfg.Auth,
		keys:          cfg.Keys,
		files:         cfg.Files,
		ready:         cfg.Ready,
		version:       cfg.Version,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		rateBurst:     cfg.RateBurst,
		ratePerSecond: cfg.RatePerSecond,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 50
	}
	if a.ratePerSecond <= 0 {
		a.ratePerSecond = 25
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// authentication and sessions
	a.mux.HandleFunc("/auth/register", a.handleRegister)
	// login gets a tighter bucket than the global limiter
	a.mux.Handle("/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), loginRateBurst(a.rateBurst), loginRatePerSecond(a.ratePerSecond)))
	a.mux.HandleFunc("/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/auth/sessions", a.handleSessions)
	a.mux.HandleFunc("/auth/sessions/", a.handleSessionByID)

	// API keys
	a.mux.HandleFunc("/api/apikeys", a.handleAPIKeys)
	a.mux.HandleFunc("/api/apikeys/", a.handleAPIKeyByID)

	// files and sharing
	a.mux.HandleFunc("/api/files", a.handleFiles)
	a.mux.HandleFunc("/api/files/", a.handleFileByID)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "not found")
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSecond)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func loginRateBurst(global int) int {
	burst := global / 5
	if burst < 5 {
		burst = 5
	}
	return burst
}

func loginRatePerSecond(global int) int {
	per := global / 5
	if per < 2 {
		per = 2
	}
	return per
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "videxa-identity",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

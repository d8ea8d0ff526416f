package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"videxa.org/internal/apikey"
	"videxa.org/internal/auth"
	"videxa.org/internal/file"
	"videxa.org/internal/httpapi"
	"videxa.org/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)
	logger := obs.Logger()
	defer func() { _ = logger.Sync() }()

	secret := os.Getenv("VIDEXA_AUTH_SECRET")
	if secret == "" {
		logger.Fatal("VIDEXA_AUTH_SECRET is required")
	}
	codec, err := auth.NewCodec(secret)
	if err != nil {
		logger.Fatalw("build token codec", "err", err)
	}

	// Postgres when a DSN is set; in-memory stores otherwise (dev mode).
	var (
		db        *sql.DB
		authStore auth.Store   = auth.NewMemoryStore()
		keyStore  apikey.Store = apikey.NewMemoryStore()
		fileStore file.Store   = file.NewMemoryStore()
	)
	if dsn := os.Getenv("VIDEXA_PG_DSN"); dsn != "" {
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			logger.Fatalw("open db", "err", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		authStore = auth.NewPGStore(db)
		keyStore = apikey.NewPGStore(db)
		fileStore = file.NewPGStore(db)
	} else {
		logger.Warn("VIDEXA_PG_DSN is not set; using in-memory stores")
	}

	authOpts := []auth.ServiceOption{}
	if adminEmail := os.Getenv("VIDEXA_ADMIN_EMAIL"); adminEmail != "" {
		authOpts = append(authOpts, auth.WithAdminEmail(adminEmail))
	}
	if ttl := envDuration("VIDEXA_ACCESS_TTL"); ttl > 0 {
		authOpts = append(authOpts, auth.WithAccessTTL(ttl))
	}
	if ttl := envDuration("VIDEXA_REFRESH_TTL"); ttl > 0 {
		authOpts = append(authOpts, auth.WithRefreshTTL(ttl))
	}
	authSvc, err := auth.NewService(authStore, codec, authOpts...)
	if err != nil {
		logger.Fatalw("build auth service", "err", err)
	}
	keySvc, err := apikey.NewService(keyStore)
	if err != nil {
		logger.Fatalw("build apikey service", "err", err)
	}
	fileSvc, err := file.NewService(fileStore)
	if err != nil {
		logger.Fatalw("build file service", "err", err)
	}

	api := httpapi.New(httpapi.Config{
		Auth:          authSvc,
		Keys:          keySvc,
		Files:         fileSvc,
		Ready:         httpapi.ReadyProbe{DB: db},
		Version:       version,
		BaseURL:       os.Getenv("VIDEXA_BASE_URL"),
		RateBurst:     envInt("VIDEXA_RATE_BURST"),
		RatePerSecond: envInt("VIDEXA_RATE_PER_SECOND"),
	})

	addr := os.Getenv("VIDEXA_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Infow("starting videxa-identity", "version", version, "addr", srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("listen", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	logger.Info("stopped")
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

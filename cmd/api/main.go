package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/romulomf/catalog-api/internal/auth"
	"github.com/romulomf/catalog-api/internal/config"
	"github.com/romulomf/catalog-api/internal/httpapi"
	"github.com/romulomf/catalog-api/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("CATALOG_CONFIG"), "Path to YAML config (optional; env vars apply either way)")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Postgres when a DSN is configured, in-memory otherwise. The DB handle
	// is also what /readyz pings.
	var (
		db    *sql.DB
		store auth.Store
	)
	if cfg.DB.DSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DB.DSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		log.Print("no DSN configured, using in-memory store")
		store = auth.NewMemory()
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:     []byte(cfg.Auth.Secret),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
	})
	if err != nil {
		log.Fatalf("token manager: %v", err)
	}
	svc, err := auth.NewService(store, tokens)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}
	policies, err := auth.NewEvaluator(auth.DefaultPolicies(cfg.Auth.ExclusiveUser))
	if err != nil {
		log.Fatalf("policies: %v", err)
	}

	api, err := httpapi.New(httpapi.ReadyProbe{DB: db}, version, svc, policies, httpapi.Options{
		MaxBodyBytes: cfg.HTTPServer.MaxBodyBytes,
		RateBurst:    cfg.HTTPServer.RateBurst,
		RatePerSec:   float64(cfg.HTTPServer.RatePerSec),
	})
	if err != nil {
		log.Fatalf("http api: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTPServer.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTPServer.ReadTimeout,
		WriteTimeout:      cfg.HTTPServer.WriteTimeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
	}

	log.Printf("Starting catalog-api %s (%s) on %s", version, cfg.Env, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

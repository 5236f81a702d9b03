package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"idverify/internal/analyzers"
	antracer "idverify/internal/analyzers/tracer"
	"idverify/internal/artifacts"
	"idverify/internal/livetoken"
	"idverify/internal/platform/config"
	"idverify/internal/platform/database"
	"idverify/internal/platform/health"
	"idverify/internal/platform/logger"
	"idverify/internal/platform/redis"
	httptransport "idverify/internal/transport/http"
	"idverify/internal/verification/handler"
	"idverify/internal/verification/metrics"
	"idverify/internal/verification/service"
	"idverify/internal/verification/store"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing idverify",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	// Storage backends degrade to in-memory when not configured, which
	// keeps local development and CI free of external dependencies.
	pool, err := database.New(database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	var verificationStore service.Store
	if pool != nil {
		verificationStore = store.NewPostgres(pool.DB())
		log.Info("using postgres verification store")
	} else {
		verificationStore = store.NewMemory()
		log.Warn("DATABASE_URL not set, using in-memory verification store")
	}

	var artifactStore artifacts.Store
	if cfg.ArtifactDir != "" {
		artifactStore, err = artifacts.NewDiskStore(cfg.ArtifactDir)
		if err != nil {
			log.Error("artifact store init failed", "error", err)
			os.Exit(1)
		}
		log.Info("using disk artifact store", "dir", cfg.ArtifactDir)
	} else {
		artifactStore = artifacts.NewMemoryStore()
		log.Warn("ARTIFACT_DIR not set, using in-memory artifact store")
	}

	var tokenStore livetoken.TokenStore
	if redisClient != nil {
		tokenStore = livetoken.NewRedisStore(redisClient.Client)
		log.Info("using redis live-token store")
	} else {
		tokenStore = livetoken.NewMemoryStore()
		log.Warn("REDIS_URL not set, using in-memory live-token store")
	}
	tokens := livetoken.NewIssuer([]byte(cfg.LiveTokenSigningKey), cfg.LiveTokenTTL, tokenStore)

	analyzerSet := analyzers.Instrument(
		analyzers.NewStubSet(artifactStore, cfg.AnalyzerLatency),
		analyzers.WithTracer(antracer.NewOTel()),
		analyzers.WithLogger(log),
	)

	svc := service.NewService(verificationStore, artifactStore, analyzerSet, tokens,
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
	)

	healthHandler := health.New(cfg.Environment)
	if pool != nil {
		healthHandler.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}
	if redisClient != nil {
		healthHandler.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(ctx)
		})
	}

	verificationHandler := handler.New(svc, log)
	router := httptransport.NewRouter(verificationHandler, healthHandler, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	// Let in-flight analysis tasks finish so no session is left without
	// its recorded outcome.
	svc.Wait()

	if redisClient != nil {
		_ = redisClient.Close()
	}
	if pool != nil {
		_ = pool.Close()
	}

	log.Info("server stopped")
}

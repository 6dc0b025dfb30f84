// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the certforge API server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"certforge/internal/archive"
	"certforge/internal/cache"
	"certforge/internal/config"
	"certforge/internal/database"
	"certforge/internal/generate"
	"certforge/internal/handlers"
	"certforge/internal/imagefetch"
	"certforge/internal/metrics"
	"certforge/internal/middleware"
	"certforge/internal/pdf"
	"certforge/internal/router"
	"certforge/internal/session"
	"certforge/internal/storage"
	"certforge/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"batch_size", cfg.BatchSize,
		"qr", cfg.QR,
	)

	m := metrics.New()

	// Connect to PostgreSQL.
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if _, err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	if err := m.RegisterDB(db, cfg.DBName); err != nil {
		slog.Warn("db metrics unavailable", "error", err)
	}

	// Seed a demo account and template (no-op if users already exist).
	if cfg.IsDev() {
		if err := database.Seed(ctx, db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (sessions and the image cache).
	valkeyClient, err := cache.ConnectValkey(ctx, cache.ValkeyOptions{
		Host:     cfg.ValkeyHost,
		Port:     cfg.ValkeyPort,
		Password: cfg.ValkeyPassword,
		DB:       cfg.ValkeyDB,
	})
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// In non-development environments, mark cookies as Secure (HTTPS-only).
	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies, cfg.SessionTTL)

	userStore := store.NewUserStore(db)
	templateStore := store.NewTemplateStore(db)
	generationStore := store.NewGenerationStore(db)

	// S3-compatible object storage is optional; generation answers 503
	// without it.
	var blobs generate.BlobStore
	storageClient, err := storage.New(
		cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
		cfg.S3Bucket, cfg.S3PublicURL,
	)
	switch {
	case err != nil:
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	case storageClient != nil:
		blobs = storageClient
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
	default:
		slog.Warn("s3 storage not configured, certificate generation disabled")
	}

	fetcher := imagefetch.New(imagefetch.Options{
		Timeout:  cfg.FetchTimeout,
		MaxBytes: cfg.FetchMaxBytes,
		Cache:    cache.NewImageCache(valkeyClient, cfg.ImageCacheTTL),
	})

	generator := generate.New(generate.Config{
		Templates:   templateStore,
		Generations: generationStore,
		Blobs:       blobs,
		Renderer: pdf.New(pdf.Options{
			QR:            cfg.QR,
			VerifyBaseURL: cfg.VerifyURL,
		}),
		Fetcher: fetcher,
		Archive: archive.Options{
			BatchSize:        cfg.BatchSize,
			CompressionLevel: cfg.CompressionLevel,
		},
		Metrics: m,
	})

	// Throttle credential endpoints: 10 attempts per minute per IP.
	authLimiter := middleware.NewRateLimiter(10, time.Minute, middleware.TrustedProxies(cfg.TrustedProxies), m)
	defer authLimiter.Stop()

	r := router.New(router.Config{
		Sessions:      sessionStore,
		Metrics:       m,
		AuthLimiter:   authLimiter,
		SecureCookies: secureCookies,
		Auth:          handlers.NewAuth(userStore, sessionStore),
		Templates:     handlers.NewTemplates(templateStore, generator),
		Generate:      handlers.NewGenerate(generator, cfg.MaxUploadBytes),
		Certificates:  handlers.NewCertificates(templateStore, generationStore),
	})

	// WriteTimeout must cover a full generation job, which renders and
	// uploads every certificate before answering.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	<-ctx.Done()
	stop()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

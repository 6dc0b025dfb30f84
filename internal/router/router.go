// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// certforge API. Routes are grouped by how much authentication they need.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"certforge/internal/handlers"
	"certforge/internal/metrics"
	"certforge/internal/middleware"
)

// Config wires the router to its handlers and middleware dependencies.
type Config struct {
	Sessions middleware.SessionLoader
	Metrics  *metrics.Metrics

	// AuthLimiter throttles register and login. Nil disables throttling.
	AuthLimiter *middleware.RateLimiter

	// SecureCookies marks the CSRF cookie for HTTPS only and enables HSTS.
	SecureCookies bool

	Auth         *handlers.Auth
	Templates    *handlers.Templates
	Generate     *handlers.Generate
	Certificates *handlers.Certificates
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(cfg Config) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.SecureHeaders(cfg.SecureCookies))
	r.Use(middleware.LoadSession(cfg.Sessions))

	// Operational endpoints, no auth and no CSRF.
	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRF(cfg.SecureCookies))

		r.Get("/csrf", csrfHandler)

		// Credential endpoints, accessible without a session.
		r.Group(func(r chi.Router) {
			if cfg.AuthLimiter != nil {
				r.Use(cfg.AuthLimiter.Middleware)
			}
			r.Post("/auth/register", cfg.Auth.Register)
			r.Post("/auth/login", cfg.Auth.Login)
		})
		r.Post("/auth/logout", cfg.Auth.Logout)

		// Second factor, requires a session but not a completed 2FA.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			if cfg.AuthLimiter != nil {
				r.Use(cfg.AuthLimiter.Middleware)
			}
			r.Post("/auth/2fa/verify", cfg.Auth.TwoFAVerify)
		})

		// Fully authenticated area.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.Require2FA)

			r.Get("/auth/me", cfg.Auth.Me)
			r.Post("/auth/2fa/setup", cfg.Auth.TwoFASetup)
			r.Post("/auth/2fa/enable", cfg.Auth.TwoFAEnable)
			r.Post("/auth/2fa/disable", cfg.Auth.TwoFADisable)

			r.Route("/templates", func(r chi.Router) {
				r.Get("/", cfg.Templates.List)
				r.Post("/", cfg.Templates.Create)
				r.Get("/{id}", cfg.Templates.Get)
				r.Put("/{id}", cfg.Templates.Update)
				r.Delete("/{id}", cfg.Templates.Delete)
				r.Post("/{id}/preview", cfg.Templates.Preview)
			})

			r.Post("/generate", cfg.Generate.Create)
			r.Get("/certificates", cfg.Certificates.List)
			r.Get("/stats", cfg.Certificates.Stats)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// csrfHandler hands the CSRF token to clients that cannot read cookies.
func csrfHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"csrfToken": middleware.CSRFTokenFromCtx(r.Context())})
}

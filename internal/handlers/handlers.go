// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers of the certforge JSON API.
// Handlers are grouped by concern (auth, templates, generation,
// certificates) and receive their dependencies through the handler struct.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"certforge/internal/generate"
	"certforge/internal/models"
	"certforge/internal/session"
	"certforge/internal/store"
	"certforge/internal/tabular"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 2 << 20

// UserRepo is the user persistence the auth handlers need.
type UserRepo interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Create(ctx context.Context, email, password, displayName string) (*models.User, error)
	CheckPassword(user *models.User, password string) bool
	SetTOTPSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTOTP(ctx context.Context, userID uuid.UUID) error
	ResetTOTP(ctx context.Context, userID uuid.UUID) error
}

// SessionManager issues and clears login sessions.
type SessionManager interface {
	Create(ctx context.Context, w http.ResponseWriter, data *session.Data) (string, error)
	Update(ctx context.Context, r *http.Request, data *session.Data) error
	Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error
}

// TemplateRepo is the template persistence, scoped by owner.
type TemplateRepo interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Template, error)
	FindByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Template, error)
	Create(ctx context.Context, ownerID uuid.UUID, name string, data json.RawMessage) (*models.Template, error)
	Update(ctx context.Context, id, ownerID uuid.UUID, name string, data json.RawMessage) (*models.Template, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) (bool, error)
	Count(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// GenerationRepo reads generation history.
type GenerationRepo interface {
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Generation, error)
	StatsByOwner(ctx context.Context, ownerID uuid.UUID) (store.Stats, error)
}

// Generator runs generation jobs and single-certificate previews.
type Generator interface {
	Run(ctx context.Context, req generate.Request) (*generate.Result, error)
	Preview(ctx context.Context, ownerID, templateID uuid.UUID, rec tabular.Record) ([]byte, error)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// serverError logs err and answers 500 without leaking details.
func serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	slog.Error(op+" failed", "error", err, "method", r.Method, "path", r.URL.Path)
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(dst)
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

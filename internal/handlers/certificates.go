// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"certforge/internal/middleware"
	"certforge/internal/store"
)

// Certificates serves generation history and dashboard totals.
type Certificates struct {
	templates   TemplateRepo
	generations GenerationRepo
}

// NewCertificates creates a new Certificates handler group.
func NewCertificates(templates TemplateRepo, generations GenerationRepo) *Certificates {
	return &Certificates{templates: templates, generations: generations}
}

// List returns the owner's generations, newest first.
func (c *Certificates) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	list, err := c.generations.ListByOwner(r.Context(), sess.UserID)
	if err != nil {
		serverError(w, r, "list generations", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type statsResponse struct {
	Templates int `json:"templates"`
	store.Stats
}

// Stats returns template, generation and participant totals.
func (c *Certificates) Stats(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	n, err := c.templates.Count(r.Context(), sess.UserID)
	if err != nil {
		serverError(w, r, "count templates", err)
		return
	}
	stats, err := c.generations.StatsByOwner(r.Context(), sess.UserID)
	if err != nil {
		serverError(w, r, "generation stats", err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Templates: n, Stats: stats})
}

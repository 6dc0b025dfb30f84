// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"certforge/internal/generate"
	"certforge/internal/layout"
	"certforge/internal/middleware"
	"certforge/internal/tabular"
)

// Templates groups the certificate template CRUD handlers. Every query is
// scoped to the signed-in owner; foreign templates answer 404.
type Templates struct {
	templates TemplateRepo
	generator Generator
}

// NewTemplates creates a new Templates handler group.
func NewTemplates(templates TemplateRepo, generator Generator) *Templates {
	return &Templates{templates: templates, generator: generator}
}

type templateInput struct {
	Name *string         `json:"name"`
	Data json.RawMessage `json:"data"`
}

// List returns the owner's templates, most recently updated first.
func (t *Templates) List(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	list, err := t.templates.ListByOwner(r.Context(), sess.UserID)
	if err != nil {
		serverError(w, r, "list templates", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Create stores a new template.
func (t *Templates) Create(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	var in templateInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	name := ""
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if msg := validateTemplateName(name); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validateTemplateData(in.Data); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := t.templates.Create(r.Context(), sess.UserID, name, in.Data)
	if err != nil {
		serverError(w, r, "create template", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Get returns one template.
func (t *Templates) Get(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	tpl, err := t.templates.FindByIDForOwner(r.Context(), id, sess.UserID)
	if err != nil {
		serverError(w, r, "get template", err)
		return
	}
	if tpl == nil {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// Update changes a template's name, data, or both. Omitted fields keep
// their stored value.
func (t *Templates) Update(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	var in templateInput
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if in.Name == nil && len(in.Data) == 0 {
		writeError(w, http.StatusBadRequest, "Nothing to update")
		return
	}

	existing, err := t.templates.FindByIDForOwner(r.Context(), id, sess.UserID)
	if err != nil {
		serverError(w, r, "load template", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}

	name, data := existing.Name, existing.Data
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if msg := validateTemplateName(name); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}
	if len(in.Data) > 0 {
		if msg := validateTemplateData(in.Data); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		data = in.Data
	}

	updated, err := t.templates.Update(r.Context(), id, sess.UserID, name, data)
	if err != nil {
		serverError(w, r, "update template", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Delete removes a template. Past generations keep their archives.
func (t *Templates) Delete(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	deleted, err := t.templates.Delete(r.Context(), id, sess.UserID)
	if err != nil {
		serverError(w, r, "delete template", err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Deleted successfully"})
}

// Preview renders one certificate from the template. The optional JSON body
// is a flat object used as the participant record.
func (t *Templates) Preview(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Template not found")
		return
	}
	var fields map[string]string
	if err := decodeJSON(w, r, &fields, true); err != nil {
		writeError(w, http.StatusBadRequest, "Preview data must be an object of strings")
		return
	}

	doc, err := t.generator.Preview(r.Context(), sess.UserID, id, tabular.NewRecord(fields))
	var invalid *layout.InvalidTemplateError
	switch {
	case errors.Is(err, generate.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "Template not found")
		return
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
		return
	case err != nil:
		serverError(w, r, "preview", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="preview.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}

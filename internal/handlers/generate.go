// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"certforge/internal/generate"
	"certforge/internal/layout"
	"certforge/internal/middleware"
	"certforge/internal/models"
)

// DefaultMaxUpload bounds the multipart body of a generation request.
const DefaultMaxUpload = 32 << 20

// Generate handles certificate generation requests.
type Generate struct {
	generator Generator
	maxUpload int64
}

// NewGenerate creates the generation handler. maxUpload <= 0 selects
// DefaultMaxUpload.
func NewGenerate(generator Generator, maxUpload int64) *Generate {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &Generate{generator: generator, maxUpload: maxUpload}
}

type generateResponse struct {
	Success           bool               `json:"success"`
	Generation        *models.Generation `json:"generation"`
	DownloadURL       string             `json:"downloadUrl"`
	TotalCertificates int                `json:"totalCertificates"`
	Succeeded         int                `json:"succeeded"`
	Failed            int                `json:"failed"`
	FileName          string             `json:"fileName"`
	Summary           generate.Summary   `json:"summary"`
}

// Create accepts a multipart form with templateId, generationName, the
// participant file and an optional participants count, then runs the job.
func (g *Generate) Create(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, g.maxUpload)
	if err := r.ParseMultipartForm(g.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	defer file.Close()
	templateID, err := uuid.Parse(strings.TrimSpace(r.FormValue("templateId")))
	name := strings.TrimSpace(r.FormValue("generationName"))
	if err != nil || name == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if msg := validateGenerationName(name); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read uploaded file")
		return
	}
	participants, _ := strconv.Atoi(strings.TrimSpace(r.FormValue("participants")))

	res, err := g.generator.Run(r.Context(), generate.Request{
		OwnerID:      sess.UserID,
		TemplateID:   templateID,
		Name:         name,
		Filename:     header.Filename,
		Data:         data,
		Participants: participants,
	})
	if err != nil {
		writeGenerateError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Success:           true,
		Generation:        res.Generation,
		DownloadURL:       res.DownloadURL,
		TotalCertificates: res.TotalCertificates,
		Succeeded:         res.Succeeded,
		Failed:            res.Failed,
		FileName:          res.FileName,
		Summary:           res.Summary,
	})
}

func writeGenerateError(w http.ResponseWriter, r *http.Request, err error) {
	var input *generate.InputError
	var invalid *layout.InvalidTemplateError
	switch {
	case errors.As(err, &input):
		writeError(w, http.StatusBadRequest, input.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, generate.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "Template not found or not accessible")
	case errors.Is(err, generate.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "File storage is not configured")
	case errors.Is(err, generate.ErrUpload):
		serverError(w, r, "archive upload", err)
	default:
		serverError(w, r, "generate certificates", err)
	}
}

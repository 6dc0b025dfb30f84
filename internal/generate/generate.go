// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package generate runs certificate generation jobs end to end: it loads
// the caller's template, parses the participant file, renders the archive,
// uploads it, and records the generation.
package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"certforge/internal/archive"
	"certforge/internal/imagefetch"
	"certforge/internal/layout"
	"certforge/internal/metrics"
	"certforge/internal/models"
	"certforge/internal/pdf"
	"certforge/internal/slug"
	"certforge/internal/tabular"
)

const (
	archiveContentType = "application/zip"
	keyPrefix          = "certificates"
)

var (
	// ErrTemplateNotFound is returned when the template does not exist or
	// belongs to another user.
	ErrTemplateNotFound = errors.New("template not found or not accessible")

	// ErrUpload is returned when the archive cannot be stored.
	ErrUpload = errors.New("archive upload failed")

	// ErrStorageUnavailable is returned when no blob store is configured.
	ErrStorageUnavailable = errors.New("object storage is not configured")
)

// InputError reports a problem with the caller's request or data file.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

func inputErrorf(format string, args ...any) error {
	return &InputError{Err: fmt.Errorf(format, args...)}
}

// TemplateFinder loads a template scoped to its owner. Returns nil when
// nothing matches.
type TemplateFinder interface {
	FindByIDForOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Template, error)
}

// GenerationRecorder persists finished generations.
type GenerationRecorder interface {
	Create(ctx context.Context, g *models.Generation) error
}

// BlobStore stores archives and hands out their public URLs.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	FileURL(key string) string
}

// Config wires a Service.
type Config struct {
	Templates   TemplateFinder
	Generations GenerationRecorder
	// Blobs may be nil; Run then fails with ErrStorageUnavailable.
	Blobs    BlobStore
	Renderer *pdf.Renderer
	// Fetcher is shared across jobs. Each job wraps it in its own memo.
	Fetcher imagefetch.Fetcher
	Archive archive.Options
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// Service runs generation jobs.
type Service struct {
	cfg Config
}

// New creates a Service.
func New(cfg Config) *Service {
	if cfg.Renderer == nil {
		cfg.Renderer = pdf.New(pdf.Options{})
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{cfg: cfg}
}

// Request describes one generation job.
type Request struct {
	OwnerID    uuid.UUID
	TemplateID uuid.UUID
	// Name is the generation name; it doubles as the event name printed
	// in the summary.
	Name     string
	Filename string
	Data     []byte
	// Participants is the count reported by the client. The parsed row
	// count is what gets recorded.
	Participants int
}

// Summary describes what was generated.
type Summary struct {
	TemplateName     string    `json:"templateName"`
	EventName        string    `json:"eventName"`
	ParticipantCount int       `json:"participantCount"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// Result is a finished job.
type Result struct {
	Generation        *models.Generation
	DownloadURL       string
	FileName          string
	TotalCertificates int
	Succeeded         int
	Failed            int
	Summary           Summary
}

// Run executes a generation job.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := s.run(ctx, req)
	s.cfg.Metrics.JobFinished(outcome(err), time.Since(start))
	if err != nil {
		slog.Error("certificate generation failed",
			"owner", req.OwnerID,
			"template", req.TemplateID,
			"name", req.Name,
			"error", err,
		)
		return nil, err
	}
	slog.Info("certificate generation completed",
		"owner", req.OwnerID,
		"generation", res.Generation.ID,
		"certificates", res.Succeeded,
		"failed", res.Failed,
		"duration", time.Since(start),
	)
	return res, nil
}

func (s *Service) run(ctx context.Context, req Request) (*Result, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.TemplateID == uuid.Nil || len(req.Data) == 0 {
		return nil, inputErrorf("missing required fields")
	}
	if s.cfg.Blobs == nil {
		return nil, ErrStorageUnavailable
	}

	tpl, err := s.loadTemplate(ctx, req.OwnerID, req.TemplateID, name)
	if err != nil {
		return nil, err
	}

	records, err := tabular.Parse(req.Data, req.Filename)
	if err != nil {
		return nil, &InputError{Err: err}
	}
	if req.Participants > 0 && req.Participants != len(records) {
		slog.Warn("reported participant count differs from file",
			"reported", req.Participants, "parsed", len(records))
	}
	slog.Info("participant file parsed", "file", req.Filename, "rows", len(records), "columns", tabular.Columns(records))

	renderer := s.cfg.Renderer
	if s.cfg.Fetcher != nil {
		renderer = renderer.WithFetcher(imagefetch.NewMemo(s.cfg.Fetcher))
	}
	built, err := archive.New(renderer, s.cfg.Archive).Build(ctx, tpl, records)
	if err != nil {
		return nil, fmt.Errorf("build archive: %w", err)
	}
	s.cfg.Metrics.RowsProcessed(built.Succeeded, len(built.Errors))

	now := s.cfg.Now()
	fileName := ArchiveName(name, now)
	key := ObjectKey(req.OwnerID, fileName)
	if err := s.cfg.Blobs.Upload(ctx, key, archiveContentType, bytes.NewReader(built.Data), int64(len(built.Data))); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	s.cfg.Metrics.ArchiveUploaded(len(built.Data))
	url := s.cfg.Blobs.FileURL(key)

	gen := &models.Generation{
		UserID:           req.OwnerID,
		Name:             name,
		FileURL:          url,
		ParticipantCount: len(records),
	}
	if err := s.cfg.Generations.Create(ctx, gen); err != nil {
		if delErr := s.cfg.Blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			slog.Warn("orphaned archive left in storage", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("record generation: %w", err)
	}

	return &Result{
		Generation:        gen,
		DownloadURL:       url,
		FileName:          fileName,
		TotalCertificates: len(records),
		Succeeded:         built.Succeeded,
		Failed:            len(built.Errors),
		Summary: Summary{
			TemplateName:     tpl.TemplateName,
			EventName:        tpl.EventName,
			ParticipantCount: len(records),
			GeneratedAt:      now.UTC(),
		},
	}, nil
}

// Preview renders a single certificate for rec without storing anything.
func (s *Service) Preview(ctx context.Context, ownerID, templateID uuid.UUID, rec tabular.Record) ([]byte, error) {
	tpl, err := s.loadTemplate(ctx, ownerID, templateID, "Preview")
	if err != nil {
		return nil, err
	}
	renderer := s.cfg.Renderer
	if s.cfg.Fetcher != nil {
		renderer = renderer.WithFetcher(s.cfg.Fetcher)
	}
	if rec == nil {
		rec = tabular.Record{}
	}
	return renderer.Render(ctx, tpl, rec)
}

// loadTemplate fetches the owner's template and turns it into a validated
// layout.
func (s *Service) loadTemplate(ctx context.Context, ownerID, templateID uuid.UUID, eventName string) (*layout.Template, error) {
	stored, err := s.cfg.Templates.FindByIDForOwner(ctx, templateID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if stored == nil {
		return nil, ErrTemplateNotFound
	}

	tpl, err := layout.FromStored(stored.Name, eventName, stored.Data)
	if err != nil {
		return nil, err
	}
	if err := layout.Validate(tpl).Err(); err != nil {
		return nil, err
	}
	return tpl, nil
}

// ArchiveName is the uploaded file name for a generation started at now.
func ArchiveName(generationName string, now time.Time) string {
	return fmt.Sprintf("%s_%d.zip", slug.Key(generationName), now.UnixMilli())
}

// ObjectKey is the storage key of an owner's archive.
func ObjectKey(ownerID uuid.UUID, fileName string) string {
	return keyPrefix + "/" + ownerID.String() + "/" + fileName
}

func outcome(err error) string {
	var invalid *layout.InvalidTemplateError
	var input *InputError
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.As(err, &input):
		return metrics.OutcomeInvalidInput
	case errors.Is(err, ErrTemplateNotFound):
		return metrics.OutcomeTemplateNotFound
	case errors.As(err, &invalid):
		return metrics.OutcomeInvalidTemplate
	case errors.Is(err, ErrUpload), errors.Is(err, ErrStorageUnavailable):
		return metrics.OutcomeUploadFailed
	default:
		return metrics.OutcomeError
	}
}

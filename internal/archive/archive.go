// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package archive renders a certificate for every participant record and
// packs the documents, an error log, and a summary into one zip file.
// Rows are rendered in sequential batches; rows within a batch run
// concurrently. A failing row becomes an entry in the error log and never
// aborts the job.
package archive

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"certforge/internal/layout"
	"certforge/internal/slug"
	"certforge/internal/tabular"
)

const (
	// DefaultBatchSize is the number of rows rendered concurrently.
	DefaultBatchSize = 10

	// DefaultCompressionLevel is the deflate level of the archive.
	DefaultCompressionLevel = 6

	// ErrorsFile and SummaryFile are the report entries of every archive.
	ErrorsFile  = "generation_errors.txt"
	SummaryFile = "generation_summary.txt"
)

// ErrNoRecords is returned when there is nothing to render.
var ErrNoRecords = errors.New("archive: no records to render")

// nameFields are consulted in order for a participant's display name.
var nameFields = []string{"nama", "name", "participant", "peserta"}

// Renderer produces one document for one record.
type Renderer interface {
	Render(ctx context.Context, t *layout.Template, rec tabular.Record) ([]byte, error)
}

// Options tunes batching and compression. Zero values select the defaults.
type Options struct {
	BatchSize        int
	CompressionLevel int

	// Now stamps the report files. Defaults to time.Now.
	Now func() time.Time

	// Progress, when set, is called after every batch.
	Progress func(done, total int)
}

// RowError records why a row could not be rendered. Row is 1-based.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("Error generating certificate for row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Result is a finished archive.
type Result struct {
	Data      []byte
	Files     []string
	Total     int
	Succeeded int
	Errors    []RowError
	Generated time.Time
}

// Archiver builds certificate archives.
type Archiver struct {
	renderer Renderer
	opts     Options
}

// New creates an Archiver. Out-of-range options fall back to the defaults.
func New(r Renderer, opts Options) *Archiver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.CompressionLevel == 0 || opts.CompressionLevel < flate.HuffmanOnly || opts.CompressionLevel > flate.BestCompression {
		opts.CompressionLevel = DefaultCompressionLevel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Archiver{renderer: r, opts: opts}
}

// rendered is the outcome of one row, kept until its batch is written.
type rendered struct {
	name string
	data []byte
	err  error
}

// Build renders every record and returns the archive. Only an empty record
// set, a cancelled context, or a failure of the zip writer itself is
// returned as an error.
func (a *Archiver) Build(ctx context.Context, t *layout.Template, records []tabular.Record) (*Result, error) {
	if t == nil {
		return nil, errors.New("archive: nil template")
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	level := a.opts.CompressionLevel
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	res := &Result{Total: len(records)}
	start := time.Now()

	for lo := 0; lo < len(records); lo += a.opts.BatchSize {
		hi := min(lo+a.opts.BatchSize, len(records))
		batch := make([]rendered, hi-lo)

		var g errgroup.Group
		g.SetLimit(a.opts.BatchSize)
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				batch[i-lo] = a.renderRow(ctx, t, records[i], i+1)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}

		for i, r := range batch {
			if r.err != nil {
				rowErr := RowError{Row: lo + i + 1, Err: r.err}
				slog.Error("certificate row failed", "row", rowErr.Row, "error", r.err)
				res.Errors = append(res.Errors, rowErr)
				continue
			}
			if err := writeEntry(zw, r.name, r.data, a.opts.Now()); err != nil {
				return nil, err
			}
			res.Files = append(res.Files, r.name)
			res.Succeeded++
		}

		if a.opts.Progress != nil {
			a.opts.Progress(hi, len(records))
		}
	}

	res.Generated = a.opts.Now().UTC()
	if len(res.Errors) > 0 {
		if err := writeEntry(zw, ErrorsFile, []byte(ErrorLog(res.Errors, res.Generated)), res.Generated); err != nil {
			return nil, err
		}
	}
	if err := writeEntry(zw, SummaryFile, []byte(Summary(t, res)), res.Generated); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: finalize zip: %w", err)
	}

	res.Data = buf.Bytes()
	slog.Info("certificate archive built",
		"template", t.TemplateName,
		"rows", res.Total,
		"succeeded", res.Succeeded,
		"failed", len(res.Errors),
		"bytes", len(res.Data),
		"duration", time.Since(start),
	)
	return res, nil
}

// renderRow renders one record, turning panics into row errors.
func (a *Archiver) renderRow(ctx context.Context, t *layout.Template, rec tabular.Record, row int) (out rendered) {
	defer func() {
		if v := recover(); v != nil {
			out = rendered{err: fmt.Errorf("panic: %v", v)}
		}
	}()

	data, err := a.renderer.Render(ctx, t, rec)
	if err != nil {
		return rendered{err: err}
	}
	return rendered{name: EntryName(rec, row), data: data}
}

func writeEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("archive: write %s: %w", name, err)
	}
	return nil
}

// EntryName is the archive file name of a row's certificate, built from the
// first non-empty name column or a positional fallback.
func EntryName(rec tabular.Record, row int) string {
	name := fmt.Sprintf("participant_%d", row)
	for _, field := range nameFields {
		if v := rec[field]; v != "" {
			name = v
			break
		}
	}
	return fmt.Sprintf("certificate_%s_%d.pdf", slug.FileStem(name), row)
}

// ErrorLog formats the generation_errors.txt report.
func ErrorLog(errs []RowError, generated time.Time) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return fmt.Sprintf("Generation Errors:\n%s\n\nGenerated: %s", strings.Join(lines, "\n"), Timestamp(generated))
}

// Summary formats the generation_summary.txt report.
func Summary(t *layout.Template, res *Result) string {
	return fmt.Sprintf(`Certificate Generation Summary
Template: %s
Event: %s
Total Records: %d
Successful: %d
Errors: %d
Generated: %s`,
		t.TemplateName,
		t.EventName,
		res.Total,
		res.Total-len(res.Errors),
		len(res.Errors),
		Timestamp(res.Generated),
	)
}

// Timestamp renders t as an ISO-8601 UTC instant with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

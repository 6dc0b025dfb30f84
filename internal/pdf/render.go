// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package pdf renders one certificate per participant record onto an A4
// landscape page. Rendering never fails for template problems: a broken
// component is logged and skipped, and a broken document is replaced by a
// short error page.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"certforge/internal/imagefetch"
	"certforge/internal/layout"
	"certforge/internal/tabular"
)

const (
	orientation = "L"
	unit        = "mm"
	pageSize    = "A4"
	fontFamily  = "Helvetica"

	// lineHeightFactor converts a point size into a line advance in mm.
	lineHeightFactor = 0.4

	// qrSizeMM is the edge of the optional verification QR code.
	qrSizeMM = 18.0
)

// Options configures a Renderer.
type Options struct {
	// Fetcher downloads background and image component URLs. Nil disables
	// remote images; they render as fallbacks.
	Fetcher imagefetch.Fetcher

	// MaxImageDimension bounds embedded image pixels. Zero uses the
	// imaging default.
	MaxImageDimension int

	// QR stamps a verification QR code bottom-right when true.
	QR bool

	// VerifyBaseURL prefixes the certificate id in the QR payload.
	VerifyBaseURL string

	// Now returns the generation time. Defaults to time.Now.
	Now func() time.Time
}

// Renderer draws certificates.
type Renderer struct {
	opts Options
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Renderer{opts: opts}
}

// WithFetcher returns a copy of the renderer that downloads images through f.
func (r *Renderer) WithFetcher(f imagefetch.Fetcher) *Renderer {
	opts := r.opts
	opts.Fetcher = f
	return &Renderer{opts: opts}
}

// Render draws t bound to rec and returns the serialized PDF. The only
// errors returned are context cancellation and a failure to serialize even
// the fallback error page.
func (r *Renderer) Render(ctx context.Context, t *layout.Template, rec tabular.Record) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := r.draw(ctx, t, rec)
	if err == nil {
		var buf bytes.Buffer
		if err = doc.Output(&buf); err == nil {
			return buf.Bytes(), nil
		}
	}

	name := ""
	if t != nil {
		name = t.TemplateName
	}
	slog.Error("certificate render failed, writing error page", "template", name, "error", err)
	return errorPage()
}

// draw builds the certificate page. Panics anywhere outside a component
// become a document-level error.
func (r *Renderer) draw(ctx context.Context, t *layout.Template, rec tabular.Record) (doc *gofpdf.Fpdf, err error) {
	defer func() {
		if v := recover(); v != nil {
			doc, err = nil, fmt.Errorf("panic: %v", v)
		}
	}()

	if t == nil {
		return nil, fmt.Errorf("no template")
	}

	now := r.opts.Now()
	doc = newDocument(now)
	pw, ph := doc.GetPageSize()
	p := &page{
		doc:    doc,
		tr:     doc.UnicodeTranslatorFromDescriptor(""),
		width:  pw,
		height: ph,
		opts:   &r.opts,
	}

	p.background(ctx, t.BackgroundImage)

	for i := range t.Components {
		p.component(ctx, i, &t.Components[i], rec)
	}

	p.borders()

	certID := CertificateID(now)
	p.footer(certID, now)
	if r.opts.QR {
		p.qr(VerifyPayload(r.opts.VerifyBaseURL, certID))
	}

	if err := doc.Error(); err != nil {
		return nil, err
	}
	return doc, nil
}

func newDocument(now time.Time) *gofpdf.Fpdf {
	doc := gofpdf.New(orientation, unit, pageSize, "")
	doc.SetCompression(true)
	doc.SetCreator("certforge", true)
	doc.SetCreationDate(now)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()
	return doc
}

// errorPage renders the minimal page emitted when a certificate cannot be
// drawn.
func errorPage() ([]byte, error) {
	doc := newDocument(time.Now())
	pw, ph := doc.GetPageSize()

	doc.SetFont(fontFamily, "", 16)
	doc.SetTextColor(255, 0, 0)
	centerText(doc, "Error generating certificate", pw/2, ph/2)

	doc.SetFont(fontFamily, "", 12)
	doc.SetTextColor(0, 0, 0)
	centerText(doc, "Please check your template configuration", pw/2, ph/2+10)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("write error page: %w", err)
	}
	return buf.Bytes(), nil
}

func centerText(doc *gofpdf.Fpdf, s string, x, y float64) {
	doc.Text(x-doc.GetStringWidth(s)/2, y, s)
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// CertificateID returns a time-based identifier with a random suffix, for
// example CERT-1718000000000-k3j9x0a2b.
func CertificateID(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = base36[rand.IntN(len(base36))]
	}
	return fmt.Sprintf("CERT-%d-%s", now.UnixMilli(), suffix)
}

// VerifyPayload is the content encoded in the verification QR code.
func VerifyPayload(baseURL, certID string) string {
	if baseURL == "" {
		return certID
	}
	return strings.TrimRight(baseURL, "/") + "/" + certID
}

// FormatDate renders a generation date as day/month/year without padding.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

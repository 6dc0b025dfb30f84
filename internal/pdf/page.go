// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"certforge/internal/imagefetch"
	"certforge/internal/imaging"
	"certforge/internal/layout"
	"certforge/internal/tabular"
)

// Defaults applied when a component style leaves a value out.
const (
	defaultFontSize    = "16px"
	defaultColor       = "#000000"
	defaultShapeColor  = "#3b82f6"
	defaultBoxPx       = 100.0
	placeholderFontPt  = 8.0
	footerFontPt       = 8.0
	patternStepMM      = 20
	patternDotRadiusMM = 0.5
)

var errNoFetcher = errors.New("image fetching disabled")

// page carries the state for drawing one certificate.
type page struct {
	doc    *gofpdf.Fpdf
	tr     func(string) string
	width  float64
	height float64
	opts   *Options
}

// background stretches a remote image over the page. Without one, or when
// it cannot be loaded, a flat fill is painted instead.
func (p *page) background(ctx context.Context, ref string) {
	if !strings.HasPrefix(ref, "http") {
		p.doc.SetFillColor(248, 249, 250)
		p.doc.Rect(0, 0, p.width, p.height, "F")
		p.doc.SetFillColor(245, 247, 250)
		p.doc.Ellipse(p.width/2, p.height/2, p.width/3, p.height/4, 0, "F")
		return
	}

	err := p.image(ctx, ref, 0, 0, p.width, p.height)
	if err == nil {
		return
	}
	slog.Warn("background image unavailable, using fallback", "url", ref, "error", err)
	p.doc.ClearError()

	p.doc.SetFillColor(240, 242, 247)
	p.doc.Rect(0, 0, p.width, p.height, "F")
	p.doc.SetFillColor(235, 237, 242)
	for i := 0; float64(i) < p.width; i += patternStepMM {
		for j := 0; float64(j) < p.height; j += patternStepMM {
			if (i+j)%(2*patternStepMM) == 0 {
				p.doc.Circle(float64(i), float64(j), patternDotRadiusMM, "F")
			}
		}
	}
}

// component draws one template component. Failures, including panics and
// writer errors, are logged and cleared so that later components still
// render.
func (p *page) component(ctx context.Context, index int, c *layout.Component, rec tabular.Record) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("component render panic", "component", c.ID, "index", index, "panic", r)
		}
		if err := p.doc.Error(); err != nil {
			slog.Error("component render failed", "component", c.ID, "index", index, "error", err)
			p.doc.ClearError()
		}
	}()

	if !c.Style.Position.Valid() {
		slog.Error("component has no usable position", "component", c.ID, "index", index)
		return
	}
	x, y := c.Style.Position.Absolute(p.width, p.height)

	switch c.Type {
	case layout.KindText:
		p.text(bind(c, rec), x, y, &c.Style)
	case layout.KindImage:
		p.imageComponent(ctx, bind(c, rec), x, y, &c.Style)
	case layout.KindShape:
		p.shape(x, y, &c.Style)
	default:
		slog.Warn("unknown component type skipped", "component", c.ID, "type", c.Type)
	}
}

func bind(c *layout.Component, rec tabular.Record) string {
	out, missing := layout.Bind(c.Content, rec)
	for _, key := range missing {
		slog.Warn("placeholder not found in record", "key", key, "component", c.ID)
	}
	return out
}

// text draws each non-blank line of s anchored at (x, y).
func (p *page) text(s string, x, y float64, st *layout.Style) {
	size := layout.FontSizePt(st.FontSize.Or(defaultFontSize))
	style := ""
	if layout.FontWeight(string(st.FontWeight)) == layout.WeightBold {
		style = "B"
	}
	align := layout.TextAlign(string(st.TextAlign))
	color := layout.HexToRGB(st.Color.Or(defaultColor))

	p.doc.SetFont(fontFamily, style, size)
	p.doc.SetTextColor(color.R, color.G, color.B)

	lineHeight := size * lineHeightFactor
	n := 0
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p.alignedText(p.tr(line), x, y+float64(n)*lineHeight, align)
		n++
	}
}

func (p *page) alignedText(s string, x, y float64, align layout.Align) {
	switch align {
	case layout.AlignCenter:
		x -= p.doc.GetStringWidth(s) / 2
	case layout.AlignRight:
		x -= p.doc.GetStringWidth(s)
	}
	p.doc.Text(x, y, s)
}

// shape fills a rectangle centred on (x, y), rounded when borderRadius > 0.
func (p *page) shape(x, y float64, st *layout.Style) {
	w := layout.LengthMM(string(st.Width), defaultBoxPx)
	h := layout.LengthMM(string(st.Height), defaultBoxPx)
	fill := layout.HexToRGB(st.BackgroundColor.Or(defaultShapeColor))
	radius := layout.LengthMM(string(st.BorderRadius), 0)

	p.doc.SetFillColor(fill.R, fill.G, fill.B)
	if radius > 0 {
		p.doc.RoundedRect(x-w/2, y-h/2, w, h, min(radius, w/2, h/2), "1234", "F")
		return
	}
	p.doc.Rect(x-w/2, y-h/2, w, h, "F")
}

// imageComponent places a remote image centred on (x, y), or a labelled
// placeholder box when the reference cannot be loaded.
func (p *page) imageComponent(ctx context.Context, ref string, x, y float64, st *layout.Style) {
	w := layout.LengthMM(string(st.Width), defaultBoxPx)
	h := layout.LengthMM(string(st.Height), defaultBoxPx)

	if imagefetch.IsRemote(ref) {
		err := p.image(ctx, ref, x-w/2, y-h/2, w, h)
		if err == nil {
			return
		}
		slog.Warn("component image unavailable, using placeholder", "url", ref, "error", err)
		p.doc.ClearError()
	}

	p.doc.SetDrawColor(200, 200, 200)
	p.doc.SetLineWidth(0.5)
	p.doc.Rect(x-w/2, y-h/2, w, h, "D")
	p.doc.SetFont(fontFamily, "", placeholderFontPt)
	p.doc.SetTextColor(150, 150, 150)
	p.alignedText("IMAGE", x, y, layout.AlignCenter)
}

// image fetches, normalizes and places the image at url.
func (p *page) image(ctx context.Context, url string, x, y, w, h float64) error {
	if p.opts.Fetcher == nil {
		return errNoFetcher
	}
	data, err := p.opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		return err
	}
	img, err := imaging.Normalize(data, p.opts.MaxImageDimension)
	if err != nil {
		return err
	}
	return p.place(url, img, x, y, w, h)
}

func (p *page) place(name string, img *imaging.Image, x, y, w, h float64) error {
	opts := gofpdf.ImageOptions{ImageType: string(img.Format)}
	p.doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if err := p.doc.Error(); err != nil {
		return fmt.Errorf("embed image: %w", err)
	}
	p.doc.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	return p.doc.Error()
}

// borders draws the outer accent frame and the thin inner frame.
func (p *page) borders() {
	p.doc.SetDrawColor(52, 152, 219)
	p.doc.SetLineWidth(1)
	p.doc.Rect(10, 10, p.width-20, p.height-20, "D")

	p.doc.SetDrawColor(200, 200, 200)
	p.doc.SetLineWidth(0.3)
	p.doc.Rect(15, 15, p.width-30, p.height-30, "D")
}

// footer stamps the certificate id and generation date in the bottom margin.
func (p *page) footer(certID string, now time.Time) {
	p.doc.SetFont(fontFamily, "", footerFontPt)
	p.doc.SetTextColor(149, 165, 166)
	p.doc.Text(20, p.height-15, "Certificate ID: "+certID)
	p.doc.Text(p.width-60, p.height-15, "Generated: "+FormatDate(now))
}

// qr stamps a verification QR code above the generation date. A failed
// encode only drops the code.
func (p *page) qr(payload string) {
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		slog.Warn("verification qr encode failed", "error", err)
		return
	}
	img := &imaging.Image{Data: png, Format: imaging.FormatPNG}
	x := p.width - 20 - qrSizeMM
	y := p.height - 20 - qrSizeMM
	if err := p.place("verify-qr", img, x, y, qrSizeMM, qrSizeMM); err != nil {
		slog.Warn("verification qr embed failed", "error", err)
		p.doc.ClearError()
	}
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging prepares fetched images for embedding in PDF documents.
// The format is sniffed from the payload rather than trusted from headers.
// JPEGs pass through untouched when they fit; PNG, GIF and WebP are decoded
// and re-encoded as 8-bit non-interlaced PNG, which every PDF writer
// accepts. Images wider or taller than the configured bound are downscaled.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF decoder
	"image/jpeg"
	"image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrUnsupported is returned for payloads that are not a raster image we
// can decode.
var ErrUnsupported = errors.New("imaging: unsupported image format")

const (
	// DefaultMaxDimension bounds the longest edge of embedded images.
	// An A4 page at 300 dpi is 3508 px wide.
	DefaultMaxDimension = 3508

	// maxImagePixels caps the decoded size to prevent memory bombs.
	// 10000x10000 = 100 million pixels, ~400 MB decoded in RGBA.
	maxImagePixels = 100_000_000

	// jpegQuality is used when a JPEG has to be re-encoded after downscaling.
	jpegQuality = 85
)

// Format is the image type name understood by the PDF writer.
type Format string

const (
	FormatJPEG Format = "JPG"
	FormatPNG  Format = "PNG"
)

// Image is a payload ready to register with the PDF writer.
type Image struct {
	Data   []byte
	Format Format
	Width  int
	Height int
}

// Sniff reports the MIME type of an image payload.
func Sniff(data []byte) string {
	return http.DetectContentType(data)
}

// Normalize sniffs, validates, and if needed converts or downscales an
// image so that it can be embedded. maxDim <= 0 uses DefaultMaxDimension.
func Normalize(data []byte, maxDim int) (*Image, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	contentType := Sniff(data)
	switch contentType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, contentType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: read dimensions: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxImagePixels {
		return nil, fmt.Errorf("imaging: dimensions %dx%d out of range", cfg.Width, cfg.Height)
	}

	fits := cfg.Width <= maxDim && cfg.Height <= maxDim
	if contentType == "image/jpeg" && fits {
		return &Image{Data: data, Format: FormatJPEG, Width: cfg.Width, Height: cfg.Height}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode failed: %w", err)
	}

	dst := toNRGBA(src, maxDim)
	var buf bytes.Buffer
	format := FormatPNG
	if contentType == "image/jpeg" {
		format = FormatJPEG
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality})
	} else {
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("imaging: encode failed: %w", err)
	}

	b := dst.Bounds()
	return &Image{Data: buf.Bytes(), Format: format, Width: b.Dx(), Height: b.Dy()}, nil
}

// toNRGBA draws src into an 8-bit NRGBA canvas, scaling it down so that
// its longest edge is at most maxDim.
func toNRGBA(src image.Image, maxDim int) *image.NRGBA {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	if w > maxDim || h > maxDim {
		if w >= h {
			h = max(1, h*maxDim/w)
			w = maxDim
		} else {
			w = max(1, w*maxDim/h)
			h = maxDim
		}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == sb.Dx() && h == sb.Dy() {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Src, nil)
	}
	return dst
}

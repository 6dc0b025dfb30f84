// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package layout

import (
	"regexp"
	"strconv"
	"strings"
)

// PxToMM converts CSS pixels to millimetres on the rendered page.
const PxToMM = 0.26

const (
	minFontPt = 8
	maxFontPt = 72

	// defaultFontPt is what "16px" converts to.
	defaultFontPt = 12
)

// RGB is an 8-bit colour.
type RGB struct {
	R, G, B int
}

var hexColorPattern = regexp.MustCompile(`(?i)^#?([a-f\d]{2})([a-f\d]{2})([a-f\d]{2})$`)

// HexToRGB parses "#rrggbb" (the "#" is optional). Anything else is black.
func HexToRGB(hex string) RGB {
	m := hexColorPattern.FindStringSubmatch(strings.TrimSpace(hex))
	if m == nil {
		return RGB{}
	}
	channel := func(s string) int {
		v, _ := strconv.ParseUint(s, 16, 8)
		return int(v)
	}
	return RGB{R: channel(m[1]), G: channel(m[2]), B: channel(m[3])}
}

// Weight is the PDF font weight.
type Weight int

const (
	WeightNormal Weight = iota
	WeightBold
)

// FontWeight maps a CSS font-weight to bold or normal.
func FontWeight(weight string) Weight {
	switch strings.TrimSpace(strings.ToLower(weight)) {
	case "bold", "600", "700", "800", "900":
		return WeightBold
	}
	return WeightNormal
}

// Align is a horizontal text anchor rule.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// TextAlign maps a CSS text-align value. Unknown values align left.
func TextAlign(align string) Align {
	switch strings.TrimSpace(align) {
	case "center":
		return AlignCenter
	case "right":
		return AlignRight
	}
	return AlignLeft
}

// FontSizePt converts a CSS font size to points. px scales by 0.75,
// rem/em by 12 (16px base), unit-less values are clamped to [8, 72].
// Unparseable input yields the 16px default.
func FontSizePt(size string) float64 {
	v, ok := parseLeadingFloat(size)
	if !ok {
		return defaultFontPt
	}
	switch {
	case strings.Contains(size, "px"):
		return v * 0.75
	case strings.Contains(size, "em"): // also matches rem
		return v * 12
	}
	return min(maxFontPt, max(minFontPt, v))
}

// LengthMM converts a CSS pixel length ("120px" or "120") to millimetres,
// using fallbackPx when the value is empty or unparseable.
func LengthMM(length string, fallbackPx float64) float64 {
	v, ok := parseLeadingFloat(strings.ReplaceAll(length, "px", ""))
	if !ok {
		v = fallbackPx
	}
	return v * PxToMM
}

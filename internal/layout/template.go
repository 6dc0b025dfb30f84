// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package layout holds the in-memory certificate design produced by the
// template editor: a background, an ordered list of positioned components,
// and canvas settings. It also provides validation, placeholder binding,
// and the unit conversions the PDF renderer needs.
package layout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of component types.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindShape Kind = "shape"
)

// Known reports whether k is one of the supported component kinds.
func (k Kind) Known() bool {
	switch k {
	case KindText, KindImage, KindShape:
		return true
	}
	return false
}

// Template is one certificate design ready for rendering. EventName is
// supplied per generation job and is not part of the saved design.
type Template struct {
	EventName       string      `json:"eventName" yaml:"eventName"`
	TemplateName    string      `json:"templateName" yaml:"templateName"`
	BackgroundImage string      `json:"backgroundImage" yaml:"backgroundImage"`
	Components      []Component `json:"components" yaml:"components"`
	Settings        Settings    `json:"settings" yaml:"settings"`
}

// Settings describes the editor canvas in logical pixels.
type Settings struct {
	Width   float64 `json:"width" yaml:"width"`
	Height  float64 `json:"height" yaml:"height"`
	Padding string  `json:"padding" yaml:"padding"`
}

// DefaultSettings mirrors the editor's default canvas.
var DefaultSettings = Settings{Width: 800, Height: 600, Padding: "20px"}

// Component is one visual element. Components paint in slice order.
type Component struct {
	ID      string `json:"id" yaml:"id"`
	Type    Kind   `json:"type" yaml:"type"`
	Content string `json:"content" yaml:"content"`
	Style   Style  `json:"style" yaml:"style"`
}

// Style carries CSS-like attributes. Position is nil when the editor did
// not provide one.
type Style struct {
	Position        *Position `json:"position,omitempty" yaml:"position,omitempty"`
	FontSize        CSSValue  `json:"fontSize,omitempty" yaml:"fontSize,omitempty"`
	FontWeight      CSSValue  `json:"fontWeight,omitempty" yaml:"fontWeight,omitempty"`
	Color           CSSValue  `json:"color,omitempty" yaml:"color,omitempty"`
	TextAlign       CSSValue  `json:"textAlign,omitempty" yaml:"textAlign,omitempty"`
	Width           CSSValue  `json:"width,omitempty" yaml:"width,omitempty"`
	Height          CSSValue  `json:"height,omitempty" yaml:"height,omitempty"`
	BackgroundColor CSSValue  `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	BorderRadius    CSSValue  `json:"borderRadius,omitempty" yaml:"borderRadius,omitempty"`
}

// CSSValue is a style value such as "16px" or "#1f2937". The editor
// sometimes emits bare numbers, which are kept in their decimal form.
type CSSValue string

// UnmarshalJSON accepts both JSON strings and JSON numbers.
func (v *CSSValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = CSSValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("css value: %s is neither string nor number", b)
	}
	*v = CSSValue(n.String())
	return nil
}

// Or returns the value, or fallback when the value is empty.
func (v CSSValue) Or(fallback string) string {
	if s := strings.TrimSpace(string(v)); s != "" {
		return s
	}
	return fallback
}

// Position is a percentage anchor (0-100) on the canvas. X and Y are nil
// when the stored value was missing or not a number.
type Position struct {
	X *float64 `json:"x" yaml:"x"`
	Y *float64 `json:"y" yaml:"y"`
}

// UnmarshalJSON decodes x and y leniently so that a non-numeric coordinate
// surfaces as a validation error instead of aborting the whole decode.
func (p *Position) UnmarshalJSON(b []byte) error {
	var raw struct {
		X json.RawMessage `json:"x"`
		Y json.RawMessage `json:"y"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	p.X = numberOrNil(raw.X)
	p.Y = numberOrNil(raw.Y)
	return nil
}

func numberOrNil(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

// Valid reports whether both coordinates are present.
func (p *Position) Valid() bool {
	return p != nil && p.X != nil && p.Y != nil
}

// Absolute converts the percentage anchor into page coordinates.
func (p *Position) Absolute(pageWidth, pageHeight float64) (x, y float64) {
	if !p.Valid() {
		return 0, 0
	}
	return *p.X / 100 * pageWidth, *p.Y / 100 * pageHeight
}

// storedDesign is the JSON persisted by the template store.
type storedDesign struct {
	TemplateName    string      `json:"templateName"`
	BackgroundImage string      `json:"backgroundImage"`
	Components      []Component `json:"components"`
	Settings        *Settings   `json:"settings"`
}

// FromStored builds a Template from a saved design. The record name wins
// over the name embedded in the design; "Certificate" is the last resort.
// Data may be a JSON object or a JSON string holding one.
func FromStored(name, eventName string, data []byte) (*Template, error) {
	var d storedDesign
	if err := json.Unmarshal(data, &d); err != nil {
		var inner string
		if json.Unmarshal(data, &inner) != nil {
			return nil, &InvalidTemplateError{Errors: []string{"Template format is not valid"}}
		}
		if err := json.Unmarshal([]byte(inner), &d); err != nil {
			return nil, &InvalidTemplateError{Errors: []string{"Template format is not valid"}}
		}
	}

	t := &Template{
		EventName:       eventName,
		TemplateName:    firstNonEmpty(name, d.TemplateName, "Certificate"),
		BackgroundImage: d.BackgroundImage,
		Components:      d.Components,
		Settings:        DefaultSettings,
	}
	if d.Settings != nil {
		t.Settings = *d.Settings
	}
	return t, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// parseLeadingFloat reads the numeric prefix of a CSS value ("16px" → 16),
// the way browsers' parseFloat does. ok is false when there is no number.
func parseLeadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	seenDot, seenDigit := false, false
scan:
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			end = i + 1
		case r == '.' && !seenDot:
			seenDot = true
			end = i + 1
		case (r == '-' || r == '+') && i == 0:
			end = i + 1
		default:
			break scan
		}
	}
	if !seenDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

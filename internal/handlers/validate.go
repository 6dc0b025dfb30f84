// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Validation limits for account and template fields.
const (
	maxEmailLen          = 255
	minPasswordLen       = 8
	maxPasswordLen       = 72 // bcrypt ignores anything longer
	maxDisplayNameLen    = 255
	maxTemplateNameLen   = 255
	maxGenerationNameLen = 255
)

// validateRegistration checks sign-up input and returns the first error found.
func validateRegistration(email, password, name string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "Email is required."
	}
	if len(email) > maxEmailLen {
		return "Email is too long (max 255 characters)."
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "Email is not valid."
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return "Password must be at least 8 characters."
	}
	if len(password) > maxPasswordLen {
		return "Password is too long (max 72 bytes)."
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return "Name is too long (max 255 characters)."
	}
	return ""
}

// validateTemplateName checks a template name.
func validateTemplateName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Template name is required."
	}
	if utf8.RuneCountInString(name) > maxTemplateNameLen {
		return "Template name is too long (max 255 characters)."
	}
	return ""
}

// validateTemplateData checks that a design is a JSON object, or a JSON
// string holding one.
func validateTemplateData(data json.RawMessage) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "Template data is required."
	}
	if !json.Valid(trimmed) {
		return "Template data is not valid JSON."
	}
	switch trimmed[0] {
	case '{':
		return ""
	case '"':
		var inner string
		if json.Unmarshal(trimmed, &inner) == nil && json.Valid([]byte(inner)) && strings.HasPrefix(strings.TrimSpace(inner), "{") {
			return ""
		}
	}
	return "Template data must be a JSON object."
}

// validateGenerationName checks the name of a generation batch.
func validateGenerationName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Generation name is required."
	}
	if utf8.RuneCountInString(name) > maxGenerationNameLen {
		return "Generation name is too long (max 255 characters)."
	}
	return ""
}

// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package layout

import (
	"fmt"
	"strings"
)

// Validation is the outcome of Validate. Errors lists every problem found.
type Validation struct {
	Valid  bool
	Errors []string
}

// Err returns an *InvalidTemplateError when the template is invalid, nil otherwise.
func (v Validation) Err() error {
	if v.Valid {
		return nil
	}
	return &InvalidTemplateError{Errors: v.Errors}
}

// InvalidTemplateError reports a template that cannot be rendered.
type InvalidTemplateError struct {
	Errors []string
}

func (e *InvalidTemplateError) Error() string {
	return "invalid template: " + strings.Join(e.Errors, ", ")
}

// Validate checks a template for structural completeness. Every rule is
// evaluated so the caller gets the full list of violations.
func Validate(t *Template) Validation {
	var errs []string
	if t == nil {
		return Validation{Valid: false, Errors: []string{"Template is required"}}
	}

	if strings.TrimSpace(t.TemplateName) == "" {
		errs = append(errs, "Template name is required")
	}

	if len(t.Components) == 0 {
		errs = append(errs, "Template must have at least one component")
	}

	for i, c := range t.Components {
		n := i + 1
		if strings.TrimSpace(c.ID) == "" {
			errs = append(errs, fmt.Sprintf("Component %d is missing an ID", n))
		}
		if !c.Type.Known() {
			errs = append(errs, fmt.Sprintf("Component %d has invalid type: %s", n, c.Type))
		}
		if c.Type == KindText && strings.TrimSpace(c.Content) == "" {
			errs = append(errs, fmt.Sprintf("Text component %d has no content", n))
		}
		if !c.Style.Position.Valid() {
			errs = append(errs, fmt.Sprintf("Component %d has invalid position", n))
		}
	}

	return Validation{Valid: len(errs) == 0, Errors: errs}
}

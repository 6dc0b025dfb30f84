// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package layout

import (
	"regexp"
	"strings"
)

// placeholderPattern matches {{field}} tokens non-greedily.
var placeholderPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// Bind replaces every {{key}} token in content with the matching field
// value. Keys are trimmed and looked up as written, then lower-cased.
// Unknown tokens stay verbatim in the output and are returned in missing,
// in order of appearance.
func Bind(content string, fields map[string]string) (out string, missing []string) {
	out = placeholderPattern.ReplaceAllStringFunc(content, func(token string) string {
		key := strings.TrimSpace(token[2 : len(token)-2])
		if v, ok := lookup(fields, key); ok {
			return v
		}
		missing = append(missing, key)
		return token
	})
	return out, missing
}

// Placeholders lists the distinct trimmed keys referenced by content.
func Placeholders(content string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		key := strings.TrimSpace(m[1])
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

func lookup(fields map[string]string, key string) (string, bool) {
	if v, ok := fields[key]; ok {
		return v, true
	}
	v, ok := fields[strings.ToLower(key)]
	return v, ok
}

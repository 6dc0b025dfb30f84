// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug turns free-form names into safe file and object-key names.
package slug

import (
	"regexp"
	"strings"
)

var (
	// unsafeKeyChars matches anything not allowed in an object-key segment.
	unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	// unsafeNameChars matches anything that isn't a word character,
	// whitespace, dot, or hyphen.
	unsafeNameChars = regexp.MustCompile(`[^\w\s.-]`)
	// whitespaceRun collapses consecutive whitespace into one separator.
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Key replaces every character outside [a-zA-Z0-9._-] with an underscore,
// one for one, so the result is safe as a single storage key segment.
// Example: "Workshop Go #3" → "Workshop_Go__3"
func Key(s string) string {
	return unsafeKeyChars.ReplaceAllString(s, "_")
}

// FileStem strips characters that are awkward in archive entry names and
// joins words with underscores.
// Example: "Dr. Budi, S.Kom" → "Dr._Budi_S.Kom"
func FileStem(s string) string {
	result := unsafeNameChars.ReplaceAllString(s, "")
	return whitespaceRun.ReplaceAllString(result, "_")
}

package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanString trims s, folds client placeholders such as "undefined" and
// "null" into the empty string, and composes accents (NFC) so "Compás" typed
// on different keyboards compares equal.
func CleanString(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	switch strings.ToLower(s) {
	case "undefined", "null":
		return ""
	}
	return s
}

// CleanOptional returns nil for blank values and a trimmed copy otherwise.
func CleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := CleanString(*s)
	if v == "" {
		return nil
	}
	return &v
}

// DefaultString returns fallback when s is blank after cleaning.
func DefaultString(s, fallback string) string {
	if v := CleanString(s); v != "" {
		return v
	}
	return fallback
}

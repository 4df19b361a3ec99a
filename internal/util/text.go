package util

import (
	"strings"
	"unicode/utf8"
)

// SanitizePostgresText drops NUL bytes and invalid UTF-8, which Postgres
// text columns reject.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// ClipText shortens value to at most maxRunes runes, marking the cut with
// "…". Values within the limit and non-positive limits return value as is.
func ClipText(value string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(value) <= maxRunes {
		return value
	}
	if maxRunes == 1 {
		return "…"
	}
	runes := []rune(value)
	return string(runes[:maxRunes-1]) + "…"
}

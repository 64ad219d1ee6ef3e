// Package fields turns single statement cells into typed values.
//
// Every function here is pure and tolerant: malformed text degrades to a zero
// value instead of an error, so one bad cell never aborts a file.
package fields

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold lowercases s and strips diacritics, so "Depósito" and "deposito" compare equal.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// containsFolded reports whether haystack contains needle ignoring case and accents.
func containsFolded(haystack, needle string) bool {
	return strings.Contains(fold(haystack), fold(needle))
}

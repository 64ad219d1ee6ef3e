package validation

import (
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeFileName keeps only the base name of a client supplied file name and
// drops non-printable characters from it.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(StripUnprintable(strings.TrimSpace(name)))
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// StripUnprintable removes non-printable characters, allowing common whitespace
// like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

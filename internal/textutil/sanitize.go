package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// SanitizeFileName turns a part or stem display name into the file name
// component the run manager writes. Characters other than letters, digits,
// underscore, whitespace, '.' and '-' are dropped, the result is trimmed and
// each whitespace run becomes a single underscore. Empty input yields
// "untitled".
func SanitizeFileName(name string) string {
	name = norm.NFC.String(name)
	var kept strings.Builder
	kept.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsSpace(r), r == '_', r == '.', r == '-':
			kept.WriteRune(r)
		}
	}
	fields := strings.FieldsFunc(kept.String(), unicode.IsSpace)
	out := strings.Join(fields, "_")
	if out == "" {
		return "untitled"
	}
	return out
}

// NormalizePartName strips a trailing parenthesised qualifier, so
// "Alto Sax 1 (Alto Sax)" becomes "Alto Sax 1".
func NormalizePartName(name string) string {
	value := strings.TrimSpace(name)
	if strings.HasSuffix(value, ")") {
		if idx := strings.LastIndex(value, "("); idx >= 0 {
			value = strings.TrimSpace(value[:idx])
		}
	}
	return value
}

// Title capitalises each word for display.
func Title(value string) string {
	return cases.Title(language.Und).String(strings.TrimSpace(value))
}

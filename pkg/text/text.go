// Package text normalizes human text for accent- and case-insensitive matching.
package text

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// combiningMarks is the Combining Diacritical Marks block (U+0300–U+036F).
// Marks outside this block are left untouched.
var combiningMarks = runes.In(&unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
})

// Normalize decomposes s (NFD), drops combining diacritical marks and
// lower-cases the result.
//
//	Normalize("Ficção") == "ficcao"
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	// transform.Chain is stateful, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(combiningMarks))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tokenize normalizes s and splits it into words on whitespace and
// punctuation (- . , : ; ! ? ' " /). Empty tokens are dropped; order and
// duplicates are preserved.
//
//	Tokenize("Dom Casmurro") == []string{"dom", "casmurro"}
func Tokenize(s string) []string {
	return strings.FieldsFunc(Normalize(s), isSeparator)
}

func isSeparator(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case '-', '.', ',', ':', ';', '!', '?', '\'', '"', '/':
		return true
	}
	return false
}

// ContainsSubstring reports whether text contains query after normalization.
// A blank query matches everything.
func ContainsSubstring(text, query string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	return strings.Contains(Normalize(text), Normalize(query))
}

// StartsWithText reports whether text starts with query after normalization.
// A blank query matches everything.
func StartsWithText(text, query string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	return strings.HasPrefix(Normalize(text), Normalize(query))
}

// Package textmatch holds the light fuzzy-matching helpers used to compare
// Japanese facility names, addresses and area labels.
package textmatch

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalize folds full-width ASCII and half-width katakana (NFKC), lowercases,
// collapses whitespace and drops common punctuation.
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = width.Fold.String(s)
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case isDropped(r):
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

// Compact is Normalize with all spaces removed
func Compact(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "")
}

// KeyFold is the loose key used for exact-duplicate grouping: trimmed and
// case-insensitive, without any other folding.
func KeyFold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isDropped(r rune) bool {
	switch r {
	case '・', '、', '。', '「', '」', '(', ')', '[', ']', '.', ',', '\'', '"', '-':
		return true
	}
	return false
}

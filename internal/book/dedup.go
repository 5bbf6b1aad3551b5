package book

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DedupKey normalizes a title for duplicate detection: compatibility
// normalization, lowercasing, punctuation removal, and whitespace collapsing.
// Two candidates denote the same work only when their keys are equal.
//
// DedupKey(DedupKey(s)) == DedupKey(s) for every s.
func DedupKey(title string) string {
	lowered := strings.ToLower(norm.NFKC.String(title))
	stripped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, lowered)
	return strings.Join(strings.Fields(stripped), " ")
}

// Package resolve implements the fuzzy event resolver: deterministic text
// normalization, alias expansion, and a multi-factor scoring function that
// ranks candidate events against a human-typed query.
package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// foldCaser is a package-level Unicode case folder; folding is
	// locale-independent, which keeps normalization deterministic.
	foldCaser = cases.Fold()

	// deaccent decomposes characters and removes combining marks so that
	// accented event names compare on their base letters.
	deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize canonicalizes text for comparison: case-fold, strip diacritics,
// drop every character outside [a-z0-9 ], collapse whitespace runs, trim.
// The same function is applied to queries, aliases, candidate names, and
// candidate keys, so all comparisons happen on one canonical alphabet.
//
// Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(s string) string {
	s = foldCaser.String(s)
	if stripped, _, err := transform.String(deaccent, s); err == nil {
		s = stripped
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case r == ' ':
			space = true
		}
		// Everything else is stripped outright, not replaced by a space.
	}
	return b.String()
}

package records

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and strips accents (NGUGĨ -> ngugi). Used for search
// matching and for the content-hash key, so spelling noise does not split
// logically identical records.
func Fold(s string) string {
	result, _, _ := transform.String(stripAccents, strings.ToLower(s))
	return result
}

// CleanText trims and collapses internal whitespace. All imported cell
// values pass through here before any further normalization.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

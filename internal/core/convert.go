package core

// convert.go provides the text clean-up shared by every source:
//   - Spreadsheet artifacts (="value" formulas, stray quotes)
//   - Case and accent folding for labels and headers
//   - The many spellings of a yes/no flag in exports
//
// All functions are pure and safe for concurrent use.

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace, including non-breaking spaces
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimFunc(s, unicode.IsSpace)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimFunc(s, unicode.IsSpace)
}

// Fold lowercases s, strips diacritics and collapses inner whitespace, so
// "  Liste  Adhérent " and "liste adherent" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// ParseFlag interprets a yes/no cell. The second result is false when the
// value is not a recognized spelling.
func ParseFlag(s string) (value bool, ok bool) {
	switch Fold(CleanCell(s)) {
	case "true", "t", "yes", "y", "1", "oui", "o", "x", "vrai", "paye", "valide":
		return true, true
	case "false", "f", "no", "n", "0", "non", "faux", "", "-":
		return false, true
	default:
		return false, false
	}
}

// Truthy reports whether s is a recognized "yes". Unknown spellings are
// treated as "no".
func Truthy(s string) bool {
	v, _ := ParseFlag(s)
	return v
}

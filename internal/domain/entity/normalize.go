package entity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are trailing tokens ignored when comparing names
var legalSuffixes = map[string]bool{
	"inc":          true,
	"incorporated": true,
	"llc":          true,
	"ltd":          true,
	"limited":      true,
	"corp":         true,
	"corporation":  true,
	"plc":          true,
	"gmbh":         true,
	"llp":          true,
	"lp":           true,
	"pty":          true,
	"pte":          true,
	"ag":           true,
	"bv":           true,
	"co":           true,
	"company":      true,
}

// Normalize folds a display name into its comparison form.
// Diacritics are stripped, case folded, periods and apostrophes dropped,
// other punctuation becomes a space, trailing legal suffixes are removed
// and whitespace is collapsed. At least one token is always kept.
func Normalize(name string) string {
	folded := foldDiacritics(name)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		switch {
		case r == '.' || r == '\'' || r == '’':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// Tokens splits a normalized name into its words
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

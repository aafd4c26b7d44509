package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds s into the comparison form used by keys and scoring:
// accents removed, lowercased, "&" spelled out, punctuation replaced by
// spaces, whitespace collapsed.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '&':
			b.WriteString(" and ")
		case r == '\'' || r == '’':
			// apostrophes join words ("don't" -> "dont")
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// CandidateKey builds the normalized key for a title/artist pair.
func CandidateKey(title, artist string) string {
	return Normalize(title) + "|" + Normalize(artist)
}

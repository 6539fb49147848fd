package matcher

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// featured artist clauses, bracketed or trailing
	featPattern = regexp.MustCompile(`(?i)[\(\[]\s*(feat\.?|featuring|ft\.?|with)\s+[^\)\]]*[\)\]]|\s+(feat\.?|featuring|ft\.)\s+.*$`)

	// (… remix …), [… version …], (… edit …) and similar alternate-take qualifiers
	qualifierPattern = regexp.MustCompile(`(?i)[\(\[][^\)\]]*\b(remix|version|edit|remaster(ed)?|live|mix)\b[^\)\]]*[\)\]]`)

	// trailing "- Remastered 2011" style suffixes used by Spotify
	dashQualifierPattern = regexp.MustCompile(`(?i)\s+-\s+[^-]*\b(remix|version|edit|remaster(ed)?|live|mix)\b.*$`)
)

// Normalize lowercases s, strips diacritics, drops featured-artist clauses and
// remix/version/edit qualifiers, turns punctuation into spaces and collapses whitespace.
func Normalize(s string) string {
	s = featPattern.ReplaceAllString(s, "")
	s = qualifierPattern.ReplaceAllString(s, "")
	s = dashQualifierPattern.ReplaceAllString(s, "")
	return cleanText(s)
}

// NormalizeArtist applies the same cleanup as [Normalize] without removing qualifiers,
// which are part of some artist names.
func NormalizeArtist(s string) string {
	return cleanText(s)
}

func cleanText(s string) string {
	s = stripMarks(strings.ToLower(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return r
		}
		if r == '\'' || r == '’' {
			return -1
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// stripMarks decomposes s (NFD) and removes combining marks, then recomposes.
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// IsArabic reports whether more than 30% of the runes in s are Arabic script.
func IsArabic(s string) bool {
	var total, arabic int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.Is(unicode.Arabic, r) {
			arabic++
		}
	}
	return total > 0 && float64(arabic) > float64(total)*0.3
}

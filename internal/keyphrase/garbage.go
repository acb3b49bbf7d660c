package keyphrase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var consonantRunPattern = regexp.MustCompile(`(?i)[bcdfghjklmnpqrstvwxz]{4,}`)

// minAlphaFraction is the share of letters a phrase needs, spaces included
const minAlphaFraction = 0.6

// IsGarbage reports whether a phrase looks like OCR noise: four or more
// consecutive consonants, too few letters, or a lone word under 3 runes.
func IsGarbage(phrase string) bool {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return true
	}

	if consonantRunPattern.MatchString(phrase) {
		return true
	}

	letters, total := 0, 0
	for _, r := range phrase {
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 || float64(letters)/float64(total) < minAlphaFraction {
		return true
	}

	words := strings.Fields(phrase)
	if len(words) == 1 && utf8.RuneCountInString(words[0]) < 3 {
		return true
	}

	return false
}

// overlapsAny reports whether candidate contains, or is contained in,
// any accepted phrase.
func overlapsAny(accepted []string, candidate string) bool {
	for _, a := range accepted {
		if strings.Contains(a, candidate) || strings.Contains(candidate, a) {
			return true
		}
	}
	return false
}

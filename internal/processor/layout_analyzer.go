/**
 * Layout Analyzer for ad creatives
 *
 * Splits link-colored lines into a leading headline region and a trailing
 * sitelinks region. Sitelinks are short labels that never precede the
 * headline, so there is a single transition point.
 */

package processor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// single-line creatives need a headline prefix longer than this
	minInlineHeadlineLen = 15
	maxSitelinkLineLen   = 30
	maxSitelinkLen       = 40
	maxSitelinkWords     = 5
	minSitelinkLen       = 3
)

// lineSeparators mark a sitelink row; sitelinkSeparators split one
const (
	lineSeparators     = "·•"
	sitelinkSeparators = "·•|"
)

// LayoutClassifier assigns link-colored lines to headline or sitelinks
type LayoutClassifier struct{}

// NewLayoutClassifier creates a layout classifier
func NewLayoutClassifier() *LayoutClassifier {
	return &LayoutClassifier{}
}

// Split returns the headline lines and the raw sitelink lines
func (l *LayoutClassifier) Split(lines []string) (headline, sitelinks []string) {
	headline = []string{}
	sitelinks = []string{}

	switch len(lines) {
	case 0:
		return headline, sitelinks
	case 1:
		line := lines[0]
		if i := strings.IndexAny(line, lineSeparators); i >= 0 {
			prefix := strings.TrimSpace(line[:i])
			if utf8.RuneCountInString(prefix) > minInlineHeadlineLen {
				headline = append(headline, prefix)
				_, size := utf8.DecodeRuneInString(line[i:])
				if rest := strings.TrimSpace(line[i+size:]); rest != "" {
					sitelinks = append(sitelinks, rest)
				}
				return headline, sitelinks
			}
		}
		return append(headline, line), sitelinks
	}

	inSitelinks := false
	for _, line := range lines {
		if !inSitelinks {
			switch {
			case hasLineSeparator(line):
				inSitelinks = true
			case len(headline) > 0 &&
				utf8.RuneCountInString(strings.TrimSpace(line)) < maxSitelinkLineLen &&
				looksLikeSitelink(line):
				inSitelinks = true
			}
		}

		if inSitelinks {
			sitelinks = append(sitelinks, line)
		} else {
			headline = append(headline, line)
		}
	}
	return headline, sitelinks
}

// SplitSitelinks breaks sitelink lines into individual labels
func (l *LayoutClassifier) SplitSitelinks(lines []string) []string {
	var out []string
	for _, line := range lines {
		parts := strings.FieldsFunc(line, func(r rune) bool {
			return strings.ContainsRune(sitelinkSeparators, r)
		})
		for _, p := range parts {
			p = trimSitelink(p)
			if utf8.RuneCountInString(p) < minSitelinkLen {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

func hasLineSeparator(line string) bool {
	return strings.ContainsAny(line, lineSeparators)
}

// looksLikeSitelink accepts short labelled phrases of 1-5 words
func looksLikeSitelink(line string) bool {
	line = strings.TrimSpace(line)
	words := len(strings.Fields(line))
	return words >= 1 && words <= maxSitelinkWords && utf8.RuneCountInString(line) < maxSitelinkLen
}

// trimSitelink strips surrounding whitespace and punctuation, keeping
// apostrophes so possessives like "Kids'" survive
func trimSitelink(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		if r == '\'' || r == '’' {
			return false
		}
		return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

package keyphrase

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxCleanPasses bounds the fixed-point loop in Clean. Later passes can
// expose new matches for earlier ones ("x....com" collapses to "x.com"),
// so the pass sequence repeats until the text stops changing.
const maxCleanPasses = 8

var (
	urlPattern = regexp.MustCompile(`(?i)https?://\S+|www\.\S+|[a-z0-9][-a-z0-9]*\.[a-z]{2,}(?:/\S*)?`)

	// ratings "4.8 (1,204)", phone-shaped groups, bare numbers
	numberPattern = regexp.MustCompile(`\b\d+\.?\d*\s*\([^)]*\)|\b\d{3,}[-.\s]?\d{3,}[-.\s]?\d{4}\b|\b\d+\.?\d*\b`)

	// tokens tesseract produces from logos and badge edges
	ocrGarbagePattern = regexp.MustCompile(`(?i)\b(?:gor|saree|oes|bees|sa|ston|bs|ex|il)\b`)

	ctaPattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join([]string{
		`try (?:it|them|now)`,
		`learn more`,
		`sign up`,
		`get started`,
		`click here`,
		`buy now`,
		`shop now`,
		`order now`,
		`free trial`,
		`download now`,
		`start now`,
		`view more`,
		`see more`,
		`find out`,
		`read more`,
		`call now`,
		`book now`,
		`apply now`,
		`get a quote`,
		`free`,
	}, "|") + `)\b`)

	symbolPattern     = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s.,!?;:'"-]`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// sponsoredLabels are ad-platform disclosure labels, lower-cased
var sponsoredLabels = map[string]struct{}{
	"sponsored":     {},
	"sponsorisé":    {},
	"sponsorise":    {},
	"gesponsert":    {},
	"patrocinado":   {},
	"patrocinada":   {},
	"sponsorizzato": {},
	"gesponsord":    {},
	"sponsorowane":  {},
	"sponsrad":      {},
	"реклама":       {},
	"ad":            {},
	"ads":           {},
	"anzeige":       {},
	"annonce":       {},
	"anuncio":       {},
	"annuncio":      {},
	"広告":            {},
	"광고":            {},
	"赞助":            {},
}

// Cleaner strips URLs, numbers, platform boilerplate and OCR artifacts
// from ad copy while keeping sentence punctuation.
type Cleaner struct{}

// NewCleaner creates a cleaner
func NewCleaner() *Cleaner {
	return &Cleaner{}
}

// Clean runs every pass until the output is stable. Empty input yields "".
func (c *Cleaner) Clean(text string) string {
	current := text
	for i := 0; i < maxCleanPasses; i++ {
		next := c.cleanOnce(current)
		if next == current {
			return next
		}
		current = next
	}
	return current
}

// CleanLine cleans a single line and reports whether anything survived
func (c *Cleaner) CleanLine(text string) (string, bool) {
	cleaned := c.Clean(text)
	return cleaned, cleaned != ""
}

func (c *Cleaner) cleanOnce(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	text = urlPattern.ReplaceAllString(text, " ")
	text = numberPattern.ReplaceAllString(text, " ")
	text = ocrGarbagePattern.ReplaceAllString(text, " ")
	text = ctaPattern.ReplaceAllString(text, " ")
	text = removeSponsoredLines(text)
	text = symbolPattern.ReplaceAllString(text, " ")
	text = collapseRepeats(text, 4)
	return collapseTokens(text)
}

func removeSponsoredLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if IsSponsoredLabel(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// IsSponsoredLabel reports whether a line holds only a disclosure label
// such as "Sponsored" or "Gesponsert"
func IsSponsoredLabel(line string) bool {
	key := strings.ToLower(strings.Trim(line, " \t\r·•|:-.,"))
	_, ok := sponsoredLabels[key]
	return ok
}

// collapseRepeats replaces any rune repeated minRun or more times in a
// row with a single occurrence.
func collapseRepeats(text string, minRun int) string {
	var b strings.Builder
	b.Grow(len(text))

	runes := []rune(text)
	for i := 0; i < len(runes); {
		j := i + 1
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		if j-i >= minRun {
			b.WriteRune(runes[i])
		} else {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}

// collapseTokens normalizes whitespace and drops one-rune tokens other
// than the words "a" and "i".
func collapseTokens(text string) string {
	text = whitespacePattern.ReplaceAllString(text, " ")
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) == 1 {
			lower := strings.ToLower(f)
			if lower != "a" && lower != "i" {
				continue
			}
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

package keyphrase

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultMaxPhrases caps phrases per segment and per ad
const DefaultMaxPhrases = 5

const (
	minSegmentLength  = 5
	minSentenceLength = 5
	minPhraseLength   = 3
	maxPhraseWords    = 5
)

var sentenceSplitPattern = regexp.MustCompile(`[.!?;]+\s+|\s*[~\-–—]\s+|\n+`)

// ExtractorConfig holds keyphrase extraction parameters
type ExtractorConfig struct {
	Language       string
	MaxNGramSize   int
	DedupThreshold float64
	MaxPhrases     int
}

// Extractor reduces ad text segments to a few representative keyphrases
type Extractor struct {
	cleaner    *Cleaner
	scorer     *Scorer
	maxPhrases int
}

// NewExtractor creates an extractor. The scorer keeps twice as many
// candidates as MaxPhrases so filtering still leaves enough.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.MaxNGramSize <= 0 {
		cfg.MaxNGramSize = 3
	}
	if cfg.MaxNGramSize > maxPhraseWords {
		cfg.MaxNGramSize = maxPhraseWords
	}
	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = 0.7
	}
	if cfg.MaxPhrases <= 0 {
		cfg.MaxPhrases = DefaultMaxPhrases
	}

	return &Extractor{
		cleaner: NewCleaner(),
		scorer: NewScorer(ScorerConfig{
			Language:       cfg.Language,
			MaxNGramSize:   cfg.MaxNGramSize,
			DedupThreshold: cfg.DedupThreshold,
			Top:            cfg.MaxPhrases * 2,
		}),
		maxPhrases: cfg.MaxPhrases,
	}
}

// Cleaner exposes the segment cleaner used by the extractor
func (e *Extractor) Cleaner() *Cleaner {
	return e.cleaner
}

// ExtractSegment returns up to MaxPhrases lower-cased phrases in rank order
func (e *Extractor) ExtractSegment(text string) []string {
	cleaned := e.cleaner.Clean(text)
	if utf8.RuneCountInString(cleaned) < minSegmentLength {
		return nil
	}

	var pooled []ScoredPhrase
	for _, sentence := range splitSentences(cleaned) {
		if len(strings.Fields(sentence)) < 2 {
			continue
		}
		pooled = append(pooled, e.scorer.Extract(sentence)...)
	}
	sort.SliceStable(pooled, func(i, j int) bool { return pooled[i].Score < pooled[j].Score })

	var accepted []string
	for _, candidate := range pooled {
		if len(accepted) >= e.maxPhrases {
			break
		}
		phrase := strings.ToLower(strings.TrimSpace(candidate.Phrase))
		if !acceptablePhrase(phrase) || overlapsAny(accepted, phrase) {
			continue
		}
		accepted = append(accepted, phrase)
	}
	return accepted
}

// ExtractFromAd walks headline, description and sitelinks in that order,
// deduplicating across them. The raw text is used only when all three
// produce nothing.
func (e *Extractor) ExtractFromAd(headline, description, rawText string, sitelinks []string) []string {
	var phrases []string
	add := func(candidates []string) {
		for _, c := range candidates {
			if len(phrases) >= e.maxPhrases {
				return
			}
			if overlapsAny(phrases, c) {
				continue
			}
			phrases = append(phrases, c)
		}
	}

	if strings.TrimSpace(headline) != "" {
		add(e.ExtractSegment(headline))
	}
	if strings.TrimSpace(description) != "" {
		add(e.ExtractSegment(description))
	}
	for _, link := range sitelinks {
		cleaned := strings.ToLower(e.cleaner.Clean(link))
		if utf8.RuneCountInString(cleaned) >= minPhraseLength && !IsGarbage(cleaned) {
			add([]string{cleaned})
		}
	}

	if len(phrases) == 0 && strings.TrimSpace(rawText) != "" {
		add(e.ExtractSegment(rawText))
	}

	if len(phrases) > e.maxPhrases {
		phrases = phrases[:e.maxPhrases]
	}
	return phrases
}

func splitSentences(text string) []string {
	var sentences []string
	for _, part := range sentenceSplitPattern.Split(text, -1) {
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) >= minSentenceLength {
			sentences = append(sentences, part)
		}
	}
	if len(sentences) == 0 {
		return []string{text}
	}
	return sentences
}

func acceptablePhrase(phrase string) bool {
	words := len(strings.Fields(phrase))
	if words < 1 || words > maxPhraseWords {
		return false
	}
	if utf8.RuneCountInString(phrase) < minPhraseLength {
		return false
	}
	return !IsGarbage(phrase)
}

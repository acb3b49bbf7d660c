package keyphrase

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

/**
 * Statistical keyphrase scorer (YAKE)
 *
 * Unsupervised, single-document scoring from term casing, position,
 * frequency, context diversity and sentence spread. Candidates are
 * n-grams that neither start nor end with a stopword. Lower is better.
 */

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var (
	scorerSentencePattern = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)
	scorerTokenPattern    = regexp.MustCompile(`[\p{L}\p{M}\p{N}]+(?:['’\-][\p{L}\p{M}\p{N}]+)*|[^\s\p{L}\p{M}\p{N}]`)
)

// Token tags
const (
	tagDigit   = 'd'
	tagUnusual = 'u'
	tagAcronym = 'a'
	tagProper  = 'n'
	tagPlain   = 'p'
)

// ScoredPhrase is a candidate keyphrase and its score
type ScoredPhrase struct {
	Phrase string
	Score  float64
}

// ScorerConfig holds scorer parameters
type ScorerConfig struct {
	Language       string
	MaxNGramSize   int
	DedupThreshold float64
	Top            int
	WindowSize     int
}

// Scorer ranks keyphrase candidates of a single text
type Scorer struct {
	maxNGram       int
	dedupThreshold float64
	top            int
	window         int
	stopwords      map[string]struct{}
}

// NewScorer creates a scorer; zero values fall back to n=3, dedup 0.7, top 20, window 1
func NewScorer(cfg ScorerConfig) *Scorer {
	if cfg.MaxNGramSize <= 0 {
		cfg.MaxNGramSize = 3
	}
	if cfg.DedupThreshold <= 0 {
		cfg.DedupThreshold = 0.7
	}
	if cfg.Top <= 0 {
		cfg.Top = 20
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 1
	}
	return &Scorer{
		maxNGram:       cfg.MaxNGramSize,
		dedupThreshold: cfg.DedupThreshold,
		top:            cfg.Top,
		window:         cfg.WindowSize,
		stopwords:      stopwordsFor(cfg.Language),
	}
}

type scorerTerm struct {
	id        int
	key       string
	tf        float64
	tfAcronym float64
	tfProper  float64
	sentences map[int]struct{}
	stopword  bool
	left      map[int]float64 // incoming co-occurrence edges, neighbour id -> count
	right     map[int]float64 // outgoing co-occurrence edges
	h         float64
}

type scorerToken struct {
	tag     byte
	surface string
	term    *scorerTerm
}

type scorerCandidate struct {
	key     string
	surface string
	terms   []*scorerTerm
	tagSets map[string]struct{}
	tf      float64
	h       float64
}

type scorerDoc struct {
	scorer     *Scorer
	terms      map[string]*scorerTerm
	termOrder  []*scorerTerm
	candidates map[string]*scorerCandidate
	candOrder  []*scorerCandidate
	sentences  int
}

// Extract returns up to Top phrases ordered by ascending score
func (s *Scorer) Extract(text string) []ScoredPhrase {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	doc := s.build(text)
	if !doc.scoreTerms() {
		return nil
	}
	return s.deduplicate(doc.scoreCandidates())
}

func (s *Scorer) build(text string) *scorerDoc {
	doc := &scorerDoc{
		scorer:     s,
		terms:      make(map[string]*scorerTerm),
		candidates: make(map[string]*scorerCandidate),
	}

	for _, sentence := range scorerSentencePattern.Split(text, -1) {
		tokens := scorerTokenPattern.FindAllString(sentence, -1)
		if len(tokens) == 0 {
			continue
		}
		sentenceID := doc.sentences
		doc.sentences++

		var block []scorerToken
		for pos, word := range tokens {
			if isPunctuationToken(word) {
				block = nil
				continue
			}

			tag := tagOf(word, pos)
			term := doc.term(word)
			term.addOccurrence(tag, sentenceID)

			if tag != tagUnusual && tag != tagDigit && !term.stopword {
				start := len(block) - s.window
				if start < 0 {
					start = 0
				}
				for _, prev := range block[start:] {
					if prev.tag != tagUnusual && prev.tag != tagDigit && !prev.term.stopword {
						addCooccurrence(prev.term, term)
					}
				}
			}

			current := scorerToken{tag: tag, surface: word, term: term}
			candidate := []scorerToken{current}
			doc.addCandidate(candidate)
			for w := len(block) - 1; w >= 0 && len(candidate) < s.maxNGram; w-- {
				candidate = append([]scorerToken{block[w]}, candidate...)
				doc.addCandidate(candidate)
			}
			block = append(block, current)
		}
	}

	return doc
}

func (d *scorerDoc) term(word string) *scorerTerm {
	key := strings.ToLower(word)
	_, plainStopword := d.scorer.stopwords[key]
	if strings.HasSuffix(key, "s") && utf8.RuneCountInString(key) > 3 {
		key = key[:len(key)-1]
	}
	if t, ok := d.terms[key]; ok {
		return t
	}

	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, key)
	_, stopword := d.scorer.stopwords[key]

	t := &scorerTerm{
		id:        len(d.termOrder),
		key:       key,
		sentences: make(map[int]struct{}),
		stopword:  plainStopword || stopword || utf8.RuneCountInString(stripped) < 3,
		left:      make(map[int]float64),
		right:     make(map[int]float64),
	}
	d.terms[key] = t
	d.termOrder = append(d.termOrder, t)
	return t
}

func (t *scorerTerm) addOccurrence(tag byte, sentenceID int) {
	t.tf++
	switch tag {
	case tagAcronym:
		t.tfAcronym++
	case tagProper:
		t.tfProper++
	}
	t.sentences[sentenceID] = struct{}{}
}

func addCooccurrence(left, right *scorerTerm) {
	left.right[right.id]++
	right.left[left.id]++
}

func (d *scorerDoc) addCandidate(tokens []scorerToken) {
	words := make([]string, len(tokens))
	tags := make([]byte, len(tokens))
	terms := make([]*scorerTerm, len(tokens))
	for i, tok := range tokens {
		words[i] = tok.surface
		tags[i] = tok.tag
		terms[i] = tok.term
	}

	surface := strings.Join(words, " ")
	key := strings.ToLower(surface)
	c, ok := d.candidates[key]
	if !ok {
		c = &scorerCandidate{
			key:     key,
			surface: surface,
			terms:   terms,
			tagSets: make(map[string]struct{}),
		}
		d.candidates[key] = c
		d.candOrder = append(d.candOrder, c)
	}
	c.tf++
	c.tagSets[string(tags)] = struct{}{}
}

// scoreTerms computes the per-term weight. It reports false when the text
// holds no scorable term.
func (d *scorerDoc) scoreTerms() bool {
	var validTFs []float64
	maxTF := 0.0
	for _, t := range d.termOrder {
		if !t.stopword {
			validTFs = append(validTFs, t.tf)
		}
		maxTF = math.Max(maxTF, t.tf)
	}
	if len(validTFs) == 0 {
		return false
	}

	avgTF, stdTF := meanStd(validTFs)
	for _, t := range d.termOrder {
		t.updateH(maxTF, avgTF, stdTF, d.sentences)
	}
	return true
}

func (t *scorerTerm) updateH(maxTF, avgTF, stdTF float64, sentences int) {
	relevance := (0.5 + edgeRatio(t.left)*(t.tf/maxTF)) + (0.5 + edgeRatio(t.right)*(t.tf/maxTF))
	frequency := t.tf / (avgTF + stdTF)
	spread := float64(len(t.sentences)) / float64(sentences)
	casing := math.Max(t.tfAcronym, t.tfProper) / (1 + math.Log(t.tf))
	position := math.Log(math.Log(3 + medianSentence(t.sentences)))

	t.h = (position * relevance) / (casing + frequency/relevance + spread/relevance)
}

func (d *scorerDoc) scoreCandidates() []*scorerCandidate {
	scored := make([]*scorerCandidate, 0, len(d.candOrder))
	for _, c := range d.candOrder {
		if !c.valid() {
			continue
		}

		sumH, prodH := 0.0, 1.0
		for i, t := range c.terms {
			if !t.stopword {
				sumH += t.h
				prodH *= t.h
				continue
			}
			// stopwords inside a phrase weigh by how strongly they bind neighbours
			before, after := 0.0, 0.0
			if i > 0 {
				prev := c.terms[i-1]
				before = prev.right[t.id] / prev.tf
			}
			if i < len(c.terms)-1 {
				next := c.terms[i+1]
				after = t.right[next.id] / next.tf
			}
			prob := before * after
			prodH *= 1 + (1 - prob)
			sumH -= 1 - prob
		}

		denom := (sumH + 1) * c.tf
		if denom <= 0 {
			continue
		}
		c.h = prodH / denom
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].h < scored[j].h })
	return scored
}

func (c *scorerCandidate) valid() bool {
	if c.terms[0].stopword || c.terms[len(c.terms)-1].stopword {
		return false
	}
	for tags := range c.tagSets {
		if !strings.ContainsAny(tags, "ud") {
			return true
		}
	}
	return false
}

func (s *Scorer) deduplicate(candidates []*scorerCandidate) []ScoredPhrase {
	result := make([]ScoredPhrase, 0, s.top)
	var kept []string
	for _, c := range candidates {
		duplicate := false
		if s.dedupThreshold < 1 {
			for _, k := range kept {
				if similarity(c.key, k) > s.dedupThreshold {
					duplicate = true
					break
				}
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, c.key)
		result = append(result, ScoredPhrase{Phrase: c.surface, Score: c.h})
		if len(result) == s.top {
			break
		}
	}
	return result
}

func tagOf(word string, pos int) byte {
	if _, err := strconv.ParseFloat(strings.ReplaceAll(word, ",", ""), 64); err == nil {
		return tagDigit
	}

	digits, letters, punct, upper, total := 0, 0, 0, 0, 0
	for _, r := range word {
		total++
		switch {
		case unicode.IsDigit(r):
			digits++
		case unicode.IsLetter(r):
			letters++
		}
		if strings.ContainsRune(asciiPunctuation, r) {
			punct++
		}
		if unicode.IsUpper(r) {
			upper++
		}
	}

	if (digits > 0 && letters > 0) || (digits == 0 && letters == 0) || punct > 1 {
		return tagUnusual
	}
	if upper == total {
		return tagAcronym
	}
	first, _ := utf8.DecodeRuneInString(word)
	if unicode.IsUpper(first) && pos > 0 {
		return tagProper
	}
	return tagPlain
}

func isPunctuationToken(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
			return false
		}
	}
	return true
}

func edgeRatio(edges map[int]float64) float64 {
	if len(edges) == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range edges {
		sum += w
	}
	if sum == 0 {
		return 0
	}
	return float64(len(edges)) / sum
}

func meanStd(values []float64) (float64, float64) {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func medianSentence(sentences map[int]struct{}) float64 {
	ids := make([]int, 0, len(sentences))
	for id := range sentences {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	n := len(ids)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(ids[n/2])
	}
	return float64(ids[n/2-1]+ids[n/2]) / 2
}

// similarity is 1 - levenshtein/maxlen over runes
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

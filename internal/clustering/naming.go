package clustering

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	rankedWordLimit     = 20
	secondWordRatio     = 0.6
	fallbackClusterName = "misc"
)

var topicWordPattern = regexp.MustCompile(`\p{L}+(?:'\p{L}+)*`)

// topicStopwords are function words plus words every ad repeats
var topicStopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the a an and or but in on at to for of with by is are was were be been being
		have has had do does did will would could should may might must shall can need
		dare ought used it its this that these those i you he she we they what which who
		whom whose where when why how all each every both few more most other some such
		no nor not only own same so than too very just your our my his her their from up
		out off over under again further then once here there about above below between
		free best top new get try now find learn start online today help take see also
		many make know like way`) {
		topicStopwords[w] = struct{}{}
	}
}

var titleCaser = cases.Title(language.English)

type wordCount struct {
	word  string
	count int
}

// rankedTopicWords counts lower-cased words across phrases, keeps the 20
// most frequent (ties by first occurrence), then drops stopwords and
// words of two runes or fewer.
func rankedTopicWords(phrases []string) []wordCount {
	index := make(map[string]int)
	var counts []wordCount
	for _, p := range phrases {
		for _, w := range topicWordPattern.FindAllString(strings.ToLower(p), -1) {
			if i, ok := index[w]; ok {
				counts[i].count++
				continue
			}
			index[w] = len(counts)
			counts = append(counts, wordCount{word: w, count: 1})
		}
	}

	sort.SliceStable(counts, func(i, j int) bool { return counts[i].count > counts[j].count })
	if len(counts) > rankedWordLimit {
		counts = counts[:rankedWordLimit]
	}

	kept := counts[:0]
	for _, wc := range counts {
		if _, stop := topicStopwords[wc.word]; stop || utf8.RuneCountInString(wc.word) <= 2 {
			continue
		}
		kept = append(kept, wc)
	}
	return kept
}

// mostCommonPhrase returns the most frequent phrase. Ties go to the phrase
// that appears first.
func mostCommonPhrase(phrases []string) string {
	counts := make(map[string]int, len(phrases))
	for _, p := range phrases {
		counts[p]++
	}

	best, bestCount := "", 0
	for _, p := range phrases {
		if counts[p] > bestCount {
			best, bestCount = p, counts[p]
		}
	}
	return best
}

// dominantKeyword is the merge key for a cluster
func dominantKeyword(phrases []string) string {
	if words := rankedTopicWords(phrases); len(words) > 0 {
		return words[0].word
	}
	if p := mostCommonPhrase(phrases); p != "" {
		return strings.ToLower(p)
	}
	return fallbackClusterName
}

// nameCluster builds a one or two word title from the dominant words
func nameCluster(phrases []string) string {
	words := rankedTopicWords(phrases)
	if len(words) == 0 {
		if p := mostCommonPhrase(phrases); p != "" {
			return titleCaser.String(p)
		}
		return titleCaser.String(fallbackClusterName)
	}

	name := words[0].word
	if len(words) > 1 {
		top, second := words[0], words[1]
		if float64(second.count) >= secondWordRatio*float64(top.count) &&
			!strings.Contains(top.word, second.word) &&
			!strings.Contains(second.word, top.word) {
			name += " " + second.word
		}
	}
	return titleCaser.String(name)
}

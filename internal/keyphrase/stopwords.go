package keyphrase

import "strings"

// englishStopwords is also the fallback for languages without a list
var englishStopwords = toSet([]string{
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and", "any",
	"are", "aren't", "as", "at", "be", "because", "been", "before", "being", "below", "between",
	"both", "but", "by", "can", "can't", "cannot", "could", "couldn't", "did", "didn't", "do",
	"does", "doesn't", "doing", "don't", "down", "during", "each", "either", "else", "ever",
	"every", "few", "for", "from", "further", "get", "gets", "got", "had", "hadn't", "has",
	"hasn't", "have", "haven't", "having", "he", "he'd", "he'll", "he's", "her", "here",
	"here's", "hers", "herself", "him", "himself", "his", "how", "how's", "however", "i",
	"i'd", "i'll", "i'm", "i've", "if", "in", "into", "is", "isn't", "it", "it's", "its",
	"itself", "just", "let's", "may", "me", "might", "more", "most", "much", "must",
	"mustn't", "my", "myself", "neither", "no", "nor", "not", "of", "off", "on", "once",
	"only", "or", "other", "ought", "our", "ours", "ourselves", "out", "over", "own", "per",
	"same", "shall", "shan't", "she", "she'd", "she'll", "she's", "should", "shouldn't", "so",
	"some", "such", "than", "that", "that's", "the", "their", "theirs", "them", "themselves",
	"then", "there", "there's", "these", "they", "they'd", "they'll", "they're", "they've",
	"this", "those", "though", "through", "thus", "to", "too", "under", "until", "up", "upon",
	"us", "very", "via", "was", "wasn't", "we", "we'd", "we'll", "we're", "we've", "were",
	"weren't", "what", "what's", "when", "when's", "where", "where's", "whether", "which",
	"while", "who", "who's", "whom", "whose", "why", "why's", "will", "with", "within",
	"without", "won't", "would", "wouldn't", "yet", "you", "you'd", "you'll", "you're",
	"you've", "your", "yours", "yourself", "yourselves",
})

var spanishStopwords = toSet([]string{
	"a", "al", "algo", "ante", "con", "como", "contra", "cual", "cuando", "de", "del", "desde",
	"donde", "durante", "e", "el", "ella", "ellos", "en", "entre", "era", "es", "esa", "ese",
	"esta", "este", "esto", "fue", "ha", "hay", "hasta", "la", "las", "le", "les", "lo", "los",
	"mas", "más", "me", "mi", "mis", "muy", "ni", "no", "nos", "o", "para", "pero", "por",
	"porque", "que", "qué", "se", "sea", "ser", "si", "sí", "sin", "sobre", "son", "su", "sus",
	"también", "te", "tu", "tus", "un", "una", "uno", "unos", "unas", "y", "ya", "yo",
})

var frenchStopwords = toSet([]string{
	"a", "à", "au", "aux", "avec", "ce", "ces", "cette", "dans", "de", "des", "du", "elle",
	"en", "est", "et", "eux", "il", "ils", "je", "la", "le", "les", "leur", "lui", "ma", "mais",
	"me", "mes", "moi", "mon", "ne", "nos", "notre", "nous", "on", "ou", "où", "par", "pas",
	"pour", "qu", "que", "qui", "sa", "se", "ses", "son", "sont", "sur", "ta", "te", "tes",
	"toi", "ton", "tu", "un", "une", "vos", "votre", "vous", "y",
})

var germanStopwords = toSet([]string{
	"aber", "alle", "als", "am", "an", "auch", "auf", "aus", "bei", "bin", "bis", "das", "dass",
	"dem", "den", "der", "des", "die", "dich", "dir", "du", "ein", "eine", "einem", "einen",
	"einer", "es", "für", "hat", "ich", "ihr", "ihre", "im", "in", "ist", "ja", "jetzt", "mit",
	"nach", "nicht", "noch", "nur", "oder", "sich", "sie", "sind", "so", "um", "und", "uns",
	"unser", "unsere", "vom", "von", "vor", "war", "was", "wie", "wir", "zu", "zum", "zur",
})

var italianStopwords = toSet([]string{
	"a", "ad", "al", "alla", "anche", "che", "chi", "con", "da", "dal", "dalla", "dei", "del",
	"della", "di", "e", "è", "gli", "i", "il", "in", "la", "le", "lo", "ma", "mi", "nei", "nel",
	"nella", "non", "o", "per", "più", "quella", "questo", "se", "si", "su", "sua", "suo",
	"sul", "sulla", "ti", "tra", "tu", "un", "una", "uno",
})

var portugueseStopwords = toSet([]string{
	"a", "ao", "aos", "as", "com", "como", "da", "das", "de", "do", "dos", "e", "é", "ela",
	"ele", "em", "entre", "essa", "esse", "esta", "este", "eu", "isso", "já", "mais", "mas",
	"me", "muito", "na", "nas", "não", "no", "nos", "o", "os", "ou", "para", "pela", "pelo",
	"por", "que", "se", "sem", "seu", "sua", "também", "um", "uma", "você",
})

var dutchStopwords = toSet([]string{
	"aan", "al", "als", "bij", "dan", "dat", "de", "die", "dit", "door", "een", "en", "er",
	"het", "hij", "ik", "in", "is", "je", "jij", "maar", "met", "na", "naar", "niet", "nog",
	"of", "om", "onze", "ook", "op", "over", "te", "tot", "u", "uit", "uw", "van", "voor",
	"was", "wat", "we", "wij", "zijn", "zo",
})

// stopwordsByLanguage is keyed by ISO 639-1 code
var stopwordsByLanguage = map[string]map[string]struct{}{
	"en": englishStopwords,
	"es": spanishStopwords,
	"fr": frenchStopwords,
	"de": germanStopwords,
	"it": italianStopwords,
	"pt": portugueseStopwords,
	"nl": dutchStopwords,
}

// stopwordsFor returns the list for a language code such as "de" or
// "pt-BR". Languages without a list use English.
func stopwordsFor(language string) map[string]struct{} {
	code := strings.ToLower(strings.TrimSpace(language))
	if i := strings.IndexAny(code, "-_"); i >= 0 {
		code = code[:i]
	}
	if words, ok := stopwordsByLanguage[code]; ok {
		return words
	}
	return englishStopwords
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

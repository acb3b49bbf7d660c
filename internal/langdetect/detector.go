/**
 * Language enrichment for extracted ad text
 *
 * Wraps lingua-go restricted to the languages ad copy is mined in.
 */

package langdetect

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pemistahl/lingua-go"
)

// MinTextLength is the shortest text a language is guessed for
const MinTextLength = 10

// Language is a detectable language
type Language struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

var supported = map[lingua.Language]Language{
	lingua.English:    {"en", "English"},
	lingua.Spanish:    {"es", "Spanish"},
	lingua.French:     {"fr", "French"},
	lingua.German:     {"de", "German"},
	lingua.Italian:    {"it", "Italian"},
	lingua.Portuguese: {"pt", "Portuguese"},
	lingua.Dutch:      {"nl", "Dutch"},
	lingua.Polish:     {"pl", "Polish"},
	lingua.Russian:    {"ru", "Russian"},
	lingua.Japanese:   {"ja", "Japanese"},
	lingua.Korean:     {"ko", "Korean"},
	lingua.Chinese:    {"zh", "Chinese"},
	lingua.Arabic:     {"ar", "Arabic"},
	lingua.Turkish:    {"tr", "Turkish"},
	lingua.Swedish:    {"sv", "Swedish"},
	lingua.Bokmal:     {"no", "Norwegian"},
	lingua.Danish:     {"da", "Danish"},
	lingua.Finnish:    {"fi", "Finnish"},
	lingua.Czech:      {"cs", "Czech"},
	lingua.Ukrainian:  {"uk", "Ukrainian"},
	lingua.Greek:      {"el", "Greek"},
	lingua.Hebrew:     {"he", "Hebrew"},
	lingua.Thai:       {"th", "Thai"},
	lingua.Vietnamese: {"vi", "Vietnamese"},
	lingua.Indonesian: {"id", "Indonesian"},
	lingua.Malay:      {"ms", "Malay"},
	lingua.Hindi:      {"hi", "Hindi"},
	lingua.Bengali:    {"bn", "Bengali"},
	lingua.Romanian:   {"ro", "Romanian"},
	lingua.Hungarian:  {"hu", "Hungarian"},
	lingua.Slovak:     {"sk", "Slovak"},
	lingua.Bulgarian:  {"bg", "Bulgarian"},
	lingua.Croatian:   {"hr", "Croatian"},
	lingua.Serbian:    {"sr", "Serbian"},
	lingua.Slovene:    {"sl", "Slovenian"},
	lingua.Lithuanian: {"lt", "Lithuanian"},
	lingua.Latvian:    {"lv", "Latvian"},
	lingua.Estonian:   {"et", "Estonian"},
}

// Detector guesses the language of short ad texts
type Detector struct {
	detector lingua.LanguageDetector
}

// NewDetector builds a detector over the supported languages. Language
// models load lazily on first use.
func NewDetector() *Detector {
	languages := make([]lingua.Language, 0, len(supported))
	for l := range supported {
		languages = append(languages, l)
	}

	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build(),
	}
}

// Detect returns an ISO 639-1 code, or "" when the text is too short or
// no language is reliable
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinTextLength {
		return ""
	}

	lang, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	if l, known := supported[lang]; known {
		return l.Code
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}

// IsLanguage reports whether text is detected as the given language
func (d *Detector) IsLanguage(text, code string) bool {
	detected := d.Detect(text)
	if detected == "" {
		return false
	}
	return Matches(detected, code)
}

// Matches compares a detected code against a requested one. Chinese
// variants such as zh-cn and zh-tw all match zh.
func Matches(detected, want string) bool {
	detected = strings.ToLower(detected)
	want = strings.ToLower(want)
	if strings.HasPrefix(want, "zh") {
		return strings.HasPrefix(detected, "zh")
	}
	return detected == want
}

// SupportedLanguages lists detectable languages sorted by name
func SupportedLanguages() []Language {
	out := make([]Language, 0, len(supported))
	for _, l := range supported {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

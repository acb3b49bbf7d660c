package keyphrase

import (
	"strings"
	"testing"
	"unicode/utf8"
)

var segmentSamples = []string{
	"Anger management classes online. Learn to control anger and stress with certified coaches!",
	"Call us at 555-123-4567 or visit www.example.com today! Free shipping.",
	"Best Hiking Boots 2024 - waterproof leather boots for men and women",
	"Lose weight fast with our proven weight loss program; join thousands of happy members",
	"Organic coffee beans roasted fresh daily in small batches",
	"Sponsored\nCheap flights to Lisbon and Porto. Compare airline prices in seconds",
	"",
	"ok",
}

func TestExtractSegmentProperties(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})

	for _, sample := range segmentSamples {
		phrases := e.ExtractSegment(sample)

		if len(phrases) > DefaultMaxPhrases {
			t.Errorf("%q: %d phrases, want <= %d", sample, len(phrases), DefaultMaxPhrases)
		}
		for _, p := range phrases {
			words := len(strings.Fields(p))
			if words < 1 || words > 5 {
				t.Errorf("%q: phrase %q has %d words", sample, p, words)
			}
			if utf8.RuneCountInString(p) < 3 {
				t.Errorf("%q: phrase %q shorter than 3", sample, p)
			}
			if p != strings.ToLower(p) {
				t.Errorf("%q: phrase %q not lower-cased", sample, p)
			}
		}
		assertNoContainment(t, sample, phrases)
	}
}

func TestExtractSegmentDescriptionScenario(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})

	phrases := e.ExtractSegment("Call us at 555-123-4567 or visit www.example.com today! Free shipping.")
	for _, p := range phrases {
		if strings.Contains(p, "free") {
			t.Errorf("phrase %q carries the word free", p)
		}
		if strings.Contains(p, "555") || strings.Contains(p, "example") {
			t.Errorf("phrase %q carries removed noise", p)
		}
	}
}

func TestExtractSegmentRejectsShortText(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})

	if got := e.ExtractSegment("Hi 123"); got != nil {
		t.Errorf("ExtractSegment short text = %v, want nil", got)
	}
	if got := e.ExtractSegment("www.example.com"); got != nil {
		t.Errorf("ExtractSegment url-only text = %v, want nil", got)
	}
}

func TestExtractFromAdPriority(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})

	headlinePhrases := e.ExtractSegment("Anger Management Classes Online")
	if len(headlinePhrases) == 0 {
		t.Fatal("headline produced no phrases")
	}

	got := e.ExtractFromAd(
		"Anger Management Classes Online",
		"",
		"Anger Management Classes Online",
		[]string{"Group Sessions", "ab", "xkcdq"},
	)

	if len(got) == 0 || got[0] != headlinePhrases[0] {
		t.Fatalf("ExtractFromAd() = %v, want headline phrase %q first", got, headlinePhrases[0])
	}
	if len(got) > DefaultMaxPhrases {
		t.Fatalf("ExtractFromAd() returned %d phrases", len(got))
	}

	found := false
	for _, p := range got {
		if p == "group sessions" {
			found = true
		}
		if p == "ab" || p == "xkcdq" {
			t.Errorf("sitelink %q should have been rejected", p)
		}
	}
	if !found {
		t.Errorf("ExtractFromAd() = %v, want sitelink \"group sessions\"", got)
	}
	assertNoContainment(t, "ad", got)
}

func TestExtractFromAdFallsBackToRawText(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})

	got := e.ExtractFromAd("", "", "Weight loss programs that actually work for busy people", nil)
	if len(got) == 0 {
		t.Fatal("raw text fallback produced no phrases")
	}

	if got := e.ExtractFromAd("", "", "", nil); len(got) != 0 {
		t.Errorf("empty ad produced %v", got)
	}
}

func TestIsGarbage(t *testing.T) {
	tests := []struct {
		phrase string
		want   bool
	}{
		{"hiking boots", false},
		{"men's", false},
		{"xkcdq", true},
		{"a1 2 3 4", true},
		{"ok", true},
		{"", true},
		{"weight loss", false},
		{"a b c d e", true},
		{"go to a spa", false},
	}
	for _, tt := range tests {
		if got := IsGarbage(tt.phrase); got != tt.want {
			t.Errorf("IsGarbage(%q) = %v, want %v", tt.phrase, got, tt.want)
		}
	}
}

func assertNoContainment(t *testing.T, label string, phrases []string) {
	t.Helper()
	for i := range phrases {
		for j := range phrases {
			if i != j && strings.Contains(phrases[i], phrases[j]) {
				t.Errorf("%s: %q contains %q", label, phrases[i], phrases[j])
			}
		}
	}
}

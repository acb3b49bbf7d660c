package processor

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/adverant/nexus/adtopics-worker/internal/keyphrase"
)

// colorOCR answers with blueWords when the composed image holds link-blue
// pixels and grayWords when it holds body-gray ones
type colorOCR struct {
	blueWords   []OCRWord
	grayWords   []OCRWord
	unavailable error
	err         error
	calls       int32
	inFlight    int32
	maxInFlight int32
}

func (c *colorOCR) Name() string     { return "fake-ocr" }
func (c *colorOCR) Available() error { return c.unavailable }

func (c *colorOCR) Words(ctx context.Context, img image.Image) ([]OCRWord, error) {
	atomic.AddInt32(&c.calls, 1)
	n := atomic.AddInt32(&c.inFlight, 1)
	defer atomic.AddInt32(&c.inFlight, -1)
	for {
		m := atomic.LoadInt32(&c.maxInFlight)
		if n <= m || atomic.CompareAndSwapInt32(&c.maxInFlight, m, n) {
			break
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	blue, gray := Segment(img)
	switch {
	case blue.Count() > 0:
		return c.blueWords, nil
	case gray.Count() > 0:
		return c.grayWords, nil
	}
	return nil, nil
}

func lineWords(line int, texts ...string) []OCRWord {
	words := make([]OCRWord, len(texts))
	for i, s := range texts {
		words[i] = word(s, 90, 1, 1, line, i*50)
	}
	return words
}

func shoeAdOCR() *colorOCR {
	blue := append(lineWords(1, "Buy", "Running", "Shoes", "Online"),
		lineWords(2, "Men's", "·", "Women's", "·", "Kids'", "·", "men's")...)
	return &colorOCR{
		blueWords: blue,
		grayWords: lineWords(1, "Free", "shipping", "on", "all", "|", "orders."),
	}
}

// mapSource serves fixed bytes per URL
type mapSource struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int
}

func (m *mapSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[url]++
	data, ok := m.data[url]
	if !ok {
		return nil, fmt.Errorf("HTTP 404: 404 Not Found")
	}
	return data, nil
}

// memoryCache is an in-process ExtractionCache
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]AdTextContent
	getErr  error
}

func (m *memoryCache) Get(ctx context.Context, url string, dst interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return false, m.getErr
	}
	v, ok := m.entries[url]
	if !ok {
		return false, nil
	}
	*(dst.(*AdTextContent)) = v
	return true, nil
}

func (m *memoryCache) Set(ctx context.Context, url string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]AdTextContent)
	}
	m.entries[url] = *(value.(*AdTextContent))
	return nil
}

func TestExtractFromImage(t *testing.T) {
	e := NewAdTextExtractor(ExtractorConfig{OCR: shoeAdOCR(), Source: &mapSource{}})

	got := e.ExtractFromImage(context.Background(), adImage())
	want := &AdTextContent{
		Headline:    "Buy Running Shoes Online",
		Description: "Free shipping on all orders.",
		Sitelinks:   []string{"Men's", "Women's", "Kids'"},
		RawText:     "Buy Running Shoes Online\nFree shipping on all orders.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractFromImage =\n%+v\nwant\n%+v", got, want)
	}
}

func TestExtractFromImageDropsShortSegments(t *testing.T) {
	ocr := &colorOCR{
		blueWords: lineWords(1, "Shoes"),
		grayWords: lineWords(1, "Hi", "there"),
	}
	e := NewAdTextExtractor(ExtractorConfig{OCR: ocr, Source: &mapSource{}})

	got := e.ExtractFromImage(context.Background(), adImage())
	if got.Headline != "" || got.Description != "" || got.RawText != "" {
		t.Errorf("short segments kept: %+v", got)
	}
	if got.Error != "" {
		t.Errorf("empty extraction is not an error: %s", got.Error)
	}
	if got.Sitelinks == nil || got.HasText() {
		t.Errorf("Sitelinks = %#v, HasText = %v", got.Sitelinks, got.HasText())
	}
}

func TestExtractFromImageDropsSponsoredLabel(t *testing.T) {
	gray := append(lineWords(1, "Sponsored"),
		lineWords(2, "Anger", "management", "classes", "for", "adults")...)
	ocr := &colorOCR{
		blueWords: lineWords(1, "Calm", "Minds", "Counseling"),
		grayWords: gray,
	}
	e := NewAdTextExtractor(ExtractorConfig{OCR: ocr, Source: &mapSource{}})

	got := e.ExtractFromImage(context.Background(), adImage())
	if got.Description != "Anger management classes for adults" {
		t.Errorf("Description = %q, want %q", got.Description, "Anger management classes for adults")
	}
	if strings.Contains(strings.ToLower(got.RawText), "sponsored") {
		t.Errorf("RawText = %q still carries the label", got.RawText)
	}

	phrases := keyphrase.NewExtractor(keyphrase.ExtractorConfig{}).
		ExtractFromAd(got.Headline, got.Description, got.RawText, got.Sitelinks)
	if len(phrases) == 0 {
		t.Fatal("no keyphrases extracted")
	}
	for _, p := range phrases {
		if strings.Contains(p, "sponsored") {
			t.Errorf("keyphrase %q carries the label, got %v", p, phrases)
		}
	}
}

func TestExtractFailures(t *testing.T) {
	img := encodePNG(t, adImage())
	source := &mapSource{data: map[string][]byte{
		"https://ads.example/ok.png":  img,
		"https://ads.example/bad.png": []byte("not an image"),
	}}

	tests := []struct {
		name    string
		ocr     *colorOCR
		url     string
		wantErr string
	}{
		{"no url", shoeAdOCR(), "  ", "No image URL provided"},
		{"download", shoeAdOCR(), "https://ads.example/missing.png", "Failed to download image: "},
		{"decode", shoeAdOCR(), "https://ads.example/bad.png", "Failed to decode image: "},
		{"ocr", &colorOCR{err: fmt.Errorf("segfault")}, "https://ads.example/ok.png", "OCR extraction failed: segfault"},
		{"unavailable", &colorOCR{unavailable: fmt.Errorf("not installed")}, "https://ads.example/ok.png", "fake-ocr unavailable: not installed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewAdTextExtractor(ExtractorConfig{OCR: tt.ocr, Source: source})
			got := e.Extract(context.Background(), tt.url)
			if !strings.HasPrefix(got.Error, tt.wantErr) {
				t.Errorf("Error = %q, want prefix %q", got.Error, tt.wantErr)
			}
			if got.HasText() || got.RawText != "" {
				t.Errorf("failed extraction carries text: %+v", got)
			}
			if got.Sitelinks == nil {
				t.Error("Sitelinks should be empty, not nil")
			}
		})
	}
}

func TestExtractBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	img := encodePNG(t, adImage())
	source := &mapSource{data: map[string][]byte{}}
	var urls []string
	for i := 0; i < 12; i++ {
		url := fmt.Sprintf("https://ads.example/%d.png", i)
		urls = append(urls, url)
		if i%4 != 3 {
			source.data[url] = img
		}
	}

	ocr := shoeAdOCR()
	e := NewAdTextExtractor(ExtractorConfig{OCR: ocr, Source: source, Concurrency: 3})
	results := e.ExtractBatch(context.Background(), urls)

	if len(results) != len(urls) {
		t.Fatalf("got %d results, want %d", len(results), len(urls))
	}
	for i, r := range results {
		if i%4 == 3 {
			if !strings.HasPrefix(r.Error, "Failed to download image") {
				t.Errorf("result %d: Error = %q", i, r.Error)
			}
			continue
		}
		if r.Error != "" || r.Headline != "Buy Running Shoes Online" {
			t.Errorf("result %d = %+v", i, r)
		}
	}
	if m := atomic.LoadInt32(&ocr.maxInFlight); m > 3 {
		t.Errorf("max concurrent OCR calls = %d, want <= 3", m)
	}
}

func TestExtractBatchUnavailable(t *testing.T) {
	source := &mapSource{}
	ocr := &colorOCR{unavailable: fmt.Errorf("no traineddata")}
	e := NewAdTextExtractor(ExtractorConfig{OCR: ocr, Source: source})

	results := e.ExtractBatch(context.Background(), []string{"a", "b"})
	for i, r := range results {
		if !strings.Contains(r.Error, "unavailable") {
			t.Errorf("result %d: Error = %q", i, r.Error)
		}
	}
	if len(source.calls) != 0 {
		t.Errorf("downloads attempted while OCR unavailable: %v", source.calls)
	}
	if ocr.calls != 0 {
		t.Errorf("OCR called %d times", ocr.calls)
	}
}

func TestExtractUsesCache(t *testing.T) {
	url := "https://ads.example/ok.png"
	source := &mapSource{data: map[string][]byte{url: encodePNG(t, adImage())}}
	cache := &memoryCache{}
	e := NewAdTextExtractor(ExtractorConfig{OCR: shoeAdOCR(), Source: source, Cache: cache})

	first := e.Extract(context.Background(), url)
	second := e.Extract(context.Background(), url)

	if source.calls[url] != 1 {
		t.Errorf("downloads = %d, want 1", source.calls[url])
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached result differs:\n%+v\n%+v", first, second)
	}
}

func TestExtractSkipsCacheOnFailureAndCacheErrors(t *testing.T) {
	cache := &memoryCache{}
	e := NewAdTextExtractor(ExtractorConfig{OCR: shoeAdOCR(), Source: &mapSource{}, Cache: cache})
	e.Extract(context.Background(), "https://ads.example/missing.png")
	if len(cache.entries) != 0 {
		t.Error("failed extraction was cached")
	}

	url := "https://ads.example/ok.png"
	source := &mapSource{data: map[string][]byte{url: encodePNG(t, adImage())}}
	broken := &memoryCache{getErr: fmt.Errorf("redis down")}
	e = NewAdTextExtractor(ExtractorConfig{OCR: shoeAdOCR(), Source: source, Cache: broken})
	if got := e.Extract(context.Background(), url); got.Error != "" {
		t.Errorf("cache error should not fail extraction: %s", got.Error)
	}
}

func TestExtractOverHTTP(t *testing.T) {
	img := encodePNG(t, adImage())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(img)
	}))
	defer srv.Close()

	e := NewAdTextExtractor(ExtractorConfig{OCR: shoeAdOCR()})
	got := e.Extract(context.Background(), srv.URL+"/creative.png")
	if got.Error != "" || got.Headline != "Buy Running Shoes Online" {
		t.Errorf("Extract = %+v", got)
	}
}

func TestExtractBytes(t *testing.T) {
	e := NewAdTextExtractor(ExtractorConfig{OCR: shoeAdOCR(), Source: &mapSource{}})

	if got := e.ExtractBytes(context.Background(), encodePNG(t, adImage())); got.Description != "Free shipping on all orders." {
		t.Errorf("ExtractBytes = %+v", got)
	}
	if got := e.ExtractBytes(context.Background(), []byte("junk")); !strings.HasPrefix(got.Error, "Failed to decode image") {
		t.Errorf("Error = %q", got.Error)
	}
}

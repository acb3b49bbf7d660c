package processor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"

	"github.com/adverant/nexus/adtopics-worker/internal/clustering"
	"github.com/adverant/nexus/adtopics-worker/internal/errors"
	"github.com/adverant/nexus/adtopics-worker/internal/keyphrase"
	"github.com/adverant/nexus/adtopics-worker/internal/logging"
	"github.com/adverant/nexus/adtopics-worker/internal/storage"
)

// creativeText is what the fake OCR reads for one creative
type creativeText struct {
	blue []OCRWord
	gray []OCRWord
}

// widthOCR tells creatives apart by image width
type widthOCR struct {
	byWidth     map[int]creativeText
	unavailable error
}

func (w *widthOCR) Name() string     { return "fake-ocr" }
func (w *widthOCR) Available() error { return w.unavailable }

func (w *widthOCR) Words(ctx context.Context, img image.Image) ([]OCRWord, error) {
	text := w.byWidth[img.Bounds().Dx()]
	blue, gray := Segment(img)
	switch {
	case blue.Count() > 0:
		return text.blue, nil
	case gray.Count() > 0:
		return text.gray, nil
	}
	return nil, nil
}

func creativeImage(width int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, 4))
	for x := 0; x < width; x++ {
		img.SetRGBA(x, 0, linkBlue)
		img.SetRGBA(x, 1, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		img.SetRGBA(x, 2, bodyGray)
		img.SetRGBA(x, 3, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	}
	return img
}

// topicEmbedder places phrases about shoes and boots far apart
type topicEmbedder struct {
	err error
}

func (e *topicEmbedder) Name() string     { return "topic" }
func (e *topicEmbedder) Available() error { return nil }

func (e *topicEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, s := range texts {
		switch {
		case strings.Contains(s, "schuh"), strings.Contains(s, "boot"), strings.Contains(s, "hiking"):
			out[i] = []float32{0, 1, 0}
		case strings.Contains(s, "shoe"), strings.Contains(s, "run"):
			out[i] = []float32{1, 0, 0}
		default:
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

// prefixDetector reports German for texts mentioning Schuhe
type prefixDetector struct{}

func (prefixDetector) Detect(text string) string {
	if strings.Contains(text, "Schuhe") {
		return "de"
	}
	if len(text) < 10 {
		return ""
	}
	return "en"
}

type recordingStore struct {
	mu       sync.Mutex
	inputs   []*storage.MiningResultInput
	updates  []*storage.JobUpdate
	storeErr error
}

func (s *recordingStore) StoreMiningResult(ctx context.Context, input *storage.MiningResultInput) (*storage.MiningResultOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, input)
	if s.storeErr != nil {
		return nil, s.storeErr
	}
	return &storage.MiningResultOutput{
		JobID:         input.JobID,
		AdsStored:     len(input.Ads),
		VectorsStored: len(input.Phrases),
	}, nil
}

func (s *recordingStore) UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, update)
	return nil
}

func testAds(t *testing.T) ([]AdRecord, *mapSource, *widthOCR) {
	t.Helper()
	source := &mapSource{data: map[string][]byte{
		"https://ads.example/running.png": encodePNG(t, creativeImage(10)),
		"https://ads.example/trail.png":   encodePNG(t, creativeImage(11)),
		"https://ads.example/schuhe.png":  encodePNG(t, creativeImage(12)),
	}}
	ocr := &widthOCR{byWidth: map[int]creativeText{
		10: {
			blue: append(lineWords(1, "Buy", "Running", "Shoes", "Online"),
				lineWords(2, "Road", "Shoes", "·", "Race", "Shoes")...),
			gray: lineWords(1, "Lightweight", "running", "shoes", "for", "daily", "training."),
		},
		11: {
			blue: append(lineWords(1, "Trail", "Running", "Shoes", "Sale"),
				lineWords(2, "Trail", "Shoes", "·", "Running", "Socks")...),
			gray: lineWords(1, "Grippy", "trail", "running", "shoes", "for", "muddy", "runs."),
		},
		12: {
			blue: lineWords(1, "Wanderschuhe", "und", "Schuhe", "kaufen"),
			gray: lineWords(1, "Bequeme", "Schuhe", "für", "lange", "Wanderungen."),
		},
	}}
	ads := []AdRecord{
		{Title: "Runner Shop", URL: "https://runner.example", CreativeID: "cr-1", ImageURL: "https://ads.example/running.png"},
		{Title: "Trail Co", URL: "https://trail.example", CreativeID: "cr-2", ImageURL: "https://ads.example/trail.png"},
		{Title: "Missing", CreativeID: "cr-3", ImageURL: "https://ads.example/gone.png"},
		{Title: "Schuhhaus", CreativeID: "cr-4", ImageURL: "https://ads.example/schuhe.png"},
	}
	return ads, source, ocr
}

func newTestProcessor(t *testing.T, ocr OCREngine, source ImageSource, embedder clustering.Embedder, store ResultStore, langs LanguageDetector) *AdProcessor {
	t.Helper()
	logger := logging.NewLogger("test")
	p, err := NewAdProcessor(&ProcessorConfig{
		Extractor:  NewAdTextExtractor(ExtractorConfig{OCR: ocr, Source: source, Logger: logger}),
		Keyphrases: keyphrase.ExtractorConfig{},
		Clusterer:  clustering.NewClusterer(embedder, clustering.Config{Logger: logger}),
		Languages:  langs,
		Store:      store,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("NewAdProcessor: %v", err)
	}
	return p
}

func TestProcessAds(t *testing.T) {
	ads, source, ocr := testAds(t)
	store := &recordingStore{}
	p := newTestProcessor(t, ocr, source, &topicEmbedder{}, store, prefixDetector{})

	result, err := p.ProcessAds(context.Background(), &ProcessRequest{JobID: "job-1", Ads: ads, Language: "en"})
	if err != nil {
		t.Fatalf("ProcessAds: %v", err)
	}

	if result.AdsTotal != 4 || result.AdsFailed != 1 || result.AdsExtracted != 3 {
		t.Errorf("counts: total=%d failed=%d extracted=%d", result.AdsTotal, result.AdsFailed, result.AdsExtracted)
	}
	if result.AdsFiltered != 1 || !result.Ads[3].Filtered || result.Ads[3].Language != "de" {
		t.Errorf("German ad not filtered: %+v", result.Ads[3])
	}
	if len(result.Ads[3].Keyphrases) != 0 || len(result.Ads[2].Keyphrases) != 0 {
		t.Error("filtered or failed ads should have no keyphrases")
	}

	// Results keep input order
	for i, ad := range result.Ads {
		if ad.Ad.CreativeID != ads[i].CreativeID {
			t.Errorf("ad %d is %s, want %s", i, ad.Ad.CreativeID, ads[i].CreativeID)
		}
	}

	total := 0
	for _, ad := range result.Ads {
		total += len(ad.Keyphrases)
		if len(ad.Keyphrases) > keyphrase.DefaultMaxPhrases {
			t.Errorf("ad %s has %d keyphrases", ad.Ad.CreativeID, len(ad.Keyphrases))
		}
	}
	if total != result.PhrasesTotal || total < 2 {
		t.Fatalf("PhrasesTotal = %d, per-ad sum = %d", result.PhrasesTotal, total)
	}

	res := result.Clustering
	if res.Error != "" || result.ClusteringError != "" {
		t.Fatalf("clustering error: %s", res.Error)
	}
	clustered := 0
	for id, c := range res.Clusters {
		if c.ID != id || c.Size() < 2 {
			t.Errorf("cluster %d: id=%d size=%d", id, c.ID, c.Size())
		}
		clustered += c.Size()
	}
	if clustered+len(res.Unclustered) != res.TotalPhrases || res.TotalPhrases != total {
		t.Errorf("phrase accounting: clustered=%d unclustered=%d total=%d", clustered, len(res.Unclustered), res.TotalPhrases)
	}
	if result.ClustersFound != len(res.Clusters) {
		t.Errorf("ClustersFound = %d", result.ClustersFound)
	}

	if len(store.inputs) != 1 {
		t.Fatalf("store called %d times", len(store.inputs))
	}
	in := store.inputs[0]
	if in.JobID != "job-1" || len(in.Ads) != 4 || len(in.Phrases) != total || in.Clustering != res {
		t.Errorf("store input = %+v", in)
	}
	if in.Ads[2].Error == "" || in.Ads[0].Headline != "Buy Running Shoes Online" {
		t.Errorf("ad records = %+v", in.Ads)
	}
	if result.VectorsStored != total {
		t.Errorf("VectorsStored = %d", result.VectorsStored)
	}
	for _, ph := range in.Phrases {
		if ph.CreativeID != "cr-1" && ph.CreativeID != "cr-2" {
			t.Errorf("phrase %q traced to %q", ph.Phrase, ph.CreativeID)
		}
	}
}

func TestProcessAdsWithoutDetectorKeepsAllAds(t *testing.T) {
	ads, source, ocr := testAds(t)
	p := newTestProcessor(t, ocr, source, &topicEmbedder{}, nil, nil)

	result, err := p.ProcessAds(context.Background(), &ProcessRequest{JobID: "job-2", Ads: ads, Language: "en"})
	if err != nil {
		t.Fatalf("ProcessAds: %v", err)
	}
	if result.AdsFiltered != 0 || len(result.Ads[3].Keyphrases) == 0 {
		t.Errorf("ads filtered without a detector: %+v", result.Ads[3])
	}
	if result.VectorsStored != 0 {
		t.Errorf("VectorsStored = %d without a store", result.VectorsStored)
	}
}

func TestProcessAdsClusteringFailureIsNotFatal(t *testing.T) {
	ads, source, ocr := testAds(t)
	store := &recordingStore{}
	p := newTestProcessor(t, ocr, source, &topicEmbedder{err: fmt.Errorf("model offline")}, store, nil)

	result, err := p.ProcessAds(context.Background(), &ProcessRequest{JobID: "job-3", Ads: ads})
	if err != nil {
		t.Fatalf("ProcessAds: %v", err)
	}
	if !strings.HasPrefix(result.ClusteringError, "Clustering failed: ") {
		t.Errorf("ClusteringError = %q", result.ClusteringError)
	}
	if len(result.Clustering.Clusters) != 0 || len(result.Clustering.Unclustered) != result.PhrasesTotal {
		t.Errorf("failed clustering should leave every phrase unclustered")
	}
	if len(store.inputs) != 1 {
		t.Error("results should still be stored")
	}
}

func TestProcessAdsStorageFailure(t *testing.T) {
	ads, source, ocr := testAds(t)
	store := &recordingStore{storeErr: fmt.Errorf("connection refused")}
	p := newTestProcessor(t, ocr, source, &topicEmbedder{}, store, nil)

	_, err := p.ProcessAds(context.Background(), &ProcessRequest{JobID: "job-4", Ads: ads})
	perr, ok := err.(*errors.ProcessingError)
	if !ok {
		t.Fatalf("err = %v (%T), want *ProcessingError", err, err)
	}
	if perr.Code != errors.ErrorStorageFailed || perr.JobID != "job-4" {
		t.Errorf("err = %+v", perr)
	}
}

func TestProcessAdsOCRUnavailable(t *testing.T) {
	ads, source, _ := testAds(t)
	store := &recordingStore{}
	ocr := &widthOCR{unavailable: fmt.Errorf("tesseract missing")}
	p := newTestProcessor(t, ocr, source, &topicEmbedder{}, store, nil)

	_, err := p.ProcessAds(context.Background(), &ProcessRequest{JobID: "job-5", Ads: ads})
	perr, ok := err.(*errors.ProcessingError)
	if !ok || perr.Code != errors.ErrorDependencyUnavailable {
		t.Fatalf("err = %v", err)
	}
	if len(source.calls) != 0 || len(store.inputs) != 0 {
		t.Error("pipeline continued after OCR was unavailable")
	}
}

func TestProcessAdsEmptyBatch(t *testing.T) {
	p := newTestProcessor(t, &widthOCR{}, &mapSource{}, &topicEmbedder{}, nil, nil)

	result, err := p.ProcessAds(context.Background(), &ProcessRequest{JobID: "job-6"})
	if err != nil {
		t.Fatalf("ProcessAds: %v", err)
	}
	if result.AdsTotal != 0 || result.PhrasesTotal != 0 || len(result.Clustering.Clusters) != 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestNewAdProcessorValidation(t *testing.T) {
	extractor := NewAdTextExtractor(ExtractorConfig{OCR: &widthOCR{}, Source: &mapSource{}})
	clusterer := clustering.NewClusterer(&topicEmbedder{}, clustering.Config{})

	tests := []struct {
		name string
		cfg  *ProcessorConfig
	}{
		{"nil config", nil},
		{"no extractor", &ProcessorConfig{Clusterer: clusterer}},
		{"no clusterer", &ProcessorConfig{Extractor: extractor}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAdProcessor(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestUpdateJobStatus(t *testing.T) {
	store := &recordingStore{}
	p := newTestProcessor(t, &widthOCR{}, &mapSource{}, &topicEmbedder{}, store, nil)

	err := p.UpdateJobStatus(context.Background(), "job-7", "failed", 100, map[string]interface{}{
		"error":          "Failed to store mining results: timeout",
		"code":           string(errors.ErrorStorageFailed),
		"adsTotal":       4,
		"processingTime": int64(1500),
	})
	if err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	u := store.updates[0]
	if u.JobID != "job-7" || u.Status != "failed" || u.AdsTotal != 4 || u.ProcessingTimeMs != 1500 {
		t.Errorf("update = %+v", u)
	}
	if u.ErrorCode != "STORAGE_FAILED" || u.ErrorMessage != "Failed to store mining results: timeout" {
		t.Errorf("error fields = %q / %q", u.ErrorCode, u.ErrorMessage)
	}
	if u.Metadata["progress"] != 100 {
		t.Errorf("progress = %v", u.Metadata["progress"])
	}

	noStore := newTestProcessor(t, &widthOCR{}, &mapSource{}, &topicEmbedder{}, nil, nil)
	if err := noStore.UpdateJobStatus(context.Background(), "job-8", "processing", 0, nil); err != nil {
		t.Errorf("UpdateJobStatus without store: %v", err)
	}
}

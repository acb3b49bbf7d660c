package embedding

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/adverant/nexus/adtopics-worker/internal/config"
	"github.com/adverant/nexus/adtopics-worker/internal/logging"
)

func quietLogger() *logging.Logger {
	return logging.NewLoggerWithWriter("test", io.Discard)
}

// voyageServer answers with vectors whose first component is the text length.
// Batches larger than failAbove fail with a 500.
func voyageServer(t *testing.T, dims, failAbove int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req voyageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if failAbove > 0 && len(req.Input) > failAbove {
			http.Error(w, "batch rejected", http.StatusInternalServerError)
			return
		}

		var resp voyageResponse
		// reversed on purpose; the client must sort by index
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dims)
			vec[0] = float32(len(req.Input[i]))
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: vec, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestVoyageEmbedKeepsInputOrder(t *testing.T) {
	var calls int32
	srv := voyageServer(t, 4, 0, &calls)
	defer srv.Close()

	c := NewVoyageClient(VoyageConfig{APIKey: "test-key", Dimensions: 4, BaseURL: srv.URL, Logger: quietLogger()})

	texts := []string{"a", "bbb", "cc"}
	got, err := c.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	for i, text := range texts {
		if got[i][0] != float32(len(text)) {
			t.Errorf("vector %d = %v, want first component %d", i, got[i], len(text))
		}
	}
	if calls != 1 {
		t.Errorf("server called %d times, want 1", calls)
	}
}

func TestVoyageEmbedBatchesAndFallsBack(t *testing.T) {
	var calls int32
	srv := voyageServer(t, 2, 1, &calls)
	defer srv.Close()

	c := NewVoyageClient(VoyageConfig{APIKey: "test-key", Dimensions: 2, BaseURL: srv.URL, Logger: quietLogger()})

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = strings.Repeat("x", i%7+1)
	}

	got, err := c.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(got), len(texts))
	}
	for i, text := range texts {
		if got[i][0] != float32(len(text)) {
			t.Fatalf("vector %d out of order", i)
		}
	}
	// two failed batches plus one request per text
	if want := int32(2 + len(texts)); calls != want {
		t.Errorf("server called %d times, want %d", calls, want)
	}
}

func TestVoyageEmbedRejectsWrongDimensions(t *testing.T) {
	var calls int32
	srv := voyageServer(t, 3, 0, &calls)
	defer srv.Close()

	c := NewVoyageClient(VoyageConfig{APIKey: "test-key", Dimensions: 1024, BaseURL: srv.URL, Logger: quietLogger()})
	if _, err := c.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatal("Embed() error = nil, want dimension mismatch")
	}
}

func TestProvidersWithoutKeyAreUnavailable(t *testing.T) {
	v := NewVoyageClient(VoyageConfig{Logger: quietLogger()})
	if v.Available() == nil {
		t.Error("voyage without key reported available")
	}
	if _, err := v.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("voyage Embed without key succeeded")
	}

	c := NewCohereClient(CohereConfig{Logger: quietLogger()})
	if c.Available() == nil {
		t.Error("cohere without key reported available")
	}
	if _, err := c.Embed(context.Background(), []string{"x"}); err == nil {
		t.Error("cohere Embed without key succeeded")
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantName string
		wantErr  bool
	}{
		{"voyage", "voyage:voyage-3", false},
		{"", "voyage:voyage-3", false},
		{"cohere", "cohere:embed-english-v3.0", false},
		{"openai", "", true},
	}

	for _, tt := range tests {
		cfg := &config.Config{
			EmbeddingProvider:   tt.provider,
			EmbeddingDimensions: 1024,
			VoyageModel:         "voyage-3",
			CohereModel:         "embed-english-v3.0",
		}
		p, err := NewProvider(cfg, quietLogger())
		if (err != nil) != tt.wantErr {
			t.Errorf("NewProvider(%q) error = %v, wantErr %v", tt.provider, err, tt.wantErr)
			continue
		}
		if err == nil && p.Name() != tt.wantName {
			t.Errorf("NewProvider(%q).Name() = %q, want %q", tt.provider, p.Name(), tt.wantName)
		}
	}
}

func TestToFloat32(t *testing.T) {
	got := toFloat32([][]float64{{0.5, -1}, {}})
	if len(got) != 2 || got[0][0] != 0.5 || got[0][1] != -1 || len(got[1]) != 0 {
		t.Errorf("toFloat32() = %v", got)
	}
}

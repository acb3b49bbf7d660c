/**
 * VoyageAI embedding client
 *
 * Batches up to 100 texts per request and falls back to one request per
 * text when a batch call fails.
 */

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adverant/nexus/adtopics-worker/internal/logging"
)

const (
	voyageDefaultURL   = "https://api.voyageai.com/v1/embeddings"
	voyageDefaultModel = "voyage-3"
	voyageBatchSize    = 100
	voyageMaxChars     = 16000
)

// VoyageConfig configures the VoyageAI client
type VoyageConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// VoyageClient handles VoyageAI embedding generation
type VoyageClient struct {
	apiKey     string
	model      string
	dimensions int
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

type voyageRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type,omitempty"`
}

type voyageResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// NewVoyageClient creates a VoyageAI client
func NewVoyageClient(cfg VoyageConfig) *VoyageClient {
	if cfg.Model == "" {
		cfg.Model = voyageDefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = voyageDefaultURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("embedding")
	}

	return &VoyageClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		baseURL:    cfg.BaseURL,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger.Named("voyage"),
	}
}

func (v *VoyageClient) Name() string { return "voyage:" + v.model }

func (v *VoyageClient) Dimensions() int { return v.dimensions }

func (v *VoyageClient) Available() error {
	if v.apiKey == "" {
		return fmt.Errorf("VoyageAI API key is required")
	}
	return nil
}

// Embed returns one vector per text, in input order
func (v *VoyageClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := v.Available(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	v.logger.Debug("Generating batch embeddings", "texts", len(texts), "model", v.model, "batch_size", voyageBatchSize)

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += voyageBatchSize {
		end := min(i+voyageBatchSize, len(texts))
		batch := texts[i:end]

		vectors, err := v.embedBatch(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			v.logger.Warn("Batch call failed, falling back to individual requests",
				"from", i, "to", end-1, "error", err)

			for j, text := range batch {
				single, err := v.embedBatch(ctx, []string{text})
				if err != nil {
					return nil, fmt.Errorf("failed to generate embedding for text %d (fallback): %w", i+j, err)
				}
				all = append(all, single[0])
			}
			continue
		}
		all = append(all, vectors...)
	}

	return all, nil
}

func (v *VoyageClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > voyageMaxChars {
			text = text[:voyageMaxChars]
		}
		input[i] = text
	}

	body, err := json.Marshal(voyageRequest{Input: input, Model: v.model, InputType: "document"})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", v.apiKey))

	start := time.Now()
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("VoyageAI API returned status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed voyageResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("unexpected number of embeddings: got %d, expected %d", len(parsed.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("invalid embedding index: %d", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, vec := range vectors {
		if vec == nil {
			return nil, fmt.Errorf("missing embedding for text %d", i)
		}
	}
	if err := checkDimensions("VoyageAI", vectors, v.dimensions); err != nil {
		return nil, err
	}

	v.logger.Debug("Batch embedding complete",
		"texts", len(texts), "tokens", parsed.Usage.TotalTokens, "duration", time.Since(start))
	return vectors, nil
}

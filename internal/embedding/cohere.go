package embedding

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"github.com/adverant/nexus/adtopics-worker/internal/logging"
)

const (
	cohereDefaultModel = "embed-english-v3.0"
	// Embed API accepts at most 96 texts per call
	cohereBatchSize = 96
)

// CohereConfig configures the Cohere client
type CohereConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	Logger     *logging.Logger
}

// CohereClient embeds texts with the Cohere Embed v2 API
type CohereClient struct {
	client     *cohereclient.Client
	apiKey     string
	model      string
	dimensions int
	timeout    time.Duration
	logger     *logging.Logger
}

// NewCohereClient creates a Cohere client
func NewCohereClient(cfg CohereConfig) *CohereClient {
	if cfg.Model == "" {
		cfg.Model = cohereDefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("embedding")
	}

	// HTTP/1.1 only; the SDK has trouble with some HTTP/2 proxies
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}

	return &CohereClient{
		client: cohereclient.NewClient(
			cohereclient.WithToken(cfg.APIKey),
			cohereclient.WithHTTPClient(httpClient),
		),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		logger:     cfg.Logger.Named("cohere"),
	}
}

func (c *CohereClient) Name() string { return "cohere:" + c.model }

func (c *CohereClient) Dimensions() int { return c.dimensions }

func (c *CohereClient) Available() error {
	if c.apiKey == "" {
		return fmt.Errorf("Cohere API key is required")
	}
	return nil
}

// Embed returns one vector per text, in input order
func (c *CohereClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.Available(); err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += cohereBatchSize {
		end := min(i+cohereBatchSize, len(texts))
		vectors, err := c.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("cohere embed error for texts %d-%d: %w", i, end-1, err)
		}
		out = append(out, vectors...)
	}

	if err := checkDimensions("Cohere", out, c.dimensions); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CohereClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.V2.Embed(ctx, &cohere.V2EmbedRequest{
		Texts:          texts,
		Model:          c.model,
		InputType:      cohere.EmbedInputTypeClustering,
		EmbeddingTypes: []cohere.EmbeddingType{cohere.EmbeddingTypeFloat},
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Embeddings == nil || resp.Embeddings.Float == nil {
		return nil, fmt.Errorf("cohere embed returned no float embeddings")
	}
	if len(resp.Embeddings.Float) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(resp.Embeddings.Float), len(texts))
	}

	c.logger.Debug("Batch embedding complete", "texts", len(texts), "duration", time.Since(start))
	return toFloat32(resp.Embeddings.Float), nil
}

func toFloat32(in [][]float64) [][]float32 {
	out := make([][]float32, len(in))
	for i, vec := range in {
		fv := make([]float32, len(vec))
		for j, v := range vec {
			fv[j] = float32(v)
		}
		out[i] = fv
	}
	return out
}

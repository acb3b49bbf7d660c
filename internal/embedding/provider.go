/**
 * Embedding providers for keyphrase clustering and similarity search
 */

package embedding

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/adtopics-worker/internal/config"
	"github.com/adverant/nexus/adtopics-worker/internal/logging"
)

// Provider names accepted by EMBEDDING_PROVIDER
const (
	ProviderVoyage = "voyage"
	ProviderCohere = "cohere"
)

// Provider turns texts into vectors of a fixed dimension
type Provider interface {
	Name() string
	Dimensions() int
	// Available reports why the provider cannot serve requests, nil when it can
	Available() error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider builds the provider selected in cfg. Providers without an
// API key are still returned; Available reports the missing key.
func NewProvider(cfg *config.Config, logger *logging.Logger) (Provider, error) {
	if logger == nil {
		logger = logging.NewLogger("embedding")
	}

	switch cfg.EmbeddingProvider {
	case ProviderVoyage, "":
		return NewVoyageClient(VoyageConfig{
			APIKey:     cfg.VoyageAPIKey,
			Model:      cfg.VoyageModel,
			Dimensions: cfg.EmbeddingDimensions,
			Logger:     logger,
		}), nil
	case ProviderCohere:
		return NewCohereClient(CohereConfig{
			APIKey:     cfg.CohereAPIKey,
			Model:      cfg.CohereModel,
			Dimensions: cfg.EmbeddingDimensions,
			Logger:     logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

func checkDimensions(name string, vectors [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("%s returned %d dimensions for text %d, expected %d", name, len(v), i, want)
		}
	}
	return nil
}

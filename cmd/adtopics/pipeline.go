package main

import (
	"fmt"

	"github.com/adverant/nexus/adtopics-worker/internal/clustering"
	"github.com/adverant/nexus/adtopics-worker/internal/config"
	"github.com/adverant/nexus/adtopics-worker/internal/embedding"
	"github.com/adverant/nexus/adtopics-worker/internal/keyphrase"
	"github.com/adverant/nexus/adtopics-worker/internal/langdetect"
	"github.com/adverant/nexus/adtopics-worker/internal/logging"
	"github.com/adverant/nexus/adtopics-worker/internal/processor"
	"github.com/adverant/nexus/adtopics-worker/internal/storage"
)

func newExtractor(cfg *config.Config) *processor.AdTextExtractor {
	logger := logging.NewLogger("extractor")
	return processor.NewAdTextExtractor(processor.ExtractorConfig{
		OCR: processor.NewTesseractOCR(&processor.TesseractConfig{Language: cfg.TesseractLanguage}),
		Source: processor.NewHTTPImageSource(processor.HTTPImageSourceConfig{
			Timeout:    cfg.DownloadTimeout,
			MaxRetries: cfg.DownloadMaxRetries,
			MaxSize:    cfg.MaxImageSize,
			Logger:     logger,
		}),
		Concurrency:   cfg.ExtractionConcurrency,
		MinConfidence: cfg.OCRMinConfidence,
		Logger:        logger,
	})
}

func newStorage(cfg *config.Config, dimensions int) (*storage.StorageManager, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return storage.NewStorageManager(cfg.DatabaseURL, cfg.QdrantURL, cfg.QdrantCollection, dimensions)
}

// newProcessor wires the local pipeline. store may be nil.
func newProcessor(cfg *config.Config, embedder embedding.Provider, store *storage.StorageManager) (*processor.AdProcessor, error) {
	procCfg := &processor.ProcessorConfig{
		Extractor:  newExtractor(cfg),
		Keyphrases: keyphrase.ExtractorConfig{MaxPhrases: keyphrase.DefaultMaxPhrases},
		Clusterer: clustering.NewClusterer(embedder, clustering.Config{
			DistanceThreshold: cfg.ClusterDistanceThreshold,
		}),
		Logger: logging.NewLogger("processor"),
	}
	if store != nil {
		procCfg.Store = store
	}
	if cfg.LanguageDetection {
		procCfg.Languages = langdetect.NewDetector()
	}
	return processor.NewAdProcessor(procCfg)
}

/**
 * AdTopics Worker - Main Entry Point
 *
 * Go worker that mines topics from ad creatives.
 *
 * Architecture:
 * - Redis LIST or Asynq consumer for the Redis-backed job queue
 * - Color-segmented Tesseract OCR splitting headline, description and sitelinks
 * - YAKE keyphrase extraction over the cleaned segments
 * - Voyage/Cohere embeddings with agglomerative topic clustering
 * - PostgreSQL persistence for ad texts and clusters, Qdrant for phrase vectors
 */

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/adtopics-worker/internal/cache"
	"github.com/adverant/nexus/adtopics-worker/internal/clustering"
	"github.com/adverant/nexus/adtopics-worker/internal/config"
	"github.com/adverant/nexus/adtopics-worker/internal/embedding"
	"github.com/adverant/nexus/adtopics-worker/internal/keyphrase"
	"github.com/adverant/nexus/adtopics-worker/internal/langdetect"
	"github.com/adverant/nexus/adtopics-worker/internal/logging"
	"github.com/adverant/nexus/adtopics-worker/internal/processor"
	"github.com/adverant/nexus/adtopics-worker/internal/queue"
	"github.com/adverant/nexus/adtopics-worker/internal/storage"
)

// queueConsumer is the part of both queue backends main needs
type queueConsumer interface {
	Start() error
	Stop() error
}

// asynqConsumer adapts the context-taking Asynq consumer
type asynqConsumer struct {
	*queue.Consumer
}

func (c asynqConsumer) Start() error { return c.Consumer.Start(context.Background()) }
func (c asynqConsumer) Stop() error  { return c.Consumer.Stop(context.Background()) }

func main() {
	// Load environment variables
	if err := godotenv.Load(".env.adtopics"); err != nil {
		log.Printf("Warning: .env.adtopics not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.ValidateWorker(); err != nil {
		log.Fatalf("Invalid worker configuration: %v", err)
	}

	logger := logging.NewLogger("worker")

	log.Printf("AdTopics Worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Qdrant=%s, Queue=%s (%s), Workers=%d",
		cfg.RedisURL, cfg.QdrantURL, cfg.QueueName, cfg.QueueBackend, cfg.WorkerConcurrency)

	// Embedding provider shared by clustering and storage
	embedder, err := embedding.NewProvider(cfg, logging.NewLogger("embedding"))
	if err != nil {
		log.Fatalf("Failed to initialize embedding provider: %v", err)
	}
	if err := embedder.Available(); err != nil {
		logger.Warn("Embedding provider unavailable, clustering will report errors", "provider", embedder.Name(), "error", err)
	}

	// Initialize unified storage manager (PostgreSQL + Qdrant)
	log.Printf("Connecting to storage (PostgreSQL + Qdrant)...")
	storageManager, err := storage.NewStorageManager(
		cfg.DatabaseURL,
		cfg.QdrantURL,
		cfg.QdrantCollection,
		embedder.Dimensions(),
	)
	if err != nil {
		log.Fatalf("Failed to initialize storage manager: %v", err)
	}
	log.Printf("Storage manager initialized (PostgreSQL + Qdrant)")

	// Extraction cache is optional; the worker runs without it
	var extractionCache processor.ExtractionCache
	if cfg.ExtractionCacheTTL > 0 {
		c, err := cache.NewExtractionCache(cfg.RedisURL, cfg.ExtractionCacheTTL)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = c.Ping(ctx)
			cancel()
		}
		if err != nil {
			logger.Warn("Extraction cache disabled", "error", err)
		} else {
			defer c.Close()
			extractionCache = c
			log.Printf("Extraction cache enabled (ttl=%v)", cfg.ExtractionCacheTTL)
		}
	}

	extractorLogger := logging.NewLogger("extractor")
	extractor := processor.NewAdTextExtractor(processor.ExtractorConfig{
		OCR: processor.NewTesseractOCR(&processor.TesseractConfig{Language: cfg.TesseractLanguage}),
		Source: processor.NewHTTPImageSource(processor.HTTPImageSourceConfig{
			Timeout:    cfg.DownloadTimeout,
			MaxRetries: cfg.DownloadMaxRetries,
			MaxSize:    cfg.MaxImageSize,
			Logger:     extractorLogger,
		}),
		Cache:         extractionCache,
		Concurrency:   cfg.ExtractionConcurrency,
		MinConfidence: cfg.OCRMinConfidence,
		Logger:        extractorLogger,
	})
	if err := extractor.Available(); err != nil {
		log.Fatalf("OCR engine unavailable: %v", err)
	}

	procCfg := &processor.ProcessorConfig{
		Extractor:  extractor,
		Keyphrases: keyphrase.ExtractorConfig{MaxPhrases: keyphrase.DefaultMaxPhrases},
		Clusterer: clustering.NewClusterer(embedder, clustering.Config{
			DistanceThreshold: cfg.ClusterDistanceThreshold,
		}),
		Store:  storageManager,
		Logger: logging.NewLogger("processor"),
	}
	if cfg.LanguageDetection {
		procCfg.Languages = langdetect.NewDetector()
		log.Printf("Language detection enabled")
	}

	log.Printf("Initializing ad processor...")
	proc, err := processor.NewAdProcessor(procCfg)
	if err != nil {
		log.Fatalf("Failed to initialize ad processor: %v", err)
	}

	// Initialize queue consumer
	log.Printf("Connecting to Redis queue...")
	var consumer queueConsumer
	switch cfg.QueueBackend {
	case config.QueueBackendAsynq:
		c, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		consumer = asynqConsumer{c}
	default:
		c, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			ProcessingTimeout: int64(cfg.ProcessingTimeout),
		})
		if err != nil {
			log.Fatalf("Failed to initialize queue consumer: %v", err)
		}
		consumer = c
	}

	if err := consumer.Start(); err != nil {
		log.Fatalf("Failed to start queue consumer: %v", err)
	}

	// Print startup summary
	log.Printf("===========================================")
	log.Printf("AdTopics Worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s (%s)", cfg.QueueName, cfg.QueueBackend)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("Extraction concurrency: %d", cfg.ExtractionConcurrency)
	log.Printf("OCR: tesseract (%s), min confidence %.0f", cfg.TesseractLanguage, cfg.OCRMinConfidence)
	log.Printf("Embeddings: %s (%d dims)", embedder.Name(), embedder.Dimensions())
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	if err := consumer.Stop(); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	} else {
		log.Printf("Queue consumer stopped successfully")
	}

	log.Printf("Closing storage manager...")
	if err := storageManager.Close(); err != nil {
		log.Printf("Error closing storage manager: %v", err)
	} else {
		log.Printf("Storage manager closed")
	}

	log.Printf("Shutdown complete")
}

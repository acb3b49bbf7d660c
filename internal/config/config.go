/**
 * Configuration for the AdTopics Worker
 *
 * Loads configuration from environment variables matching .env.adtopics
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Queue backends understood by the worker
const (
	QueueBackendRedis = "redis"
	QueueBackendAsynq = "asynq"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue + extraction cache)
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant vector database configuration
	QdrantURL        string
	QdrantCollection string

	// Embedding provider configuration
	EmbeddingProvider   string
	EmbeddingDimensions int
	VoyageAPIKey        string
	VoyageModel         string
	CohereAPIKey        string
	CohereModel         string

	// Queue configuration
	QueueBackend      string
	QueueName         string
	WorkerConcurrency int
	ProcessingTimeout int // milliseconds

	// Extraction configuration
	ExtractionConcurrency int
	DownloadTimeout       time.Duration
	DownloadMaxRetries    int
	MaxImageSize          int64
	ExtractionCacheTTL    time.Duration

	// Tesseract configuration
	TesseractLanguage string
	OCRMinConfidence  float64

	// Clustering configuration
	ClusterDistanceThreshold float64

	// Language enrichment
	LanguageDetection bool

	// Node environment
	NodeEnv string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:                 getEnvOrDefault("REDIS_URL", "redis://nexus-redis:6379"),
		DatabaseURL:              getEnvOrDefault("DATABASE_URL", ""),
		QdrantURL:                getEnvOrDefault("QDRANT_URL", "nexus-qdrant:6334"),
		QdrantCollection:         getEnvOrDefault("QDRANT_COLLECTION", "adtopics_keyphrases"),
		EmbeddingProvider:        strings.ToLower(getEnvOrDefault("EMBEDDING_PROVIDER", "voyage")),
		EmbeddingDimensions:      getEnvAsIntOrDefault("EMBEDDING_DIMENSIONS", 1024),
		VoyageAPIKey:             getEnvOrDefault("VOYAGE_API_KEY", ""),
		VoyageModel:              getEnvOrDefault("VOYAGE_MODEL", "voyage-3"),
		CohereAPIKey:             getEnvOrDefault("COHERE_API_KEY", ""),
		CohereModel:              getEnvOrDefault("COHERE_MODEL", "embed-english-v3.0"),
		QueueBackend:             strings.ToLower(getEnvOrDefault("QUEUE_BACKEND", QueueBackendRedis)),
		QueueName:                getEnvOrDefault("QUEUE_NAME", "adtopics:jobs"),
		WorkerConcurrency:        getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeout:        getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 600000), // 10 minutes
		ExtractionConcurrency:    getEnvAsIntOrDefault("EXTRACTION_CONCURRENCY", 5),
		DownloadTimeout:          time.Duration(getEnvAsIntOrDefault("DOWNLOAD_TIMEOUT_MS", 30000)) * time.Millisecond,
		DownloadMaxRetries:       getEnvAsIntOrDefault("DOWNLOAD_MAX_RETRIES", 2),
		MaxImageSize:             getEnvAsInt64OrDefault("MAX_IMAGE_SIZE", 20971520), // 20MB
		ExtractionCacheTTL:       getEnvAsDurationOrDefault("EXTRACTION_CACHE_TTL", 24*time.Hour),
		TesseractLanguage:        getEnvOrDefault("TESSERACT_LANGUAGE", "eng"),
		OCRMinConfidence:         getEnvAsFloatOrDefault("OCR_MIN_CONFIDENCE", 30),
		ClusterDistanceThreshold: getEnvAsFloatOrDefault("CLUSTER_DISTANCE_THRESHOLD", 0.55),
		LanguageDetection:        getEnvAsBoolOrDefault("LANGUAGE_DETECTION", true),
		NodeEnv:                  getEnvOrDefault("NODE_ENV", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.ExtractionConcurrency < 1 || c.ExtractionConcurrency > 50 {
		return fmt.Errorf("EXTRACTION_CONCURRENCY must be between 1 and 50, got %d", c.ExtractionConcurrency)
	}

	if c.DownloadTimeout < time.Second || c.DownloadTimeout > 5*time.Minute {
		return fmt.Errorf("DOWNLOAD_TIMEOUT_MS must be between 1s and 5m, got %v", c.DownloadTimeout)
	}

	if c.DownloadMaxRetries < 0 || c.DownloadMaxRetries > 10 {
		return fmt.Errorf("DOWNLOAD_MAX_RETRIES must be between 0 and 10, got %d", c.DownloadMaxRetries)
	}

	if c.MaxImageSize < 1024 || c.MaxImageSize > 104857600 { // 1KB to 100MB
		return fmt.Errorf("MAX_IMAGE_SIZE must be between 1KB and 100MB, got %d", c.MaxImageSize)
	}

	if c.OCRMinConfidence <= 0 || c.OCRMinConfidence > 100 {
		return fmt.Errorf("OCR_MIN_CONFIDENCE must be in (0, 100], got %.1f", c.OCRMinConfidence)
	}

	if c.ClusterDistanceThreshold <= 0 || c.ClusterDistanceThreshold >= 2 {
		return fmt.Errorf("CLUSTER_DISTANCE_THRESHOLD must be in (0, 2), got %.3f", c.ClusterDistanceThreshold)
	}

	if c.EmbeddingDimensions < 1 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDimensions)
	}

	switch c.EmbeddingProvider {
	case "voyage", "cohere":
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be voyage or cohere, got %q", c.EmbeddingProvider)
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	return nil
}

// ValidateWorker adds the checks only the queue worker needs
func (c *Config) ValidateWorker() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.QueueBackend != QueueBackendRedis && c.QueueBackend != QueueBackendAsynq {
		return fmt.Errorf("QUEUE_BACKEND must be %s or %s, got %q", QueueBackendRedis, QueueBackendAsynq, c.QueueBackend)
	}

	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}

	return nil
}

// EmbeddingAPIKey returns the key for the selected embedding provider
func (c *Config) EmbeddingAPIKey() string {
	if c.EmbeddingProvider == "cohere" {
		return c.CohereAPIKey
	}
	return c.VoyageAPIKey
}

// EmbeddingModel returns the model for the selected embedding provider
func (c *Config) EmbeddingModel() string {
	if c.EmbeddingProvider == "cohere" {
		return c.CohereModel
	}
	return c.VoyageModel
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDurationOrDefault accepts Go duration strings ("24h", "90m")
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

/**
 * Queue Consumer for the AdTopics Worker
 *
 * Consumes ad mining tasks through Asynq.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/adtopics-worker/internal/processor"
)

// Consumer handles job consumption from the Asynq queue
type Consumer struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.AdProcessorInterface
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.AdProcessorInterface
	ProcessingTimeout int64 // milliseconds, default 10 minutes
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10, // Priority 10 for main queue
				"default":     1,  // Priority 1 for fallback
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, payload=%d bytes, error=%v",
					task.Type(), len(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		config:    cfg,
	}

	mux.HandleFunc(TaskTypeProcessAds, consumer.handleProcessAds)

	return consumer, nil
}

// retryDelay backs off exponentially: 10s, 20s, 40s, capped at 60s
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")
	c.server.Shutdown()
	log.Printf("Queue consumer stopped")
	return nil
}

// handleProcessAds processes an ad mining task
func (c *Consumer) handleProcessAds(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var payload JobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal job data: %w: %w", err, asynq.SkipRetry)
	}
	if err := payload.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w: %w", err, asynq.SkipRetry)
	}

	log.Printf("[Job %s] Processing ad batch: ads=%d, language=%q",
		payload.JobID, len(payload.Ads), payload.Language)

	if err := c.processor.UpdateJobStatus(ctx, payload.JobID, "processing", 0, processingMetadata(&payload)); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to processing: %v", payload.JobID, err)
	}

	timeout := time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	result, err := runJob(ctx, c.processor, &payload, timeout)
	duration := time.Since(startTime)

	if err != nil {
		log.Printf("[Job %s] Processing failed after %v: %v", payload.JobID, duration, err)

		if updateErr := c.processor.UpdateJobStatus(ctx, payload.JobID, "failed", 100, failedMetadata(err, duration)); updateErr != nil {
			log.Printf("[Job %s] Warning: Failed to update status to failed: %v", payload.JobID, updateErr)
		}

		return fmt.Errorf("ad processing failed: %w", err)
	}

	log.Printf("[Job %s] Processing completed successfully in %v: phrases=%d, clusters=%d",
		payload.JobID, duration, result.PhrasesTotal, result.ClustersFound)

	if err := c.processor.UpdateJobStatus(ctx, payload.JobID, "completed", 100, completedMetadata(result)); err != nil {
		log.Printf("[Job %s] Warning: Failed to update status to completed: %v", payload.JobID, err)
	}

	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"backend":     "asynq",
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
	}
}

/**
 * Direct Redis Queue Consumer for the AdTopics Worker
 *
 * Compatible with the TypeScript RedisQueue implementation.
 * Uses simple Redis LIST operations: job IDs on the list, job bodies in the
 * "<queue>:data" hash, status sets and a pub/sub events channel.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/adtopics-worker/internal/processor"
)

// RedisJobData represents a job from the Redis queue
type RedisJobData struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Payload    JobPayload `json:"payload"`
	CreatedAt  time.Time  `json:"createdAt"`
	Attempts   int        `json:"attempts"`
	MaxRetries int        `json:"maxRetries"`
}

// queueKeys names the Redis keys of one queue
type queueKeys struct {
	queue string
}

func (k queueKeys) data() string       { return k.queue + ":data" }
func (k queueKeys) processing() string { return k.queue + ":processing" }
func (k queueKeys) completed() string  { return k.queue + ":completed" }
func (k queueKeys) failed() string     { return k.queue + ":failed" }
func (k queueKeys) results() string    { return k.queue + ":results" }
func (k queueKeys) errors() string     { return k.queue + ":errors" }
func (k queueKeys) events() string     { return k.queue + ":events" }

var errNoJobs = fmt.Errorf("no jobs available")

// RedisConsumer handles job consumption from Redis queue
type RedisConsumer struct {
	client    *redis.Client
	processor processor.AdProcessorInterface
	config    *RedisConsumerConfig
	keys      queueKeys
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// RedisConsumerConfig holds consumer configuration
type RedisConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.AdProcessorInterface
	ProcessingTimeout int64 // milliseconds, default 10 minutes
}

// NewRedisConsumer creates a new Redis-based queue consumer
func NewRedisConsumer(cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	consumer, err := NewRedisConsumerWithClient(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return consumer, nil
}

// NewRedisConsumerWithClient creates a consumer over an existing client
func NewRedisConsumerWithClient(client *redis.Client, cfg *RedisConsumerConfig) (*RedisConsumer, error) {
	if cfg.QueueName == "" {
		cfg.QueueName = DefaultQueueName
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	consumerCtx, cancel := context.WithCancel(context.Background())

	return &RedisConsumer{
		client:    client,
		processor: cfg.Processor,
		config:    cfg,
		keys:      queueKeys{queue: cfg.QueueName},
		ctx:       consumerCtx,
		cancel:    cancel,
	}, nil
}

// Start begins processing jobs from the queue
func (c *RedisConsumer) Start() error {
	log.Printf("Starting Redis queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.worker(i)
	}

	log.Println("Queue consumer started successfully")
	return nil
}

// Stop gracefully stops the consumer
func (c *RedisConsumer) Stop() error {
	log.Println("Stopping queue consumer...")
	c.cancel()
	c.wg.Wait()
	return c.client.Close()
}

// worker is a goroutine that processes jobs
func (c *RedisConsumer) worker(id int) {
	defer c.wg.Done()
	log.Printf("Worker %d started", id)

	for {
		select {
		case <-c.ctx.Done():
			log.Printf("Worker %d stopping", id)
			return
		default:
			if err := c.processNextJob(); err != nil {
				if err != errNoJobs && c.ctx.Err() == nil {
					log.Printf("Worker %d error: %v", id, err)
					time.Sleep(1 * time.Second)
				}
			}
		}
	}
}

// processNextJob fetches and processes the next job from the queue
func (c *RedisConsumer) processNextJob() error {
	// Block for up to 5 seconds waiting for a job
	result, err := c.client.BRPop(c.ctx, 5*time.Second, c.config.QueueName).Result()
	if err != nil {
		if err == redis.Nil {
			return errNoJobs
		}
		return fmt.Errorf("failed to fetch job: %w", err)
	}

	if len(result) < 2 {
		return fmt.Errorf("invalid job result")
	}

	return c.handleJob(result[1])
}

// handleJob runs one job by queue ID, re-queueing it on failure until its
// retries are used up
func (c *RedisConsumer) handleJob(id string) error {
	jobData, err := c.client.HGet(c.ctx, c.keys.data(), id).Result()
	if err != nil {
		return fmt.Errorf("failed to get job data: %w", err)
	}

	var job RedisJobData
	if err := json.Unmarshal([]byte(jobData), &job); err != nil {
		c.updateJobStatus(id, "failed", map[string]interface{}{"error": fmt.Sprintf("invalid job data: %v", err)})
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	if err := job.Payload.Validate(); err != nil {
		c.updateJobStatus(jobIDOf(&job), "failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("invalid job %s: %w", job.ID, err)
	}

	jobID := job.Payload.JobID
	c.updateJobStatus(jobID, "processing", processingMetadata(&job.Payload))

	log.Printf("Processing job %s: %d ads", jobID, len(job.Payload.Ads))

	startTime := time.Now()
	timeout := time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	processResult, err := runJob(c.ctx, c.processor, &job.Payload, timeout)
	if err != nil {
		log.Printf("Job %s failed: %v", jobID, err)

		job.Attempts++
		if job.Attempts < job.MaxRetries && c.ctx.Err() == nil {
			updatedData, _ := json.Marshal(job)
			pipe := c.client.TxPipeline()
			pipe.HSet(c.ctx, c.keys.data(), job.ID, updatedData)
			pipe.SRem(c.ctx, c.keys.processing(), jobID)
			pipe.LPush(c.ctx, c.config.QueueName, job.ID)
			if _, perr := pipe.Exec(c.ctx); perr != nil {
				log.Printf("Job %s could not be re-queued: %v", jobID, perr)
			} else {
				log.Printf("Job %s re-queued for retry (attempt %d/%d)", jobID, job.Attempts, job.MaxRetries)
				return nil
			}
		}

		md := failedMetadata(err, time.Since(startTime))
		md["attempts"] = job.Attempts
		c.updateJobStatus(jobID, "failed", md)
		return nil
	}

	c.updateJobStatus(jobID, "completed", processResult)
	log.Printf("Job %s completed successfully", jobID)
	return nil
}

func jobIDOf(job *RedisJobData) string {
	if job.Payload.JobID != "" {
		return job.Payload.JobID
	}
	return job.ID
}

// updateJobStatus updates the status of a job in both Redis AND PostgreSQL
func (c *RedisConsumer) updateJobStatus(jobID string, status string, result interface{}) {
	ctx := context.Background()

	switch status {
	case "processing":
		c.client.SAdd(ctx, c.keys.processing(), jobID)
	case "completed":
		c.client.SRem(ctx, c.keys.processing(), jobID)
		c.client.SAdd(ctx, c.keys.completed(), jobID)
		if result != nil {
			resultData, _ := json.Marshal(result)
			c.client.HSet(ctx, c.keys.results(), jobID, resultData)
		}
	case "failed":
		c.client.SRem(ctx, c.keys.processing(), jobID)
		c.client.SAdd(ctx, c.keys.failed(), jobID)
		if result != nil {
			errorData, _ := json.Marshal(result)
			c.client.HSet(ctx, c.keys.errors(), jobID, errorData)
		}
	}

	// PostgreSQL for persistent job tracking
	var (
		progress int
		metadata map[string]interface{}
	)
	switch r := result.(type) {
	case *processor.ProcessResult:
		progress = 100
		metadata = completedMetadata(r)
	case map[string]interface{}:
		metadata = r
		if status == "failed" {
			progress = 100
		}
	}
	if err := c.processor.UpdateJobStatus(ctx, jobID, status, progress, metadata); err != nil {
		log.Printf("[PostgreSQL] WARNING: Failed to update job %s to %s: %v", jobID, status, err)
	}

	// Publish event for WebSocket streaming
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"jobId":     jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	eventData, _ := json.Marshal(event)
	c.client.Publish(ctx, c.keys.events(), eventData)
}

// GetStats returns queue statistics
func (c *RedisConsumer) GetStats(ctx context.Context) (map[string]int64, error) {
	pipe := c.client.Pipeline()
	waiting := pipe.LLen(ctx, c.config.QueueName)
	processing := pipe.SCard(ctx, c.keys.processing())
	completed := pipe.SCard(ctx, c.keys.completed())
	failed := pipe.SCard(ctx, c.keys.failed())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}

	return map[string]int64{
		"waiting":    waiting.Val(),
		"processing": processing.Val(),
		"completed":  completed.Val(),
		"failed":     failed.Val(),
	}, nil
}

/**
 * Job producers for both queue backends
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/adverant/nexus/adtopics-worker/internal/config"
)

// Enqueuer submits mining jobs to a worker queue
type Enqueuer interface {
	// Enqueue validates and queues the payload, assigning a job ID when the
	// payload has none. Returns the job ID.
	Enqueue(ctx context.Context, payload *JobPayload) (string, error)
	Close() error
}

// NewEnqueuer returns the producer matching the configured queue backend
func NewEnqueuer(cfg *config.Config) (Enqueuer, error) {
	switch cfg.QueueBackend {
	case config.QueueBackendAsynq:
		return NewAsynqEnqueuer(cfg.RedisURL, cfg.QueueName)
	case config.QueueBackendRedis, "":
		return NewRedisEnqueuer(cfg.RedisURL, cfg.QueueName)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}

func prepare(payload *JobPayload) ([]byte, error) {
	if payload.JobID == "" {
		payload.JobID = uuid.New().String()
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(payload)
}

// AsynqEnqueuer queues TaskTypeProcessAds tasks for Consumer
type AsynqEnqueuer struct {
	client    *asynq.Client
	queueName string
}

// NewAsynqEnqueuer creates an Asynq producer
func NewAsynqEnqueuer(redisURL, queueName string) (*AsynqEnqueuer, error) {
	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &AsynqEnqueuer{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
	}, nil
}

// Enqueue queues the payload. The job ID doubles as the task ID so a job
// cannot be queued twice while it is pending.
func (e *AsynqEnqueuer) Enqueue(ctx context.Context, payload *JobPayload) (string, error) {
	data, err := prepare(payload)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(TaskTypeProcessAds, data)
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(e.queueName),
		asynq.MaxRetry(DefaultMaxRetries),
		asynq.TaskID(payload.JobID),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}
	return info.ID, nil
}

// Close releases the Redis connection
func (e *AsynqEnqueuer) Close() error {
	return e.client.Close()
}

// RedisEnqueuer queues jobs in the LIST layout read by RedisConsumer
type RedisEnqueuer struct {
	client *redis.Client
	keys   queueKeys
}

// NewRedisEnqueuer creates a LIST producer
func NewRedisEnqueuer(redisURL, queueName string) (*RedisEnqueuer, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return NewRedisEnqueuerWithClient(redis.NewClient(opt), queueName), nil
}

// NewRedisEnqueuerWithClient creates a LIST producer over an existing client
func NewRedisEnqueuerWithClient(client *redis.Client, queueName string) *RedisEnqueuer {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &RedisEnqueuer{client: client, keys: queueKeys{queue: queueName}}
}

// Enqueue stores the job body in the data hash and pushes its ID
func (e *RedisEnqueuer) Enqueue(ctx context.Context, payload *JobPayload) (string, error) {
	if _, err := prepare(payload); err != nil {
		return "", err
	}

	job := RedisJobData{
		ID:         payload.JobID,
		Type:       TaskTypeProcessAds,
		Payload:    *payload,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job %s: %w", job.ID, err)
	}

	_, err = e.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, e.keys.data(), job.ID, data)
		pipe.LPush(ctx, e.keys.queue, job.ID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return job.ID, nil
}

// Close releases the Redis connection
func (e *RedisEnqueuer) Close() error {
	return e.client.Close()
}

/**
 * Redis cache for per-image extraction results
 *
 * Keys are the md5 of the image URL so re-mined creatives skip download and OCR.
 */

package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "adtopics:extraction:"

// ExtractionCache stores JSON values under hashed image URLs
type ExtractionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewExtractionCache connects to Redis at redisURL
func NewExtractionCache(redisURL string, ttl time.Duration) (*ExtractionCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewExtractionCacheWithClient(redis.NewClient(opts), ttl), nil
}

// NewExtractionCacheWithClient wraps an existing client
func NewExtractionCacheWithClient(client *redis.Client, ttl time.Duration) *ExtractionCache {
	return &ExtractionCache{client: client, ttl: ttl}
}

func (c *ExtractionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Key returns the Redis key for an image URL
func Key(imageURL string) string {
	sum := md5.Sum([]byte(imageURL))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get decodes the cached value into dst. A miss returns false with no error.
func (c *ExtractionCache) Get(ctx context.Context, imageURL string, dst interface{}) (bool, error) {
	data, err := c.client.Get(ctx, Key(imageURL)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached extraction: %w", err)
	}
	return true, nil
}

// Set stores value for the configured TTL
func (c *ExtractionCache) Set(ctx context.Context, imageURL string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, Key(imageURL), data, c.ttl).Err()
}

// Delete drops the cached value for an image URL
func (c *ExtractionCache) Delete(ctx context.Context, imageURL string) error {
	return c.client.Del(ctx, Key(imageURL)).Err()
}

func (c *ExtractionCache) Close() error {
	return c.client.Close()
}

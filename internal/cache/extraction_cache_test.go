package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a := Key("https://example.com/a.png")
	b := Key("https://example.com/b.png")

	if !strings.HasPrefix(a, keyPrefix) {
		t.Errorf("Key() = %q, want prefix %q", a, keyPrefix)
	}
	if len(a) != len(keyPrefix)+32 {
		t.Errorf("Key() length = %d, want md5 hex suffix", len(a))
	}
	if a == b {
		t.Error("distinct URLs produced the same key")
	}
	if a != Key("https://example.com/a.png") {
		t.Error("Key() not deterministic")
	}
}

func TestExtractionCacheRoundTrip(t *testing.T) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		t.Skipf("REDIS_URL not set, skipping Redis cache test")
	}

	c, err := NewExtractionCache(redisURL, time.Minute)
	if err != nil {
		t.Fatalf("NewExtractionCache() error = %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Skipf("Redis not reachable: %v", err)
	}

	url := "https://example.com/cache-test-" + time.Now().Format(time.RFC3339Nano)
	defer c.Delete(ctx, url)

	type entry struct {
		Headline string `json:"headline"`
	}

	var got entry
	hit, err := c.Get(ctx, url, &got)
	if err != nil || hit {
		t.Fatalf("Get() before Set = (%v, %v), want miss", hit, err)
	}

	if err := c.Set(ctx, url, entry{Headline: "Buy Running Shoes Online"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	hit, err = c.Get(ctx, url, &got)
	if err != nil || !hit {
		t.Fatalf("Get() after Set = (%v, %v), want hit", hit, err)
	}
	if got.Headline != "Buy Running Shoes Online" {
		t.Errorf("cached headline = %q", got.Headline)
	}
}

func TestNewExtractionCacheRejectsBadURL(t *testing.T) {
	if _, err := NewExtractionCache("not a url", time.Minute); err == nil {
		t.Error("NewExtractionCache() accepted an invalid URL")
	}
}

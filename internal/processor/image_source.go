package processor

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/adverant/nexus/adtopics-worker/internal/logging"
)

// ImageSource fetches raw image bytes by URL
type ImageSource interface {
	Fetch(ctx context.Context, imageURL string) ([]byte, error)
}

// HTTPImageSourceConfig configures downloads
type HTTPImageSourceConfig struct {
	Timeout    time.Duration // per attempt
	MaxRetries int
	MaxSize    int64
	Client     *http.Client
	Logger     *logging.Logger
}

// HTTPImageSource downloads images with retry and a size limit
type HTTPImageSource struct {
	client         *http.Client
	timeout        time.Duration
	maxRetries     int
	maxSize        int64
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *logging.Logger
}

// NewHTTPImageSource creates an image source
func NewHTTPImageSource(cfg HTTPImageSourceConfig) *HTTPImageSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 20 * 1024 * 1024
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("image-source")
	}

	return &HTTPImageSource{
		client:         cfg.Client,
		timeout:        cfg.Timeout,
		maxRetries:     cfg.MaxRetries,
		maxSize:        cfg.MaxSize,
		initialBackoff: 500 * time.Millisecond,
		maxBackoff:     8 * time.Second,
		logger:         cfg.Logger,
	}
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.code, e.status)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// Fetch downloads imageURL, retrying transport errors and 5xx/429 answers
// with exponential backoff
func (s *HTTPImageSource) Fetch(ctx context.Context, imageURL string) ([]byte, error) {
	attempts := s.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		data, err := s.fetchOnce(ctx, imageURL)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if se, ok := err.(*statusError); ok && !se.retryable() {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		backoff := time.Duration(float64(s.initialBackoff) * math.Pow(2, float64(attempt-1)))
		if backoff > s.maxBackoff {
			backoff = s.maxBackoff
		}
		s.logger.Debug("Download attempt failed, retrying",
			"url", imageURL, "attempt", attempt, "backoff", backoff, "error", err)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during retry backoff")
		}
	}

	if attempts > 1 {
		return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
	}
	return nil, lastErr
}

func (s *HTTPImageSource) fetchOnce(ctx context.Context, imageURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}
	if resp.ContentLength > s.maxSize {
		return nil, fmt.Errorf("image size exceeds maximum: %d > %d bytes", resp.ContentLength, s.maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("image size exceeds maximum of %d bytes", s.maxSize)
	}
	return data, nil
}

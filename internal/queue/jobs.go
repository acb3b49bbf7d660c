/**
 * Mining job payloads shared by both queue backends
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/adverant/nexus/adtopics-worker/internal/errors"
	"github.com/adverant/nexus/adtopics-worker/internal/processor"
)

const (
	// TaskTypeProcessAds is the task type of an ad mining job
	TaskTypeProcessAds = "adtopics:process-ads"

	DefaultQueueName         = "adtopics:jobs"
	DefaultMaxRetries        = 3
	DefaultProcessingTimeout = 10 * time.Minute
)

// JobPayload contains the actual job data
type JobPayload struct {
	JobID    string                 `json:"jobId"`
	Ads      []processor.AdRecord   `json:"ads"`
	Language string                 `json:"language,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// UnmarshalJSON also accepts a bare "imageUrls" list, which producers send
// when they have no ad metadata
func (p *JobPayload) UnmarshalJSON(data []byte) error {
	type Alias JobPayload
	aux := &struct {
		ImageURLs []string `json:"imageUrls,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to unmarshal JobPayload: %w", err)
	}

	for _, url := range aux.ImageURLs {
		p.Ads = append(p.Ads, processor.AdRecord{ImageURL: url})
	}
	return nil
}

// Validate checks the payload before it is queued or processed
func (p *JobPayload) Validate() error {
	if p.JobID == "" {
		return fmt.Errorf("jobId is required")
	}
	if len(p.Ads) == 0 {
		return fmt.Errorf("job %s has no ads", p.JobID)
	}
	return nil
}

func (p *JobPayload) request() *processor.ProcessRequest {
	return &processor.ProcessRequest{
		JobID:    p.JobID,
		Ads:      p.Ads,
		Language: p.Language,
		Metadata: p.Metadata,
	}
}

func processingMetadata(p *JobPayload) map[string]interface{} {
	md := map[string]interface{}{"adsTotal": len(p.Ads)}
	if p.Language != "" {
		md["language"] = p.Language
	}
	for k, v := range p.Metadata {
		if _, taken := md[k]; !taken {
			md[k] = v
		}
	}
	return md
}

func completedMetadata(result *processor.ProcessResult) map[string]interface{} {
	md := map[string]interface{}{
		"processingTime": result.ProcessingTimeMs,
		"adsTotal":       result.AdsTotal,
		"adsExtracted":   result.AdsExtracted,
		"adsFailed":      result.AdsFailed,
		"adsFiltered":    result.AdsFiltered,
		"phrasesTotal":   result.PhrasesTotal,
		"clustersFound":  result.ClustersFound,
		"vectorsStored":  result.VectorsStored,
	}
	if result.ClusteringError != "" {
		md["clusteringError"] = result.ClusteringError
	}
	return md
}

// failedMetadata carries "error" and "code" for the job row plus the
// structured error fields when the failure is a ProcessingError
func failedMetadata(err error, duration time.Duration) map[string]interface{} {
	md := map[string]interface{}{
		"error":          err.Error(),
		"processingTime": duration.Milliseconds(),
	}
	if perr, ok := err.(*errors.ProcessingError); ok {
		for k, v := range perr.ToMap() {
			md[k] = v
		}
		md["error"] = perr.Describe()
		md["code"] = string(perr.Code)
	}
	return md
}

// runJob processes one payload under a deadline. A deadline hit becomes a
// PROCESSING_TIMEOUT error.
func runJob(ctx context.Context, proc processor.AdProcessorInterface, payload *JobPayload, timeout time.Duration) (*processor.ProcessResult, error) {
	if timeout <= 0 {
		timeout = DefaultProcessingTimeout
	}

	log.Printf("[Job %s] Processing timeout set to: %v", payload.JobID, timeout)

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := proc.ProcessAds(processCtx, payload.request())
	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			if perr, ok := err.(*errors.ProcessingError); ok && perr.Code == errors.ErrorProcessingTimeout {
				return nil, perr
			}
			return nil, errors.NewProcessingTimeoutError(payload.JobID, timeout, err)
		}
		return nil, err
	}
	return result, nil
}

package errors

import (
	"fmt"
	"time"
)

/**
 * Custom error types for the AdTopics Worker
 *
 * Design Pattern: Factory Pattern for error creation
 * Per-ad failures are recorded on the ad (Describe), job failures on the job row (ToMap).
 */

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Processing errors
	ErrorProcessingTimeout     ErrorCode = "PROCESSING_TIMEOUT"
	ErrorDependencyUnavailable ErrorCode = "DEPENDENCY_UNAVAILABLE"
	ErrorOCRFailed             ErrorCode = "OCR_FAILED"
	ErrorClusteringFailed      ErrorCode = "CLUSTERING_FAILED"

	// Input errors
	ErrorNoImageURL        ErrorCode = "NO_IMAGE_URL"
	ErrorDownloadFailed    ErrorCode = "DOWNLOAD_FAILED"
	ErrorImageDecodeFailed ErrorCode = "IMAGE_DECODE_FAILED"

	// Storage errors
	ErrorStorageFailed  ErrorCode = "STORAGE_FAILED"
	ErrorDatabaseFailed ErrorCode = "DATABASE_FAILED"

	// Network errors
	ErrorNetworkTimeout ErrorCode = "NETWORK_TIMEOUT"
	ErrorAPICallFailed  ErrorCode = "API_CALL_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Describe returns the human readable form stored on ad records
func (e *ProcessingError) Describe() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Factory functions for common errors

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewDependencyUnavailableError(component string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDependencyUnavailable,
		Message:   fmt.Sprintf("%s unavailable", component),
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"component": component,
		},
		Cause: cause,
	}
}

func NewNoImageURLError() *ProcessingError {
	return &ProcessingError{
		Code:      ErrorNoImageURL,
		Message:   "No image URL provided",
		Timestamp: time.Now(),
	}
}

func NewDownloadFailedError(imageURL string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorDownloadFailed,
		Message:   "Failed to download image",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"image_url": imageURL,
		},
		Cause: cause,
	}
}

func NewImageDecodeError(mimeType string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorImageDecodeFailed,
		Message:   "Failed to decode image",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"mime_type": mimeType,
		},
		Cause: cause,
	}
}

func NewOCRFailedError(engine string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorOCRFailed,
		Message:   "OCR extraction failed",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"ocr_engine": engine,
		},
		Cause: cause,
	}
}

func NewClusteringFailedError(phraseCount int, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorClusteringFailed,
		Message:   "Clustering failed",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"phrase_count": phraseCount,
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store mining results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}

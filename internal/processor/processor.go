/**
 * Ad Processor for the AdTopics Worker
 *
 * Orchestrates one mining job over a batch of ad creatives:
 * - OCR extraction of headline, description and sitelinks per creative
 * - Optional language filter
 * - Keyphrase extraction per ad
 * - Embedding-based topic clustering
 * - Persistence to PostgreSQL + Qdrant
 */

package processor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/adverant/nexus/adtopics-worker/internal/clustering"
	"github.com/adverant/nexus/adtopics-worker/internal/errors"
	"github.com/adverant/nexus/adtopics-worker/internal/keyphrase"
	"github.com/adverant/nexus/adtopics-worker/internal/langdetect"
	"github.com/adverant/nexus/adtopics-worker/internal/logging"
	"github.com/adverant/nexus/adtopics-worker/internal/storage"
)

// AdProcessorInterface defines the interface for ad batch processing
type AdProcessorInterface interface {
	ProcessAds(ctx context.Context, req *ProcessRequest) (*ProcessResult, error)
	UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error
}

// LanguageDetector identifies the language of a text, "" when unknown
type LanguageDetector interface {
	Detect(text string) string
}

// ResultStore persists mining results and job status
type ResultStore interface {
	StoreMiningResult(ctx context.Context, input *storage.MiningResultInput) (*storage.MiningResultOutput, error)
	UpdateJobStatus(ctx context.Context, update *storage.JobUpdate) error
}

// AdRecord is one ad of a mining batch
type AdRecord struct {
	Title      string `json:"title,omitempty" yaml:"title,omitempty"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
	CreativeID string `json:"creative_id,omitempty" yaml:"creative_id,omitempty"`
	ImageURL   string `json:"image_url" yaml:"image_url"`
}

// ProcessRequest represents an ad batch mining request
type ProcessRequest struct {
	JobID    string
	Ads      []AdRecord
	Language string // optional ISO 639-1 filter
	Metadata map[string]interface{}
}

// AdResult is the per-ad outcome
type AdResult struct {
	Ad         AdRecord       `json:"ad" yaml:"ad"`
	Text       *AdTextContent `json:"text" yaml:"text"`
	Language   string         `json:"language,omitempty" yaml:"language,omitempty"`
	Keyphrases []string       `json:"keyphrases" yaml:"keyphrases"`
	Filtered   bool           `json:"filtered,omitempty" yaml:"filtered,omitempty"`
}

// ProcessResult represents the processing result
type ProcessResult struct {
	JobID            string                       `json:"job_id" yaml:"job_id"`
	AdsTotal         int                          `json:"ads_total" yaml:"ads_total"`
	AdsExtracted     int                          `json:"ads_extracted" yaml:"ads_extracted"`
	AdsFailed        int                          `json:"ads_failed" yaml:"ads_failed"`
	AdsFiltered      int                          `json:"ads_filtered" yaml:"ads_filtered"`
	PhrasesTotal     int                          `json:"phrases_total" yaml:"phrases_total"`
	ClustersFound    int                          `json:"clusters_found" yaml:"clusters_found"`
	VectorsStored    int                          `json:"vectors_stored" yaml:"vectors_stored"`
	ClusteringError  string                       `json:"clustering_error,omitempty" yaml:"clustering_error,omitempty"`
	ProcessingTimeMs int64                        `json:"processing_time_ms" yaml:"processing_time_ms"`
	Clustering       *clustering.ClusteringResult `json:"clustering" yaml:"clustering"`
	Ads              []AdResult                   `json:"ads" yaml:"ads"`
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Extractor  *AdTextExtractor
	Keyphrases keyphrase.ExtractorConfig
	Clusterer  *clustering.Clusterer
	Languages  LanguageDetector // optional
	Store      ResultStore      // optional, nil disables persistence
	Logger     *logging.Logger
}

// AdProcessor runs mining jobs
type AdProcessor struct {
	extractor  *AdTextExtractor
	keyphrases keyphrase.ExtractorConfig
	clusterer  *clustering.Clusterer
	languages  LanguageDetector
	store      ResultStore
	logger     *logging.Logger
}

// NewAdProcessor creates a new ad processor
func NewAdProcessor(cfg *ProcessorConfig) (*AdProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Extractor == nil {
		return nil, fmt.Errorf("ad text extractor is required")
	}

	if cfg.Clusterer == nil {
		return nil, fmt.Errorf("clusterer is required")
	}

	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("processor")
	}

	if cfg.Store == nil {
		cfg.Logger.Warn("No result store configured, mining results will not be persisted")
	}

	return &AdProcessor{
		extractor:  cfg.Extractor,
		keyphrases: cfg.Keyphrases,
		clusterer:  cfg.Clusterer,
		languages:  cfg.Languages,
		store:      cfg.Store,
		logger:     cfg.Logger,
	}, nil
}

// ProcessAds mines one batch of ads through the complete pipeline
func (p *AdProcessor) ProcessAds(ctx context.Context, req *ProcessRequest) (*ProcessResult, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	startTime := time.Now()
	log.Printf("[Job %s] Starting ad mining pipeline (%d ads)", req.JobID, len(req.Ads))

	// Step 1: OCR must be usable before any download starts
	log.Printf("[Job %s] Step 1: Checking OCR availability", req.JobID)
	if err := p.extractor.Available(); err != nil {
		return nil, err
	}

	// Step 2: Bounded parallel extraction
	log.Printf("[Job %s] Step 2: Extracting ad text from %d creatives", req.JobID, len(req.Ads))
	urls := make([]string, len(req.Ads))
	for i, ad := range req.Ads {
		urls[i] = ad.ImageURL
	}
	contents := p.extractor.ExtractBatch(ctx, urls)
	if err := ctx.Err(); err != nil {
		return nil, errors.NewProcessingTimeoutError(req.JobID, time.Since(startTime), err)
	}

	result := &ProcessResult{
		JobID:    req.JobID,
		AdsTotal: len(req.Ads),
		Ads:      make([]AdResult, len(req.Ads)),
	}
	for i, ad := range req.Ads {
		result.Ads[i] = AdResult{Ad: ad, Text: contents[i], Keyphrases: []string{}}
		if contents[i].Error != "" {
			result.AdsFailed++
			log.Printf("[Job %s] Ad %d extraction failed: %s", req.JobID, i, contents[i].Error)
		} else if contents[i].HasText() {
			result.AdsExtracted++
		}
	}
	log.Printf("[Job %s] Extraction complete: extracted=%d, failed=%d",
		req.JobID, result.AdsExtracted, result.AdsFailed)

	// Step 3: Language enrichment and filter
	if p.languages != nil {
		log.Printf("[Job %s] Step 3: Detecting ad languages (filter=%q)", req.JobID, req.Language)
		for i := range result.Ads {
			ad := &result.Ads[i]
			if ad.Text.Error != "" || ad.Text.RawText == "" {
				continue
			}
			ad.Language = p.languages.Detect(ad.Text.RawText)
			if req.Language != "" && ad.Language != "" && !langdetect.Matches(ad.Language, req.Language) {
				ad.Filtered = true
				result.AdsFiltered++
			}
		}
		log.Printf("[Job %s] Language filter removed %d ads", req.JobID, result.AdsFiltered)
	} else if req.Language != "" {
		log.Printf("[Job %s] Step 3: Skipped, language filter %q requested without a detector", req.JobID, req.Language)
	}

	// Step 4: Keyphrases per ad
	log.Printf("[Job %s] Step 4: Extracting keyphrases", req.JobID)
	extractor := p.keyphraseExtractor(req.Language)
	var phrases []clustering.PhraseInfo
	for i := range result.Ads {
		ad := &result.Ads[i]
		if ad.Filtered || ad.Text.Error != "" {
			continue
		}
		kps := extractor.ExtractFromAd(ad.Text.Headline, ad.Text.Description, ad.Text.RawText, ad.Text.Sitelinks)
		if kps == nil {
			kps = []string{}
		}
		ad.Keyphrases = kps
		for _, kp := range kps {
			phrases = append(phrases, clustering.PhraseInfo{
				Phrase:     kp,
				AdTitle:    ad.Ad.Title,
				AdURL:      ad.Ad.URL,
				CreativeID: ad.Ad.CreativeID,
			})
		}
	}
	result.PhrasesTotal = len(phrases)
	log.Printf("[Job %s] Keyphrases extracted: %d", req.JobID, len(phrases))

	// Step 5: Topic clustering, failures stay inside the result
	log.Printf("[Job %s] Step 5: Clustering %d keyphrases", req.JobID, len(phrases))
	result.Clustering = p.clusterer.Cluster(ctx, phrases)
	result.ClustersFound = len(result.Clustering.Clusters)
	result.ClusteringError = result.Clustering.Error
	if result.ClusteringError != "" {
		log.Printf("[Job %s] WARNING: %s", req.JobID, result.ClusteringError)
	} else {
		log.Printf("[Job %s] Clustering complete: clusters=%d, unclustered=%d",
			req.JobID, result.ClustersFound, len(result.Clustering.Unclustered))
	}

	// Step 6: Persist
	if p.store != nil {
		log.Printf("[Job %s] Step 6: Storing mining results", req.JobID)
		out, err := p.store.StoreMiningResult(ctx, &storage.MiningResultInput{
			JobID:      req.JobID,
			Language:   req.Language,
			Ads:        adRecords(result.Ads),
			Phrases:    phrases,
			Clustering: result.Clustering,
		})
		if err != nil {
			return nil, errors.NewStorageFailedError(req.JobID, err)
		}
		result.VectorsStored = out.VectorsStored
		log.Printf("[Job %s] Stored: ads=%d, clusters=%d, vectors=%d",
			req.JobID, out.AdsStored, out.ClustersStored, out.VectorsStored)
	} else {
		log.Printf("[Job %s] Step 6: Skipping persistence (no store configured)", req.JobID)
	}

	// Step 7: Result
	result.ProcessingTimeMs = time.Since(startTime).Milliseconds()
	log.Printf("[Job %s] Ad mining complete in %dms: phrases=%d, clusters=%d",
		req.JobID, result.ProcessingTimeMs, result.PhrasesTotal, result.ClustersFound)

	return result, nil
}

// UpdateJobStatus updates job status in the result store
func (p *AdProcessor) UpdateJobStatus(ctx context.Context, jobID string, status string, progress int, metadata map[string]interface{}) error {
	if p.store == nil {
		p.logger.Debug("Job status not persisted", "job", jobID, "status", status, "progress", progress)
		return nil
	}

	return p.store.UpdateJobStatus(ctx, jobUpdateFromMetadata(jobID, status, progress, metadata))
}

// jobUpdateFromMetadata lifts known metadata keys into typed columns
func jobUpdateFromMetadata(jobID, status string, progress int, metadata map[string]interface{}) *storage.JobUpdate {
	update := &storage.JobUpdate{
		JobID:    jobID,
		Status:   status,
		Metadata: map[string]interface{}{"progress": progress},
	}

	for k, v := range metadata {
		update.Metadata[k] = v
	}

	if metadata == nil {
		return update
	}
	if language, ok := metadata["language"].(string); ok {
		update.Language = language
	}
	if n, ok := metadata["adsTotal"].(int); ok {
		update.AdsTotal = n
	}
	if n, ok := metadata["adsExtracted"].(int); ok {
		update.AdsExtracted = n
	}
	if n, ok := metadata["phrasesTotal"].(int); ok {
		update.PhrasesTotal = n
	}
	if n, ok := metadata["clustersFound"].(int); ok {
		update.ClustersFound = n
	}
	if processingTime, ok := metadata["processingTime"].(int64); ok {
		update.ProcessingTimeMs = processingTime
	}
	if errorMsg, ok := metadata["error"].(string); ok {
		update.ErrorCode = "PROCESSING_ERROR"
		if code, ok := metadata["code"].(string); ok && code != "" {
			update.ErrorCode = code
		}
		update.ErrorMessage = errorMsg
	}
	return update
}

// keyphraseExtractor applies the request language to the configured extractor
func (p *AdProcessor) keyphraseExtractor(language string) *keyphrase.Extractor {
	cfg := p.keyphrases
	if language != "" {
		cfg.Language = language
	}
	return keyphrase.NewExtractor(cfg)
}

func adRecords(ads []AdResult) []storage.AdTextRecord {
	records := make([]storage.AdTextRecord, len(ads))
	for i, ad := range ads {
		records[i] = storage.AdTextRecord{
			Position:    i,
			CreativeID:  ad.Ad.CreativeID,
			Title:       ad.Ad.Title,
			URL:         ad.Ad.URL,
			ImageURL:    ad.Ad.ImageURL,
			Headline:    ad.Text.Headline,
			Description: ad.Text.Description,
			Sitelinks:   ad.Text.Sitelinks,
			RawText:     ad.Text.RawText,
			Language:    ad.Language,
			Keyphrases:  ad.Keyphrases,
			Error:       ad.Text.Error,
		}
	}
	return records
}

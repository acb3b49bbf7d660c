/**
 * Storage Manager for the AdTopics Worker
 *
 * Coordinates storage operations across PostgreSQL (ad texts, clusters, jobs)
 * and Qdrant (keyphrase vectors). Vectors are written first and removed again
 * when the relational write fails.
 */

package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/adtopics-worker/internal/clustering"
)

// phrasePointNamespace derives stable point IDs so a retried job overwrites
// its own vectors
var phrasePointNamespace = uuid.MustParse("6f1d8a52-3c1e-4f0b-9a57-2b8e4c1d7a90")

var (
	nullEscapePattern    = regexp.MustCompile(`\\u0000`)
	controlEscapePattern = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres *PostgresClient
	qdrant   *QdrantClient
}

// MiningResultInput is everything one mining job persists
type MiningResultInput struct {
	JobID      string
	Language   string
	Ads        []AdTextRecord
	Phrases    []clustering.PhraseInfo
	Clustering *clustering.ClusteringResult
}

// MiningResultOutput reports what was written
type MiningResultOutput struct {
	JobID          string
	AdsStored      int
	ClustersStored int
	VectorsStored  int
	PointIDs       []string
	StoredAt       time.Time
}

// PhraseMatch is a stored keyphrase similar to a query
type PhraseMatch struct {
	Phrase      string  `json:"phrase" yaml:"phrase"`
	ClusterName string  `json:"cluster_name,omitempty" yaml:"cluster_name,omitempty"`
	JobID       string  `json:"job_id" yaml:"job_id"`
	CreativeID  string  `json:"creative_id,omitempty" yaml:"creative_id,omitempty"`
	AdTitle     string  `json:"ad_title,omitempty" yaml:"ad_title,omitempty"`
	AdURL       string  `json:"ad_url,omitempty" yaml:"ad_url,omitempty"`
	Language    string  `json:"language,omitempty" yaml:"language,omitempty"`
	Score       float32 `json:"score" yaml:"score"`
}

// NewStorageManager creates a new storage manager
func NewStorageManager(postgresURL string, qdrantAddress string, qdrantCollection string, dimensions int) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := postgres.EnsureSchema(ctx); err != nil {
		postgres.Close()
		return nil, err
	}

	qdrant, err := NewQdrantClient(qdrantAddress, qdrantCollection, dimensions)
	if err != nil {
		postgres.Close() // Cleanup on failure
		return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
	}

	return &StorageManager{
		postgres: postgres,
		qdrant:   qdrant,
	}, nil
}

// StoreMiningResult stores keyphrase vectors in Qdrant, then the ad texts and
// clusters in PostgreSQL. A PostgreSQL failure deletes the new vectors.
func (sm *StorageManager) StoreMiningResult(ctx context.Context, input *MiningResultInput) (*MiningResultOutput, error) {
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}

	if input.JobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	// Step 1: Vectors first, fails fast on dimension mismatch
	points := buildPhrasePoints(input)
	if len(points) > 0 {
		if err := sm.qdrant.UpsertVectors(ctx, points); err != nil {
			return nil, fmt.Errorf("failed to store vectors in Qdrant: %w", err)
		}
	}

	pointIDs := make([]string, len(points))
	for i, p := range points {
		pointIDs[i] = p.ID
	}

	// Step 2: Relational rows in one transaction
	ads := sanitizeAdRecords(input.Ads)
	clusters := buildClusterRecords(input.Clustering)
	if err := sm.postgres.SaveMiningResult(ctx, input.JobID, ads, clusters); err != nil {
		// Rollback: delete the points written above
		if delErr := sm.qdrant.DeleteVectors(ctx, pointIDs); delErr != nil {
			return nil, fmt.Errorf("failed to store results in PostgreSQL: %w (vector rollback failed: %v)", err, delErr)
		}
		return nil, fmt.Errorf("failed to store results in PostgreSQL: %w", err)
	}

	return &MiningResultOutput{
		JobID:          input.JobID,
		AdsStored:      len(ads),
		ClustersStored: len(clusters),
		VectorsStored:  len(points),
		PointIDs:       pointIDs,
		StoredAt:       time.Now(),
	}, nil
}

// SearchSimilarPhrases finds stored keyphrases closest to a query embedding
func (sm *StorageManager) SearchSimilarPhrases(ctx context.Context, queryVector []float32, limit int) ([]*PhraseMatch, error) {
	points, err := sm.qdrant.SearchVectors(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	matches := make([]*PhraseMatch, 0, len(points))
	for _, point := range points {
		if m := phraseMatchFromPoint(point); m != nil {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

// UpdateJobStatus updates job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, jobID)
}

// GetClusters returns the stored clusters of a job
func (sm *StorageManager) GetClusters(ctx context.Context, jobID string) ([]ClusterRecord, error) {
	return sm.postgres.GetClusters(ctx, jobID)
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.postgres.GetStats()

	qdrantStats, err := sm.qdrant.GetCollectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
	}

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
		"qdrant": qdrantStats,
	}, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}

	if sm.qdrant != nil {
		qdErr = sm.qdrant.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}

	return nil
}

// buildPhrasePoints pairs each phrase with its embedding. Nothing is built
// when clustering never produced vectors.
func buildPhrasePoints(input *MiningResultInput) []*VectorPoint {
	res := input.Clustering
	if res == nil || len(res.Vectors) != len(input.Phrases) {
		return nil
	}

	now := time.Now().Unix()
	points := make([]*VectorPoint, 0, len(input.Phrases))
	for i, phrase := range input.Phrases {
		if len(res.Vectors[i]) == 0 {
			continue
		}

		clusterID := int64(-1)
		if i < len(res.Assignments) {
			clusterID = int64(res.Assignments[i])
		}

		metadata := map[string]interface{}{
			"job_id":     input.JobID,
			"phrase":     phrase.Phrase,
			"cluster_id": clusterID,
			"created_at": now,
		}
		if name := res.ClusterName(i); name != "" {
			metadata["cluster_name"] = name
		}
		if phrase.CreativeID != "" {
			metadata["creative_id"] = phrase.CreativeID
		}
		if phrase.AdTitle != "" {
			metadata["ad_title"] = phrase.AdTitle
		}
		if phrase.AdURL != "" {
			metadata["ad_url"] = phrase.AdURL
		}
		if input.Language != "" {
			metadata["language"] = input.Language
		}

		points = append(points, &VectorPoint{
			ID:       phrasePointID(input.JobID, i),
			Vector:   res.Vectors[i],
			Metadata: metadata,
		})
	}
	return points
}

func phrasePointID(jobID string, index int) string {
	return uuid.NewSHA1(phrasePointNamespace, []byte(fmt.Sprintf("%s/%d", jobID, index))).String()
}

// buildClusterRecords flattens clusters into rows, collecting each
// cluster's distinct creatives
func buildClusterRecords(res *clustering.ClusteringResult) []ClusterRecord {
	if res == nil {
		return nil
	}

	records := make([]ClusterRecord, 0, len(res.Clusters))
	for _, c := range res.Clusters {
		rec := ClusterRecord{
			ClusterIndex: c.ID,
			Name:         sanitizeText(c.Name),
			Phrases:      make([]string, 0, len(c.Phrases)),
			CreativeIDs:  []string{},
		}
		seen := make(map[string]struct{})
		for _, p := range c.Phrases {
			rec.Phrases = append(rec.Phrases, sanitizeText(p.Phrase))
			if p.CreativeID == "" {
				continue
			}
			if _, ok := seen[p.CreativeID]; ok {
				continue
			}
			seen[p.CreativeID] = struct{}{}
			rec.CreativeIDs = append(rec.CreativeIDs, p.CreativeID)
		}
		records = append(records, rec)
	}
	return records
}

func phraseMatchFromPoint(point *VectorPoint) *PhraseMatch {
	phrase, _ := point.Metadata["phrase"].(string)
	if phrase == "" {
		return nil
	}
	str := func(key string) string {
		s, _ := point.Metadata[key].(string)
		return s
	}
	return &PhraseMatch{
		Phrase:      phrase,
		ClusterName: str("cluster_name"),
		JobID:       str("job_id"),
		CreativeID:  str("creative_id"),
		AdTitle:     str("ad_title"),
		AdURL:       str("ad_url"),
		Language:    str("language"),
		Score:       point.Score,
	}
}

func sanitizeAdRecords(ads []AdTextRecord) []AdTextRecord {
	out := make([]AdTextRecord, len(ads))
	for i, ad := range ads {
		ad.Headline = sanitizeText(ad.Headline)
		ad.Description = sanitizeText(ad.Description)
		ad.RawText = sanitizeText(ad.RawText)
		ad.Title = sanitizeText(ad.Title)
		ad.Sitelinks = sanitizeTexts(ad.Sitelinks)
		ad.Keyphrases = sanitizeTexts(ad.Keyphrases)
		out[i] = ad
	}
	return out
}

// sanitizeText drops NUL bytes, which PostgreSQL TEXT columns reject.
// OCR output occasionally carries them.
func sanitizeText(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

func sanitizeTexts(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = sanitizeText(s)
	}
	return out
}

// sanitizeJSONForPostgres removes Unicode escape sequences PostgreSQL JSONB
// rejects. \u0000 is dropped and other control escapes become a space.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscapePattern.ReplaceAll(jsonBytes, []byte{})
	return controlEscapePattern.ReplaceAll(result, []byte(" "))
}

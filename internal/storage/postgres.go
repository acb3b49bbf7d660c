/**
 * PostgreSQL Client for the AdTopics Worker
 *
 * Handles job persistence and the mined ad texts and topic clusters.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Language         string
	AdsTotal         int
	AdsExtracted     int
	PhrasesTotal     int
	ClustersFound    int
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// AdTextRecord is one ad's extraction and keyphrases
type AdTextRecord struct {
	Position    int
	CreativeID  string
	Title       string
	URL         string
	ImageURL    string
	Headline    string
	Description string
	Sitelinks   []string
	RawText     string
	Language    string
	Keyphrases  []string
	Error       string
}

// ClusterRecord is one named topic of a job
type ClusterRecord struct {
	ClusterIndex int      `json:"cluster_index" yaml:"cluster_index"`
	Name         string   `json:"name" yaml:"name"`
	Phrases      []string `json:"phrases" yaml:"phrases"`
	CreativeIDs  []string `json:"creative_ids" yaml:"creative_ids"`
}

const schemaDDL = `
	CREATE SCHEMA IF NOT EXISTS adtopics;

	CREATE TABLE IF NOT EXISTS adtopics.mining_jobs (
		id                 UUID PRIMARY KEY,
		status             TEXT NOT NULL,
		language           TEXT,
		ads_total          INTEGER NOT NULL DEFAULT 0,
		ads_extracted      INTEGER NOT NULL DEFAULT 0,
		phrases_total      INTEGER NOT NULL DEFAULT 0,
		clusters_found     INTEGER NOT NULL DEFAULT 0,
		processing_time_ms BIGINT,
		error_code         TEXT,
		error_message      TEXT,
		metadata           JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS adtopics.ad_texts (
		job_id      UUID NOT NULL REFERENCES adtopics.mining_jobs(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		creative_id TEXT,
		title       TEXT,
		url         TEXT,
		image_url   TEXT,
		headline    TEXT,
		description TEXT,
		sitelinks   TEXT[] NOT NULL DEFAULT '{}',
		raw_text    TEXT,
		language    TEXT,
		keyphrases  TEXT[] NOT NULL DEFAULT '{}',
		error       TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (job_id, position)
	);

	CREATE TABLE IF NOT EXISTS adtopics.topic_clusters (
		job_id        UUID NOT NULL REFERENCES adtopics.mining_jobs(id) ON DELETE CASCADE,
		cluster_index INTEGER NOT NULL,
		name          TEXT NOT NULL,
		size          INTEGER NOT NULL,
		phrases       TEXT[] NOT NULL,
		creative_ids  TEXT[] NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (job_id, cluster_index)
	);
`

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	// Connect to database
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the adtopics schema and tables when missing
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpdateJobStatus upserts the job row. Counters only move when the update
// carries a non-zero value.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	metadataJSON = sanitizeJSONForPostgres(metadataJSON)

	query := `
		INSERT INTO adtopics.mining_jobs (
			id, status, language, ads_total, ads_extracted, phrases_total,
			clusters_found, processing_time_ms, error_code, error_message,
			metadata, created_at, updated_at
		) VALUES (
			$1::uuid, $2, NULLIF($3, ''), $4, $5, $6, $7, NULLIF($8, 0),
			NULLIF($9, ''), NULLIF($10, ''),
			COALESCE(NULLIF($11, 'null')::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			language = COALESCE(EXCLUDED.language, adtopics.mining_jobs.language),
			ads_total = GREATEST(EXCLUDED.ads_total, adtopics.mining_jobs.ads_total),
			ads_extracted = CASE WHEN EXCLUDED.ads_extracted > 0 THEN EXCLUDED.ads_extracted ELSE adtopics.mining_jobs.ads_extracted END,
			phrases_total = CASE WHEN EXCLUDED.phrases_total > 0 THEN EXCLUDED.phrases_total ELSE adtopics.mining_jobs.phrases_total END,
			clusters_found = CASE WHEN EXCLUDED.clusters_found > 0 THEN EXCLUDED.clusters_found ELSE adtopics.mining_jobs.clusters_found END,
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, adtopics.mining_jobs.processing_time_ms),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			metadata = adtopics.mining_jobs.metadata || EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,            // $1
		update.Status,           // $2
		update.Language,         // $3
		update.AdsTotal,         // $4
		update.AdsExtracted,     // $5
		update.PhrasesTotal,     // $6
		update.ClustersFound,    // $7
		update.ProcessingTimeMs, // $8
		update.ErrorCode,        // $9
		update.ErrorMessage,     // $10
		string(metadataJSON),    // $11
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("job not found: %s", update.JobID)
	}

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// SaveMiningResult replaces a job's ad texts and clusters in one transaction,
// so a retried job never leaves duplicate rows
func (p *PostgresClient) SaveMiningResult(ctx context.Context, jobID string, ads []AdTextRecord, clusters []ClusterRecord) error {
	if jobID == "" {
		return fmt.Errorf("job ID is required")
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The job row must exist for the foreign keys
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO adtopics.mining_jobs (id, status) VALUES ($1::uuid, 'processing')
		ON CONFLICT (id) DO NOTHING`, jobID); err != nil {
		return fmt.Errorf("failed to ensure job row: %w", err)
	}

	for _, table := range []string{"adtopics.ad_texts", "adtopics.topic_clusters"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE job_id = $1::uuid", jobID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	adStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO adtopics.ad_texts (
			job_id, position, creative_id, title, url, image_url, headline,
			description, sitelinks, raw_text, language, keyphrases, error
		) VALUES (
			$1::uuid, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
			NULLIF($7, ''), NULLIF($8, ''), $9, NULLIF($10, ''), NULLIF($11, ''), $12, NULLIF($13, '')
		)`)
	if err != nil {
		return fmt.Errorf("failed to prepare ad insert: %w", err)
	}
	defer adStmt.Close()

	for _, ad := range ads {
		if _, err := adStmt.ExecContext(ctx,
			jobID, ad.Position, ad.CreativeID, ad.Title, ad.URL, ad.ImageURL, ad.Headline,
			ad.Description, pq.Array(nonNil(ad.Sitelinks)), ad.RawText, ad.Language,
			pq.Array(nonNil(ad.Keyphrases)), ad.Error,
		); err != nil {
			return fmt.Errorf("failed to insert ad %d: %w", ad.Position, err)
		}
	}

	clusterStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO adtopics.topic_clusters (
			job_id, cluster_index, name, size, phrases, creative_ids
		) VALUES ($1::uuid, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cluster insert: %w", err)
	}
	defer clusterStmt.Close()

	for _, c := range clusters {
		if _, err := clusterStmt.ExecContext(ctx,
			jobID, c.ClusterIndex, c.Name, len(c.Phrases),
			pq.Array(nonNil(c.Phrases)), pq.Array(nonNil(c.CreativeIDs)),
		); err != nil {
			return fmt.Errorf("failed to insert cluster %d: %w", c.ClusterIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mining result: %w", err)
	}
	return nil
}

// GetClusters returns a job's clusters ordered by index
func (p *PostgresClient) GetClusters(ctx context.Context, jobID string) ([]ClusterRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT cluster_index, name, phrases, creative_ids
		FROM adtopics.topic_clusters
		WHERE job_id = $1::uuid
		ORDER BY cluster_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	var out []ClusterRecord
	for rows.Next() {
		var c ClusterRecord
		if err := rows.Scan(&c.ClusterIndex, &c.Name, pq.Array(&c.Phrases), pq.Array(&c.CreativeIDs)); err != nil {
			return nil, fmt.Errorf("failed to scan cluster: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetJobByID retrieves a job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, jobID string) (map[string]interface{}, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, status, language, ads_total, ads_extracted, phrases_total,
			clusters_found, processing_time_ms, error_code, error_message,
			metadata, created_at, updated_at
		FROM adtopics.mining_jobs
		WHERE id = $1::uuid
	`

	var (
		id, status                        string
		language, errorCode, errorMessage sql.NullString
		adsTotal, adsExtracted            int
		phrasesTotal, clustersFound       int
		processingTimeMs                  sql.NullInt64
		metadataJSON                      []byte
		createdAt, updatedAt              time.Time
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&id, &status, &language, &adsTotal, &adsExtracted, &phrasesTotal,
		&clustersFound, &processingTimeMs, &errorCode, &errorMessage,
		&metadataJSON, &createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":            id,
		"status":        status,
		"adsTotal":      adsTotal,
		"adsExtracted":  adsExtracted,
		"phrasesTotal":  phrasesTotal,
		"clustersFound": clustersFound,
		"createdAt":     createdAt,
		"updatedAt":     updatedAt,
		"metadata":      metadata,
	}

	if language.Valid {
		result["language"] = language.String
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}

	return result, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}

// pq.Array(nil) writes NULL, which the NOT NULL columns reject
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

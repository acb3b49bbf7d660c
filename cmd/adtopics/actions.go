package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/adverant/nexus/adtopics-worker/internal/config"
	"github.com/adverant/nexus/adtopics-worker/internal/embedding"
	"github.com/adverant/nexus/adtopics-worker/internal/keyphrase"
	"github.com/adverant/nexus/adtopics-worker/internal/logging"
	"github.com/adverant/nexus/adtopics-worker/internal/processor"
	"github.com/adverant/nexus/adtopics-worker/internal/queue"
	"github.com/adverant/nexus/adtopics-worker/internal/storage"
)

// extractOutput pairs a creative with its extracted text
type extractOutput struct {
	Source string                   `json:"source" yaml:"source"`
	Text   *processor.AdTextContent `json:"text" yaml:"text"`
}

func ExtractAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no images given")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	extractor := newExtractor(cfg)
	if err := extractor.Available(); err != nil {
		return err
	}

	ctx := c.Context
	outputs := make([]extractOutput, 0, c.NArg())
	var urls []string
	urlIndex := make(map[int]int)

	for _, arg := range c.Args().Slice() {
		if isRemote(arg) {
			urlIndex[len(outputs)] = len(urls)
			urls = append(urls, arg)
			outputs = append(outputs, extractOutput{Source: arg})
			continue
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", arg, err)
		}
		outputs = append(outputs, extractOutput{Source: arg, Text: extractor.ExtractBytes(ctx, data)})
	}

	if len(urls) > 0 {
		texts := extractor.ExtractBatch(ctx, urls)
		for i, j := range urlIndex {
			outputs[i].Text = texts[j]
		}
	}

	return writeOutput(c.App.Writer, c.String("format"), outputs)
}

func isRemote(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

// keyphraseOutput lists phrases per ad segment and for the whole ad
type keyphraseOutput struct {
	Headline    []string `json:"headline,omitempty" yaml:"headline,omitempty"`
	Description []string `json:"description,omitempty" yaml:"description,omitempty"`
	Sitelinks   []string `json:"sitelinks,omitempty" yaml:"sitelinks,omitempty"`
	Ad          []string `json:"ad" yaml:"ad"`
}

func KeyphrasesAction(c *cli.Context) error {
	headline := c.String("headline")
	description := c.String("description")
	raw := c.String("raw")
	sitelinks := c.StringSlice("sitelink")
	if headline == "" && description == "" && raw == "" && len(sitelinks) == 0 {
		return fmt.Errorf("no text given, use --headline, --description, --raw or --sitelink")
	}

	extractor := keyphrase.NewExtractor(keyphrase.ExtractorConfig{
		Language:   c.String("language"),
		MaxPhrases: c.Int("max"),
	})

	out := keyphraseOutput{
		Headline:    extractor.ExtractSegment(headline),
		Description: extractor.ExtractSegment(description),
		Sitelinks:   extractor.ExtractSegment(strings.Join(sitelinks, " · ")),
		Ad:          extractor.ExtractFromAd(headline, description, raw, sitelinks),
	}
	return writeOutput(c.App.Writer, c.String("format"), out)
}

func MineAction(c *cli.Context) error {
	logger := logging.NewLogger("adtopics")

	batch, err := loadBatch(c.String("input"))
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	embedder, err := embedding.NewProvider(cfg, nil)
	if err != nil {
		return err
	}
	if err := embedder.Available(); err != nil {
		logger.Warn("Embedding provider unavailable, phrases will not be clustered", "provider", embedder.Name(), "error", err)
	}

	var store *storage.StorageManager
	if c.Bool("store") {
		store, err = newStorage(cfg, embedder.Dimensions())
		if err != nil {
			return err
		}
		defer store.Close()
	}

	proc, err := newProcessor(cfg, embedder, store)
	if err != nil {
		return err
	}

	timeout := c.Duration("timeout")
	if timeout <= 0 {
		timeout = time.Duration(cfg.ProcessingTimeout) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(c.Context, timeout)
	defer cancel()

	jobID := batch.JobID
	if jobID == "" {
		jobID = uuid.New().String()
	}
	language := c.String("language")
	if language == "" {
		language = batch.Language
	}

	result, err := proc.ProcessAds(ctx, &processor.ProcessRequest{
		JobID:    jobID,
		Ads:      batch.Ads,
		Language: language,
	})
	if err != nil {
		return err
	}

	logger.Info("Mining complete",
		"job_id", result.JobID,
		"ads", result.AdsTotal,
		"extracted", result.AdsExtracted,
		"phrases", result.PhrasesTotal,
		"clusters", result.ClustersFound,
		"duration_ms", result.ProcessingTimeMs)

	return writeOutput(c.App.Writer, c.String("format"), result)
}

func EnqueueAction(c *cli.Context) error {
	batch, err := loadBatch(c.String("input"))
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	enq, err := queue.NewEnqueuer(cfg)
	if err != nil {
		return err
	}
	defer enq.Close()

	payload := &queue.JobPayload{
		JobID:    c.String("job-id"),
		Ads:      batch.Ads,
		Language: c.String("language"),
	}
	if payload.JobID == "" {
		payload.JobID = batch.JobID
	}
	if payload.Language == "" {
		payload.Language = batch.Language
	}

	jobID, err := enq.Enqueue(c.Context, payload)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "%s\n", jobID)
	return nil
}

func SearchAction(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("no query given")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	embedder, err := embedding.NewProvider(cfg, nil)
	if err != nil {
		return err
	}
	if err := embedder.Available(); err != nil {
		return err
	}

	store, err := newStorage(cfg, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer store.Close()

	vectors, err := embedder.Embed(c.Context, []string{query})
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("embedding provider returned %d vectors for one query", len(vectors))
	}

	matches, err := store.SearchSimilarPhrases(c.Context, vectors[0], c.Int("limit"))
	if err != nil {
		return err
	}
	return writeOutput(c.App.Writer, c.String("format"), matches)
}

func StatusAction(c *cli.Context) error {
	jobID := c.Args().First()
	if jobID == "" {
		return fmt.Errorf("no job ID given")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	store, err := newStorage(cfg, cfg.EmbeddingDimensions)
	if err != nil {
		return err
	}
	defer store.Close()

	job, err := store.GetJobByID(c.Context, jobID)
	if err != nil {
		return err
	}
	clusters, err := store.GetClusters(c.Context, jobID)
	if err != nil {
		return err
	}

	return writeOutput(c.App.Writer, c.String("format"), map[string]interface{}{
		"job":      job,
		"clusters": clusters,
	})
}

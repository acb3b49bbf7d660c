/**
 * Topic clustering for extracted keyphrases
 *
 * Phrases are embedded, grouped by average-linkage agglomeration on cosine
 * distance, merged when they share a dominant word, then named from their
 * most frequent words.
 */

package clustering

import (
	"context"
	"fmt"
	"sort"

	"github.com/adverant/nexus/adtopics-worker/internal/errors"
	"github.com/adverant/nexus/adtopics-worker/internal/logging"
)

// DefaultDistanceThreshold is the cosine distance at which groups stop merging
const DefaultDistanceThreshold = 0.55

// Config tunes the clusterer
type Config struct {
	DistanceThreshold float64
	Logger            *logging.Logger
}

// Clusterer groups phrases into named topics
type Clusterer struct {
	embedder  Embedder
	threshold float64
	logger    *logging.Logger
}

// NewClusterer creates a clusterer. A nil embedder makes every run fail
// into an all-unclustered result.
func NewClusterer(embedder Embedder, cfg Config) *Clusterer {
	if cfg.DistanceThreshold <= 0 {
		cfg.DistanceThreshold = DefaultDistanceThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("clustering")
	}
	return &Clusterer{
		embedder:  embedder,
		threshold: cfg.DistanceThreshold,
		logger:    cfg.Logger,
	}
}

// Cluster never returns an error. Failures are reported through
// ClusteringResult.Error with every phrase left unclustered.
func (c *Clusterer) Cluster(ctx context.Context, phrases []PhraseInfo) *ClusteringResult {
	total := len(phrases)
	if total < 2 {
		return unclusteredResult(phrases, "")
	}

	result, err := c.cluster(ctx, phrases)
	if err != nil {
		perr := errors.NewClusteringFailedError(total, err)
		c.logger.Error("Clustering failed", "phrases", total, "error", err)
		return unclusteredResult(phrases, perr.Describe())
	}

	c.logger.Info("Clustering complete",
		"phrases", total,
		"clusters", len(result.Clusters),
		"unclustered", len(result.Unclustered))
	return result
}

func (c *Clusterer) cluster(ctx context.Context, phrases []PhraseInfo) (*ClusteringResult, error) {
	if c.embedder == nil {
		return nil, fmt.Errorf("no embedding model configured")
	}
	if err := c.embedder.Available(); err != nil {
		return nil, errors.NewDependencyUnavailableError(c.embedder.Name(), err)
	}

	texts := make([]string, len(phrases))
	for i, p := range phrases {
		texts[i] = p.Phrase
	}

	raw, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(raw) != len(texts) {
		return nil, fmt.Errorf("embedding returned %d vectors for %d phrases", len(raw), len(texts))
	}

	unit, err := normalize(raw)
	if err != nil {
		return nil, err
	}
	dist, err := cosineDistances(unit)
	if err != nil {
		return nil, err
	}

	labels := averageLinkage(dist, c.threshold)
	c.logger.Debug("Agglomeration finished", "phrases", len(phrases), "threshold", c.threshold)

	// Groups in order of their first member
	var groups [][]int
	groupOf := make(map[int]int)
	for i, label := range labels {
		g, ok := groupOf[label]
		if !ok {
			g = len(groups)
			groupOf[label] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}

	var unclustered []int
	var keywords []string
	merged := make(map[string][]int)
	for _, members := range groups {
		if len(members) < 2 {
			unclustered = append(unclustered, members...)
			continue
		}
		kw := dominantKeyword(textsOf(texts, members))
		if _, seen := merged[kw]; !seen {
			keywords = append(keywords, kw)
		}
		merged[kw] = append(merged[kw], members...)
	}

	type draft struct {
		name    string
		members []int
	}
	drafts := make([]draft, 0, len(keywords))
	for _, kw := range keywords {
		members := merged[kw]
		drafts = append(drafts, draft{name: nameCluster(textsOf(texts, members)), members: members})
	}
	sort.SliceStable(drafts, func(i, j int) bool { return len(drafts[i].members) > len(drafts[j].members) })

	result := &ClusteringResult{
		Clusters:     make([]Cluster, 0, len(drafts)),
		Unclustered:  make([]PhraseInfo, 0, len(unclustered)),
		TotalPhrases: len(phrases),
		Vectors:      make([][]float32, len(unit)),
		Assignments:  make([]int, len(phrases)),
	}
	for i := range result.Assignments {
		result.Assignments[i] = -1
	}
	for i, row := range unit {
		v := make([]float32, len(row))
		for j, x := range row {
			v[j] = float32(x)
		}
		result.Vectors[i] = v
	}

	for id, d := range drafts {
		cluster := Cluster{ID: id, Name: d.name, Phrases: make([]PhraseInfo, 0, len(d.members))}
		for _, m := range d.members {
			cluster.Phrases = append(cluster.Phrases, phrases[m])
			result.Assignments[m] = id
		}
		result.Clusters = append(result.Clusters, cluster)
	}
	for _, m := range unclustered {
		result.Unclustered = append(result.Unclustered, phrases[m])
	}

	return result, nil
}

func unclusteredResult(phrases []PhraseInfo, errMsg string) *ClusteringResult {
	assignments := make([]int, len(phrases))
	for i := range assignments {
		assignments[i] = -1
	}
	return &ClusteringResult{
		Clusters:     []Cluster{},
		Unclustered:  append([]PhraseInfo{}, phrases...),
		TotalPhrases: len(phrases),
		Error:        errMsg,
		Assignments:  assignments,
	}
}

func textsOf(texts []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, k := range idx {
		out[i] = texts[k]
	}
	return out
}

package clustering

import (
	"context"
	"encoding/json"
)

// PhraseInfo is a keyphrase tagged with the ad it came from
type PhraseInfo struct {
	Phrase     string `json:"phrase" yaml:"phrase"`
	AdTitle    string `json:"ad_title,omitempty" yaml:"ad_title,omitempty"`
	AdURL      string `json:"ad_url,omitempty" yaml:"ad_url,omitempty"`
	CreativeID string `json:"creative_id,omitempty" yaml:"creative_id,omitempty"`
}

// Cluster is a named topic holding at least two phrases
type Cluster struct {
	ID      int          `json:"id" yaml:"id"`
	Name    string       `json:"name" yaml:"name"`
	Phrases []PhraseInfo `json:"phrases" yaml:"phrases"`
}

// Size is the number of phrases in the cluster
func (c Cluster) Size() int {
	return len(c.Phrases)
}

type clusterView struct {
	ID      int          `json:"id" yaml:"id"`
	Name    string       `json:"name" yaml:"name"`
	Size    int          `json:"size" yaml:"size"`
	Phrases []PhraseInfo `json:"phrases" yaml:"phrases"`
}

func (c Cluster) view() clusterView {
	return clusterView{ID: c.ID, Name: c.Name, Size: c.Size(), Phrases: c.Phrases}
}

// MarshalJSON adds the derived size
func (c Cluster) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.view())
}

// MarshalYAML adds the derived size
func (c Cluster) MarshalYAML() (interface{}, error) {
	return c.view(), nil
}

// ClusteringResult holds clusters ordered by size, largest first
type ClusteringResult struct {
	Clusters     []Cluster    `json:"clusters" yaml:"clusters"`
	Unclustered  []PhraseInfo `json:"unclustered" yaml:"unclustered"`
	TotalPhrases int          `json:"total_phrases" yaml:"total_phrases"`
	Error        string       `json:"error,omitempty" yaml:"error,omitempty"`

	// Vectors are the normalized embeddings aligned with the input phrases.
	// Empty when clustering did not embed.
	Vectors [][]float32 `json:"-" yaml:"-"`
	// Assignments maps each input phrase to its cluster id, -1 when unclustered
	Assignments []int `json:"-" yaml:"-"`
}

// ClusterName returns the name of the cluster an input phrase landed in
func (r *ClusteringResult) ClusterName(index int) string {
	if index < 0 || index >= len(r.Assignments) {
		return ""
	}
	id := r.Assignments[index]
	if id < 0 || id >= len(r.Clusters) {
		return ""
	}
	return r.Clusters[id].Name
}

// Embedder turns phrases into fixed-length vectors
type Embedder interface {
	Name() string
	Available() error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

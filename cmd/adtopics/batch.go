package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/adverant/nexus/adtopics-worker/internal/processor"
)

// batchFile is the on-disk form of a mining batch. JSON input parses too
// since YAML is a superset of it.
type batchFile struct {
	JobID     string               `yaml:"jobId"`
	Language  string               `yaml:"language"`
	Ads       []processor.AdRecord `yaml:"ads"`
	ImageURLs []string             `yaml:"imageUrls"`
}

func loadBatch(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return parseBatch(data)
}

func parseBatch(data []byte) (*batchFile, error) {
	var b batchFile
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	for _, url := range b.ImageURLs {
		b.Ads = append(b.Ads, processor.AdRecord{ImageURL: url})
	}
	b.ImageURLs = nil
	if len(b.Ads) == 0 {
		return nil, fmt.Errorf("batch file has no ads")
	}
	return &b, nil
}

func writeOutput(w io.Writer, format string, v interface{}) error {
	switch strings.ToLower(format) {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/adverant/nexus/adtopics-worker/internal/processor"
)

func TestParseBatch(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantAds []processor.AdRecord
		wantErr bool
	}{
		{
			name: "yaml",
			input: `jobId: spring
language: en
ads:
  - title: Running Shoes
    url: https://shop.example/run
    creative_id: cr-1
    image_url: https://img.example/1.png
imageUrls:
  - https://img.example/2.png
`,
			wantAds: []processor.AdRecord{
				{Title: "Running Shoes", URL: "https://shop.example/run", CreativeID: "cr-1", ImageURL: "https://img.example/1.png"},
				{ImageURL: "https://img.example/2.png"},
			},
		},
		{
			name:  "json",
			input: `{"jobId":"spring","ads":[{"image_url":"https://img.example/1.png","creative_id":"cr-1"}]}`,
			wantAds: []processor.AdRecord{
				{CreativeID: "cr-1", ImageURL: "https://img.example/1.png"},
			},
		},
		{name: "empty", input: `jobId: spring`, wantErr: true},
		{name: "malformed", input: `ads: [`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := parseBatch([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if b.JobID != "spring" {
				t.Errorf("JobID = %q", b.JobID)
			}
			if len(b.Ads) != len(tt.wantAds) {
				t.Fatalf("got %d ads, want %d", len(b.Ads), len(tt.wantAds))
			}
			for i := range tt.wantAds {
				if b.Ads[i] != tt.wantAds[i] {
					t.Errorf("ad %d = %+v, want %+v", i, b.Ads[i], tt.wantAds[i])
				}
			}
		})
	}
}

func TestWriteOutput(t *testing.T) {
	v := map[string]interface{}{"headline": "Buy Running Shoes"}

	var buf bytes.Buffer
	if err := writeOutput(&buf, "json", v); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(buf.String(), `"headline": "Buy Running Shoes"`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	if err := writeOutput(&buf, "yaml", v); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "headline: Buy Running Shoes" {
		t.Errorf("yaml output = %q", buf.String())
	}

	if err := writeOutput(&buf, "xml", v); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestKeyphrasesCommand(t *testing.T) {
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf

	err := app.Run([]string{"adtopics", "keyphrases",
		"--headline", "Buy Running Shoes Online",
		"--description", "Lightweight running shoes for marathon training.",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var out keyphraseOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if len(out.Ad) == 0 {
		t.Errorf("no ad keyphrases in %s", buf.String())
	}
}

func TestKeyphrasesCommandRequiresText(t *testing.T) {
	app := newApp()
	app.Writer = &bytes.Buffer{}
	if err := app.Run([]string{"adtopics", "keyphrases"}); err == nil {
		t.Error("expected error without text")
	}
}

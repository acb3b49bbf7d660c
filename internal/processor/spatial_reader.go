package processor

import (
	"context"
	"image"
	"sort"
	"strings"
)

// DefaultMinConfidence drops words the engine is unsure of (0-100 scale)
const DefaultMinConfidence = 30

// SpatialOCRReader rebuilds reading-order text lines from word boxes
type SpatialOCRReader struct {
	engine        OCREngine
	minConfidence float64
}

// NewSpatialOCRReader wraps an OCR engine. A non-positive minConfidence
// uses DefaultMinConfidence.
func NewSpatialOCRReader(engine OCREngine, minConfidence float64) *SpatialOCRReader {
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}
	return &SpatialOCRReader{engine: engine, minConfidence: minConfidence}
}

// ReadLines returns one string per detected line in reading order. No text
// is an empty result, not an error.
func (r *SpatialOCRReader) ReadLines(ctx context.Context, img image.Image) ([]string, error) {
	words, err := r.engine.Words(ctx, img)
	if err != nil {
		return nil, err
	}

	lines := assembleLines(words, r.minConfidence)
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.String())
	}
	return out, nil
}

// assembleLines groups confident words by line key, orders words by left
// edge and lines by key
func assembleLines(words []OCRWord, minConfidence float64) []TextLine {
	byKey := make(map[LineKey]*TextLine)
	for _, w := range words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" || w.Confidence < minConfidence {
			continue
		}

		key := LineKey{Block: w.Block, Paragraph: w.Paragraph, Line: w.Line}
		line, ok := byKey[key]
		if !ok {
			line = &TextLine{Key: key}
			byKey[key] = line
		}
		line.Words = append(line.Words, w)
	}

	lines := make([]TextLine, 0, len(byKey))
	for _, line := range byKey {
		sort.SliceStable(line.Words, func(i, j int) bool {
			return line.Words[i].BoundingBox.X < line.Words[j].BoundingBox.X
		})
		lines = append(lines, *line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Key.Less(lines[j].Key) })
	return lines
}

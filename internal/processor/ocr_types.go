/**
 * OCR Types - Shared data structures for OCR operations
 *
 * Word boxes as the engine reports them and the lines rebuilt from them.
 */

package processor

import (
	"context"
	"image"
	"strings"
)

// OCREngine recognizes words with positions in an image
type OCREngine interface {
	Name() string
	// Available reports why the engine cannot run, nil when it can
	Available() error
	Words(ctx context.Context, img image.Image) ([]OCRWord, error)
}

// OCRWord represents a single word with bounding box
type OCRWord struct {
	Text        string
	Confidence  float64 // 0-100
	Block       int
	Paragraph   int
	Line        int
	BoundingBox BoundingBox
}

// BoundingBox represents coordinates of a region
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// LineKey identifies a text line the way the engine numbers it
type LineKey struct {
	Block     int
	Paragraph int
	Line      int
}

// Less orders keys by block, then paragraph, then line
func (k LineKey) Less(o LineKey) bool {
	if k.Block != o.Block {
		return k.Block < o.Block
	}
	if k.Paragraph != o.Paragraph {
		return k.Paragraph < o.Paragraph
	}
	return k.Line < o.Line
}

// TextLine is a group of words sorted left to right
type TextLine struct {
	Key   LineKey
	Words []OCRWord
}

func (l TextLine) String() string {
	parts := make([]string, len(l.Words))
	for i, w := range l.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

/**
 * Tesseract OCR - word boxes for masked ad creatives
 *
 * Runs in single-block page segmentation, the mode that suits short
 * ad-creative crops, and reports every word with its block/paragraph/line.
 */

package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// TesseractOCR handles word-level OCR using Tesseract
type TesseractOCR struct {
	language string

	checkOnce sync.Once
	checkErr  error
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Language string // traineddata name, e.g. "eng"
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(cfg *TesseractConfig) *TesseractOCR {
	lang := "eng"
	if cfg != nil && cfg.Language != "" {
		lang = cfg.Language
	}
	return &TesseractOCR{language: lang}
}

func (t *TesseractOCR) Name() string { return "tesseract" }

// Available checks the tesseract library once and caches the outcome
func (t *TesseractOCR) Available() error {
	t.checkOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				t.checkErr = fmt.Errorf("tesseract check failed: %v", r)
			}
		}()

		if v := strings.TrimSpace(gosseract.Version()); v == "" {
			t.checkErr = fmt.Errorf("tesseract OCR is not installed")
			return
		}

		client := gosseract.NewClient()
		defer client.Close()
		if err := client.SetLanguage(t.language); err != nil {
			t.checkErr = fmt.Errorf("tesseract language %q unavailable: %w", t.language, err)
		}
	})
	return t.checkErr
}

// Words runs OCR over img and returns every recognized word. Each call uses
// its own client, so calls may run concurrently.
func (t *TesseractOCR) Words(ctx context.Context, img image.Image) ([]OCRWord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	words := make([]OCRWord, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, OCRWord{
			Text:       b.Word,
			Confidence: b.Confidence,
			Block:      b.BlockNum,
			Paragraph:  b.ParNum,
			Line:       b.LineNum,
			BoundingBox: BoundingBox{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
		})
	}
	return words, nil
}

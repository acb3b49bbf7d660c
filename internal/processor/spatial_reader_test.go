package processor

import (
	"context"
	"fmt"
	"image"
	"reflect"
	"testing"
)

type stubEngine struct {
	words []OCRWord
	err   error
}

func (s *stubEngine) Name() string     { return "stub" }
func (s *stubEngine) Available() error { return nil }
func (s *stubEngine) Words(ctx context.Context, img image.Image) ([]OCRWord, error) {
	return s.words, s.err
}

func word(text string, conf float64, block, par, line, x int) OCRWord {
	return OCRWord{
		Text:        text,
		Confidence:  conf,
		Block:       block,
		Paragraph:   par,
		Line:        line,
		BoundingBox: BoundingBox{X: x, Width: 10, Height: 10},
	}
}

func TestReadLinesOrdersWordsAndLines(t *testing.T) {
	engine := &stubEngine{words: []OCRWord{
		word("Online", 90, 1, 1, 1, 300),
		word("Sale", 91, 1, 2, 1, 0),
		word("Buy", 95, 1, 1, 1, 0),
		word("Shoes", 88, 1, 1, 1, 200),
		word("Running", 92, 1, 1, 1, 100),
		word("Outlet", 80, 2, 1, 1, 0),
		word("Men's", 85, 1, 1, 2, 0),
	}}

	lines, err := NewSpatialOCRReader(engine, 0).ReadLines(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}

	want := []string{"Buy Running Shoes Online", "Men's", "Sale", "Outlet"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}

func TestReadLinesDropsWeakAndEmptyWords(t *testing.T) {
	engine := &stubEngine{words: []OCRWord{
		word("Shoes", 29.9, 1, 1, 1, 0),
		word("  ", 99, 1, 1, 1, 10),
		word("Boots", 30, 1, 1, 1, 20),
		word(" ~ ", 10, 1, 1, 2, 0),
	}}

	lines, err := NewSpatialOCRReader(engine, DefaultMinConfidence).ReadLines(context.Background(), nil)
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if want := []string{"Boots"}; !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}

func TestReadLinesNoText(t *testing.T) {
	lines, err := NewSpatialOCRReader(&stubEngine{}, 0).ReadLines(context.Background(), nil)
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if lines == nil || len(lines) != 0 {
		t.Errorf("lines = %#v, want empty non-nil", lines)
	}
}

func TestReadLinesEngineError(t *testing.T) {
	engine := &stubEngine{err: fmt.Errorf("engine crashed")}
	if _, err := NewSpatialOCRReader(engine, 0).ReadLines(context.Background(), nil); err == nil {
		t.Error("expected engine error")
	}
}

func TestLineKeyLess(t *testing.T) {
	keys := []struct {
		a, b LineKey
		want bool
	}{
		{LineKey{1, 1, 1}, LineKey{1, 1, 2}, true},
		{LineKey{1, 2, 1}, LineKey{1, 1, 9}, false},
		{LineKey{1, 9, 9}, LineKey{2, 0, 0}, true},
		{LineKey{1, 1, 1}, LineKey{1, 1, 1}, false},
	}
	for _, k := range keys {
		if got := k.a.Less(k.b); got != k.want {
			t.Errorf("%v.Less(%v) = %v, want %v", k.a, k.b, got, k.want)
		}
	}
}

func TestTesseractOCRBlankImage(t *testing.T) {
	ocr := NewTesseractOCR(nil)
	if err := ocr.Available(); err != nil {
		t.Skipf("tesseract not available: %v", err)
	}

	words, err := ocr.Words(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 32)))
	if err != nil {
		t.Fatalf("Words: %v", err)
	}
	for _, w := range words {
		if w.Text != "" && w.Confidence > 90 {
			t.Errorf("unexpected confident word on blank image: %+v", w)
		}
	}
}

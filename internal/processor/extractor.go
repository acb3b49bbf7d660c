/**
 * Ad text extraction from creative preview images
 *
 * download -> decode -> color masks -> spatial OCR -> layout split
 */

package processor

import (
	"context"
	"image"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/adverant/nexus/adtopics-worker/internal/errors"
	"github.com/adverant/nexus/adtopics-worker/internal/keyphrase"
	"github.com/adverant/nexus/adtopics-worker/internal/logging"
)

const (
	DefaultExtractionConcurrency = 5
	// shorter headline or description text is OCR noise
	minSegmentLen = 10
)

var ocrArtifactPattern = regexp.MustCompile(`[|\\]`)

// AdTextContent is the text recovered from one creative. Error is set, and
// every text field empty, when extraction failed.
type AdTextContent struct {
	Headline    string   `json:"headline,omitempty" yaml:"headline,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Sitelinks   []string `json:"sitelinks" yaml:"sitelinks"`
	RawText     string   `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
	Error       string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// HasText reports whether any text field is populated
func (c *AdTextContent) HasText() bool {
	return c.Headline != "" || c.Description != "" || len(c.Sitelinks) > 0
}

func failedContent(err *errors.ProcessingError) *AdTextContent {
	return &AdTextContent{Sitelinks: []string{}, Error: err.Describe()}
}

// ExtractionCache keeps successful extractions by image URL
type ExtractionCache interface {
	Get(ctx context.Context, imageURL string, dst interface{}) (bool, error)
	Set(ctx context.Context, imageURL string, value interface{}) error
}

// ExtractorConfig wires the extractor collaborators
type ExtractorConfig struct {
	OCR           OCREngine
	Source        ImageSource
	Cache         ExtractionCache // optional
	Concurrency   int
	MinConfidence float64
	Logger        *logging.Logger
}

// AdTextExtractor recovers headline, description and sitelinks from ad images
type AdTextExtractor struct {
	ocr         OCREngine
	reader      *SpatialOCRReader
	layout      *LayoutClassifier
	source      ImageSource
	cache       ExtractionCache
	concurrency int
	logger      *logging.Logger
}

// NewAdTextExtractor creates an extractor
func NewAdTextExtractor(cfg ExtractorConfig) *AdTextExtractor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultExtractionConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger("extractor")
	}
	if cfg.Source == nil {
		cfg.Source = NewHTTPImageSource(HTTPImageSourceConfig{Logger: cfg.Logger})
	}

	return &AdTextExtractor{
		ocr:         cfg.OCR,
		reader:      NewSpatialOCRReader(cfg.OCR, cfg.MinConfidence),
		layout:      NewLayoutClassifier(),
		source:      cfg.Source,
		cache:       cfg.Cache,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Available reports whether the OCR engine can run
func (e *AdTextExtractor) Available() error {
	if e.ocr == nil {
		return errors.NewDependencyUnavailableError("OCR engine", nil)
	}
	if err := e.ocr.Available(); err != nil {
		return errors.NewDependencyUnavailableError(e.ocr.Name(), err)
	}
	return nil
}

// Extract downloads one image and extracts its text. Failures are reported
// in AdTextContent.Error.
func (e *AdTextExtractor) Extract(ctx context.Context, imageURL string) *AdTextContent {
	if err := e.Available(); err != nil {
		return &AdTextContent{Sitelinks: []string{}, Error: describe(err)}
	}
	return e.extractURL(ctx, imageURL)
}

// ExtractBatch extracts every URL with bounded concurrency. Results keep
// the input order and one failure never affects its siblings.
func (e *AdTextExtractor) ExtractBatch(ctx context.Context, imageURLs []string) []*AdTextContent {
	results := make([]*AdTextContent, len(imageURLs))

	if err := e.Available(); err != nil {
		e.logger.Warn("OCR unavailable, skipping extraction", "ads", len(imageURLs), "error", err)
		msg := describe(err)
		for i := range results {
			results[i] = &AdTextContent{Sitelinks: []string{}, Error: msg}
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, url := range imageURLs {
		i, url := i, url
		g.Go(func() error {
			results[i] = e.extractURL(ctx, url)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ExtractBytes decodes raw image bytes and extracts their text
func (e *AdTextExtractor) ExtractBytes(ctx context.Context, data []byte) *AdTextContent {
	if err := e.Available(); err != nil {
		return &AdTextContent{Sitelinks: []string{}, Error: describe(err)}
	}

	img, mimeType, err := DecodeImage(data)
	if err != nil {
		return failedContent(errors.NewImageDecodeError(mimeType, err))
	}
	return e.ExtractFromImage(ctx, img)
}

func (e *AdTextExtractor) extractURL(ctx context.Context, imageURL string) *AdTextContent {
	if strings.TrimSpace(imageURL) == "" {
		return failedContent(errors.NewNoImageURLError())
	}

	if e.cache != nil {
		var cached AdTextContent
		hit, err := e.cache.Get(ctx, imageURL, &cached)
		if err != nil {
			e.logger.Warn("Extraction cache read failed", "url", imageURL, "error", err)
		} else if hit {
			e.logger.Debug("Extraction cache hit", "url", imageURL)
			return &cached
		}
	}

	data, err := e.source.Fetch(ctx, imageURL)
	if err != nil {
		e.logger.Warn("Image download failed", "url", imageURL, "error", err)
		return failedContent(errors.NewDownloadFailedError(imageURL, err))
	}

	img, mimeType, err := DecodeImage(data)
	if err != nil {
		return failedContent(errors.NewImageDecodeError(mimeType, err))
	}

	content := e.ExtractFromImage(ctx, img)
	if content.Error == "" && e.cache != nil {
		if err := e.cache.Set(ctx, imageURL, content); err != nil {
			e.logger.Warn("Extraction cache write failed", "url", imageURL, "error", err)
		}
	}
	return content
}

// ExtractFromImage runs color segmentation, OCR and layout classification
// on a decoded image. No detected text yields empty fields, not an error.
func (e *AdTextExtractor) ExtractFromImage(ctx context.Context, img image.Image) *AdTextContent {
	blueMask, grayMask := Segment(img)

	blueLines, err := e.reader.ReadLines(ctx, Compose(img, blueMask))
	if err != nil {
		return failedContent(errors.NewOCRFailedError(e.ocr.Name(), err))
	}
	grayLines, err := e.reader.ReadLines(ctx, Compose(img, grayMask))
	if err != nil {
		return failedContent(errors.NewOCRFailedError(e.ocr.Name(), err))
	}
	blueLines = dropLabelLines(blueLines)
	grayLines = dropLabelLines(grayLines)

	headlineLines, sitelinkLines := e.layout.Split(blueLines)

	content := &AdTextContent{
		Headline:    keepSegment(joinOCRLines(headlineLines)),
		Description: keepSegment(joinOCRLines(grayLines)),
		Sitelinks:   dedupeFold(e.layout.SplitSitelinks(sitelinkLines)),
	}
	content.RawText = strings.TrimSpace(content.Headline + "\n" + content.Description)

	e.logger.Debug("Extracted ad text",
		"blue_lines", len(blueLines),
		"gray_lines", len(grayLines),
		"sitelinks", len(content.Sitelinks))
	return content
}

// dropLabelLines removes lines that hold only a disclosure label. Segments
// are joined into one line afterwards, so the label would otherwise lead
// the segment text.
func dropLabelLines(lines []string) []string {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if keyphrase.IsSponsoredLabel(line) {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// joinOCRLines joins lines into one segment, dropping stray bars and
// backslashes the engine reads from borders
func joinOCRLines(lines []string) string {
	text := ocrArtifactPattern.ReplaceAllString(strings.Join(lines, " "), "")
	return strings.Join(strings.Fields(text), " ")
}

func keepSegment(s string) string {
	if utf8.RuneCountInString(s) < minSegmentLen {
		return ""
	}
	return s
}

// dedupeFold drops case-insensitive duplicates, keeping first occurrences
func dedupeFold(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, s := range items {
		k := strings.ToLower(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

func describe(err error) string {
	if perr, ok := err.(*errors.ProcessingError); ok {
		return perr.Describe()
	}
	return err.Error()
}

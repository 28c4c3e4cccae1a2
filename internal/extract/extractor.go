// Package extract turns a PDF or image file into ordered page texts, falling
// back to OCR for pages with too little native text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/logging"
	"docqa/internal/metrics"
	"docqa/internal/pkg/pdfextract"
)

var (
	// ErrNoText means no page of the source produced any text.
	ErrNoText = errors.New("no text extracted from document")
	// ErrUnsupportedFile is returned for extensions the extractor cannot read.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

const (
	defaultMinChars = 50
	defaultScale    = 2
)

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Rasterizer renders one 1-indexed PDF page to an image at scale times the
// base 72 DPI.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, page, scale int) (image.Image, error)
}

// Recognizer runs OCR over an image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// PageReader returns the native text of each page of a PDF.
type PageReader func(path string) ([]string, error)

type Options struct {
	// MinChars is the trimmed native text length below which a page is OCR'd.
	MinChars int
	// Scale is the rasterization factor over 72 DPI.
	Scale int
}

type Extractor struct {
	readPages  PageReader
	rasterizer Rasterizer
	recognizer Recognizer
	minChars   int
	scale      int
	logger     *zap.Logger
}

func New(rasterizer Rasterizer, recognizer Recognizer, opts Options, logger *zap.Logger) *Extractor {
	if opts.MinChars <= 0 {
		opts.MinChars = defaultMinChars
	}
	if opts.Scale <= 0 {
		opts.Scale = defaultScale
	}
	return &Extractor{
		readPages:  pdfextract.ExtractPages,
		rasterizer: rasterizer,
		recognizer: recognizer,
		minChars:   opts.MinChars,
		scale:      opts.Scale,
		logger:     logging.OrNop(logger),
	}
}

// WithPageReader swaps the native PDF text reader.
func (e *Extractor) WithPageReader(r PageReader) *Extractor {
	e.readPages = r
	return e
}

// Extract returns the page texts of the file at path. It fails with ErrNoText
// when every page is empty.
func (e *Extractor) Extract(ctx context.Context, path string) ([]string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		pages []string
		err   error
	)
	if imageExts[ext] {
		pages, err = e.extractImage(ctx, path)
	} else {
		pages, err = e.extractPDF(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	if !hasText(pages) {
		return nil, ErrNoText
	}
	return pages, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) ([]string, error) {
	native, err := e.readPages(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}

	pages := make([]string, len(native))
	for i, text := range native {
		text = strings.TrimSpace(text)
		if len([]rune(text)) >= e.minChars {
			pages[i] = text
			continue
		}

		num := i + 1
		e.logger.Info("ocr fallback", zap.String("path", path), zap.Int("page", num), zap.Int("native_chars", len(text)))
		ocrText, err := e.ocrPage(ctx, path, num)
		if err != nil {
			e.logger.Warn("ocr fallback failed, keeping native text",
				zap.String("path", path),
				zap.Int("page", num),
				zap.Error(err),
			)
			pages[i] = text
			continue
		}
		metrics.OCRPages.Inc()
		pages[i] = ocrText
	}
	return pages, nil
}

func (e *Extractor) ocrPage(ctx context.Context, path string, page int) (string, error) {
	if e.rasterizer == nil || e.recognizer == nil {
		return "", errors.New("ocr is not configured")
	}
	img, err := e.rasterizer.Rasterize(ctx, path, page, e.scale)
	if err != nil {
		return "", fmt.Errorf("rasterize page %d: %w", page, err)
	}
	text, err := e.recognizer.Recognize(ctx, img)
	if err != nil {
		return "", fmt.Errorf("recognize page %d: %w", page, err)
	}
	return strings.TrimSpace(text), nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) ([]string, error) {
	if e.recognizer == nil {
		return nil, errors.New("ocr is not configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFile, err)
	}

	text, err := e.recognizer.Recognize(ctx, Upscale(img, e.scale))
	if err != nil {
		return nil, fmt.Errorf("recognize image: %w", err)
	}
	metrics.OCRPages.Inc()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

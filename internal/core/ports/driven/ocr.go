package driven

import (
	"context"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// Rasterizer renders a single PDF page to a PNG image.
type Rasterizer interface {
	// Rasterize renders the 0-based page at the given resolution.
	// Returns domain.ErrOCREngineUnavailable if the renderer cannot run.
	Rasterize(ctx context.Context, pdf []byte, pageIndex, dpi int) ([]byte, error)
}

// OCRResult is recognised text with its confidence in [0, 1].
type OCRResult struct {
	Text       string
	Confidence float64
}

// OCREngine recognises text in a page image.
type OCREngine interface {
	// Name identifies the engine in logs.
	Name() string

	// Recognize returns the text found in image.
	// Returns domain.ErrOCREngineUnavailable if the engine cannot be invoked.
	Recognize(ctx context.Context, image []byte) (OCRResult, error)
}

// OCRFallback recovers text for a page that direct extraction could not.
type OCRFallback interface {
	// Recover rasterises and recognises page, returning it with Method
	// set to ocr. If recognition is still below threshold the page is
	// returned with Empty set; that is not an error.
	Recover(ctx context.Context, pdf []byte, page domain.Page) (domain.Page, error)
}

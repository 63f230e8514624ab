package driven

import (
	"context"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// TextExtractor pulls machine-readable text out of a PDF.
// Implementations are pure transforms over the given bytes.
type TextExtractor interface {
	// Extract returns one page per PDF page with Method set to direct and
	// the quality signal filled in (CharCount, GlyphRatio, Area, LowYield).
	// Low-yield pages are not an error.
	// Returns domain.ErrUnreadableDocument if the bytes are not a PDF.
	Extract(ctx context.Context, data []byte) (*Extraction, error)
}

// Extraction is the result of direct text extraction.
type Extraction struct {
	Pages []domain.Page
}

// LowYieldPages returns the indexes of pages flagged low-yield.
func (e *Extraction) LowYieldPages() []int {
	var out []int
	for _, p := range e.Pages {
		if p.LowYield {
			out = append(out, p.Index)
		}
	}
	return out
}

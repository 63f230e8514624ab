package driven

import (
	"context"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// PostProcessor transforms a page's text or chunks.
// PostProcessors are chained in a pipeline (e.g., normalising, chunking).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process receives the page being processed and the chunks produced so far.
	// Text processors (e.g., normaliser) rewrite page.Text and return chunks unchanged.
	// Chunk producers (e.g., chunker) receive nil and return new chunks.
	Process(ctx context.Context, page *domain.Page, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs every non-empty page through all processors in order and
	// returns the document's chunks with IDs and positions assigned.
	Process(ctx context.Context, doc *domain.Document, pages []domain.Page) ([]domain.Chunk, error)
}

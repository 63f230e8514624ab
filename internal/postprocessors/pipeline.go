// Package postprocessors turns extracted pages into chunks by running
// each page through a chain of PostProcessors.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// chunkNamespace seeds deterministic chunk IDs.
var chunkNamespace = uuid.MustParse("8f3c2a4e-6b1d-4f0a-9c57-2d4e8a1b7c90")

// Pipeline chains multiple PostProcessors and runs them in order.
// It implements the PostProcessorPipeline interface.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs each non-empty page through all processors in order.
// The first processor receives nil chunks. Pages marked empty by OCR are
// skipped. Chunks get document-wide positions and IDs derived from the
// document version and position, so re-running the stage is stable.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document, pages []domain.Page) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	var all []domain.Chunk
	for i := range pages {
		if pages[i].Empty {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := pages[i]
		page.DocumentID = doc.ID

		var chunks []domain.Chunk
		for _, processor := range p.processors {
			var err error
			chunks, err = processor.Process(ctx, &page, chunks)
			if err != nil {
				return nil, fmt.Errorf("processor %s: page %d: %w", processor.Name(), page.Index, err)
			}
		}
		all = append(all, chunks...)
	}

	for i := range all {
		all[i].Position = i
		all[i].DocumentID = doc.ID
		all[i].ID = ChunkID(doc, i)
	}
	return all, nil
}

// ChunkID returns the stable ID of the chunk at position for doc's
// current version.
func ChunkID(doc *domain.Document, position int) string {
	name := fmt.Sprintf("%s/%d/%d", doc.ID, doc.Version, position)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

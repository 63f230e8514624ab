// Package chunker splits normalised page text into bounded, overlapping
// chunks whose offsets map back into the page text.
package chunker

import (
	"context"
	"unicode"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// Name is the registry name of the chunker.
const Name = "chunker"

// DefaultChunkSize is the default maximum number of runes per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = 200

// Processor splits page text into chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the maximum chunk length in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string { return Name }

// ChunkSize returns the maximum chunk length in runes.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap in runes.
func (p *Processor) Overlap() int { return p.overlap }

// Span is a chunk's rune range within the page text. Overlap is the
// number of leading runes it shares with the previous span.
type Span struct {
	Start   int
	End     int
	Overlap int
}

// Process cuts page.Text into chunks. Input chunks are ignored; this
// processor creates new chunks. Empty text produces no chunks.
func (p *Processor) Process(_ context.Context, page *domain.Page, _ []domain.Chunk) ([]domain.Chunk, error) {
	runes := []rune(page.Text)
	spans := p.Split(runes)
	if len(spans) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, len(spans))
	for _, s := range spans {
		chunks = append(chunks, domain.Chunk{
			DocumentID:  page.DocumentID,
			PageIndex:   page.Index,
			Content:     string(runes[s.Start:s.End]),
			StartOffset: s.Start,
			EndOffset:   s.End,
			Overlap:     s.Overlap,
		})
	}
	return chunks, nil
}

// Split computes chunk spans over runes. Every span is non-empty and at
// most chunkSize long, and consecutive spans overlap by at most the
// configured overlap, so joining each span minus its overlap restores
// the input.
func (p *Processor) Split(runes []rune) []Span {
	n := len(runes)
	if n == 0 {
		return nil
	}

	spans := make([]Span, 0, n/(p.chunkSize-p.overlap)+1)
	start, prevEnd := 0, 0
	for {
		end := start + p.chunkSize
		if end >= n {
			end = n
		} else {
			end = p.boundary(runes, start, end)
		}

		overlap := 0
		if len(spans) > 0 {
			overlap = prevEnd - start
		}
		spans = append(spans, Span{Start: start, End: end, Overlap: overlap})

		if end == n {
			return spans
		}
		prevEnd = end
		start = end - p.overlap
	}
}

// boundary moves a hard cut back to just after whitespace in the last
// fifth of the window. The cut must stay beyond start+overlap so the
// next chunk still advances.
func (p *Processor) boundary(runes []rune, start, end int) int {
	floor := end - p.chunkSize/5
	if least := start + p.overlap + 1; floor < least {
		floor = least
	}
	for cut := end; cut > floor; cut-- {
		if unicode.IsSpace(runes[cut-1]) {
			return cut
		}
	}
	return end
}

// Join reassembles text from chunks of one page, dropping each chunk's
// declared overlap.
func Join(chunks []domain.Chunk) string {
	var out []rune
	for _, c := range chunks {
		r := []rune(c.Content)
		if c.Overlap > len(r) {
			continue
		}
		out = append(out, r[c.Overlap:]...)
	}
	return string(out)
}

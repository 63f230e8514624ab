package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/postprocessors/chunker"
	"github.com/custodia-labs/opptrack/internal/postprocessors/normaliser"
)

// mockProcessor is a test processor that returns predefined chunks.
type mockProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
	seen   []int
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, page *domain.Page, chunks []domain.Chunk) ([]domain.Chunk, error) {
	m.seen = append(m.seen, page.Index)
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		out := make([]domain.Chunk, len(m.chunks))
		copy(out, m.chunks)
		for i := range out {
			out[i].PageIndex = page.Index
		}
		return out, nil
	}
	return chunks, nil
}

func testDoc() *domain.Document {
	return &domain.Document{ID: "test-doc", Version: 1}
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.Len() != 0 {
		t.Errorf("expected 0 processors, got %d", p.Len())
	}
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	p.Add(&mockProcessor{name: "test"})

	if p.Len() != 1 {
		t.Errorf("expected 1 processor, got %d", p.Len())
	}
}

func TestPipeline_Process_NilDocument(t *testing.T) {
	p := NewPipeline()

	_, err := p.Process(context.Background(), nil, nil)
	if err == nil {
		t.Error("expected error for nil document")
	}
}

func TestPipeline_Process_EmptyPipeline(t *testing.T) {
	p := NewPipeline()

	chunks, err := p.Process(context.Background(), testDoc(), []domain.Page{{Text: "test content"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected nil chunks from empty pipeline, got %v", chunks)
	}
}

func TestPipeline_Process_AssignsPositionsAcrossPages(t *testing.T) {
	p := NewPipeline(&mockProcessor{
		name:   "chunker",
		chunks: []domain.Chunk{{Content: "a"}, {Content: "b"}},
	})
	pages := []domain.Page{{Index: 0}, {Index: 1}}

	chunks, err := p.Process(context.Background(), testDoc(), pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	seenIDs := make(map[string]bool)
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("expected position %d, got %d", i, c.Position)
		}
		if c.DocumentID != "test-doc" {
			t.Errorf("expected DocumentID test-doc, got %q", c.DocumentID)
		}
		if seenIDs[c.ID] {
			t.Errorf("duplicate chunk ID: %s", c.ID)
		}
		seenIDs[c.ID] = true
	}
	if chunks[2].PageIndex != 1 {
		t.Errorf("expected third chunk from page 1, got %d", chunks[2].PageIndex)
	}
}

func TestPipeline_Process_SkipsEmptyPages(t *testing.T) {
	proc := &mockProcessor{name: "chunker", chunks: []domain.Chunk{{Content: "a"}}}
	p := NewPipeline(proc)
	pages := []domain.Page{{Index: 0}, {Index: 1, Empty: true}, {Index: 2}}

	chunks, err := p.Process(context.Background(), testDoc(), pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(chunks))
	}
	if len(proc.seen) != 2 || proc.seen[0] != 0 || proc.seen[1] != 2 {
		t.Errorf("expected pages 0 and 2 processed, got %v", proc.seen)
	}
}

func TestPipeline_Process_StableIDs(t *testing.T) {
	p := NewPipeline(normaliser.New(), chunker.New(chunker.WithChunkSize(10), chunker.WithOverlap(2)))
	pages := []domain.Page{{Text: strings.Repeat("word ", 20)}}

	first, err := p.Process(context.Background(), testDoc(), pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Process(context.Background(), testDoc(), pages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d ID changed between runs", i)
		}
	}

	bumped := testDoc()
	bumped.Version = 2
	if ChunkID(bumped, 0) == first[0].ID {
		t.Error("expected a new version to change chunk IDs")
	}
}

func TestPipeline_Process_DoesNotMutateInputPages(t *testing.T) {
	p := NewPipeline(normaliser.New(), chunker.New())
	pages := []domain.Page{{Text: "  spaced   out  "}}

	if _, err := p.Process(context.Background(), testDoc(), pages); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages[0].Text != "  spaced   out  " {
		t.Errorf("input page was modified: %q", pages[0].Text)
	}
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	expectedErr := errors.New("processor failed")

	p := NewPipeline(&mockProcessor{
		name: "failing",
		err:  expectedErr,
	})

	_, err := p.Process(context.Background(), testDoc(), []domain.Page{{Text: "x"}})
	if err == nil {
		t.Error("expected error from failing processor")
	}
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected wrapped error, got: %v", err)
	}
}

func TestPipeline_Process_CancelledContext(t *testing.T) {
	p := NewPipeline(chunker.New())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Process(ctx, testDoc(), []domain.Page{{Text: "x"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

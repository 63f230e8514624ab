// Package memory provides in-memory implementations of the persistence
// ports, used by tests and ephemeral runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Store is an in-memory implementation of driven.Store. Every method
// holds a single lock, so commits are atomic.
type Store struct {
	mu            sync.RWMutex
	documents     map[string]domain.Document
	pages         map[string][]domain.Page
	chunks        map[string][]domain.Chunk
	embeddings    map[string][]domain.Embedding
	insights      map[string]domain.Insight
	contributions map[string]domain.Contribution
	dimensions    int
	scheduler     *SchedulerStore
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		documents:     make(map[string]domain.Document),
		pages:         make(map[string][]domain.Page),
		chunks:        make(map[string][]domain.Chunk),
		embeddings:    make(map[string][]domain.Embedding),
		insights:      make(map[string]domain.Insight),
		contributions: make(map[string]domain.Contribution),
		scheduler:     NewSchedulerStore(),
	}
}

// SchedulerStore returns the scheduler state kept alongside the documents.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return s.scheduler
}

// CreateDocument stores a new document.
func (s *Store) CreateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("document %s exists: %w", doc.ID, domain.ErrInvalidInput)
	}
	s.documents[doc.ID] = copyDocument(doc)
	return nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyDocument(&doc)
	return &out, nil
}

// FindDocumentByHash returns the document with hash in industry.
func (s *Store) FindDocumentByHash(_ context.Context, hash, industry string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.documents {
		if doc.ContentHash == hash && doc.Industry == industry {
			out := copyDocument(&doc)
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

// CountDocumentsByHash counts documents sharing hash.
func (s *Store) CountDocumentsByHash(_ context.Context, hash string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, doc := range s.documents {
		if doc.ContentHash == hash {
			n++
		}
	}
	return n, nil
}

// ListDocuments returns documents, newest first.
func (s *Store) ListDocuments(_ context.Context, opts driven.ListOptions) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if opts.Status != "" && doc.Status != opts.Status {
			continue
		}
		if opts.Industry != "" && doc.Industry != opts.Industry {
			continue
		}
		out = append(out, copyDocument(&doc))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ListResumable returns unfinished documents, oldest first.
func (s *Store) ListResumable(_ context.Context, includeFailed bool) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Document
	for _, doc := range s.documents {
		if doc.Status == domain.StatusDone {
			continue
		}
		if doc.Status == domain.StatusFailed && !includeFailed {
			continue
		}
		out = append(out, copyDocument(&doc))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateDocument stores a state change.
func (s *Store) UpdateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return domain.ErrNotFound
	}
	s.documents[doc.ID] = copyDocument(doc)
	return nil
}

// CommitStage stores a stage output together with the document state.
// Replacing chunks discards the document's embeddings.
func (s *Store) CommitStage(_ context.Context, c domain.StageCommit) error {
	if c.Document == nil {
		return fmt.Errorf("commit without document: %w", domain.ErrInvalidInput)
	}
	id := c.Document.ID

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}

	dims := s.dimensions
	for _, e := range c.Embeddings {
		if dims == 0 {
			dims = len(e.Vector)
		}
		if len(e.Vector) != dims {
			return fmt.Errorf("got %d, want %d: %w", len(e.Vector), dims, domain.ErrDimensionMismatch)
		}
	}

	if c.Pages != nil {
		s.pages[id] = append([]domain.Page(nil), c.Pages...)
	}
	if c.Chunks != nil {
		s.chunks[id] = append([]domain.Chunk(nil), c.Chunks...)
		delete(s.embeddings, id)
	}
	if c.Embeddings != nil {
		stored := make([]domain.Embedding, len(c.Embeddings))
		for i, e := range c.Embeddings {
			e.Vector = append([]float32(nil), e.Vector...)
			stored[i] = e
		}
		s.embeddings[id] = stored
		s.dimensions = dims
	}
	s.documents[id] = copyDocument(c.Document)
	return nil
}

// DeleteDocument removes a document, its outputs and its contribution.
func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}

	if c, ok := s.contributions[id]; ok {
		if ins, ok := s.insights[c.Industry]; ok {
			agg := ins.Aggregate.Clone()
			agg.Sub(c.Aggregate)
			ins.Aggregate = agg
			ins.Revision++
			s.insights[c.Industry] = ins
		}
		delete(s.contributions, id)
	}

	delete(s.documents, id)
	delete(s.pages, id)
	delete(s.chunks, id)
	delete(s.embeddings, id)
	return nil
}

// GetPages returns a document's pages by index.
func (s *Store) GetPages(_ context.Context, documentID string) ([]domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages := append([]domain.Page(nil), s.pages[documentID]...)
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}

// GetChunks returns a document's chunks by position.
func (s *Store) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := append([]domain.Chunk(nil), s.chunks[documentID]...)
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Position < chunks[j].Position })
	return chunks, nil
}

// GetEmbeddings returns a document's embeddings in chunk order.
func (s *Store) GetEmbeddings(_ context.Context, documentID string) ([]domain.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.embeddings[documentID]
	out := make([]domain.Embedding, len(stored))
	for i, e := range stored {
		e.Vector = append([]float32(nil), e.Vector...)
		out[i] = e
	}
	return out, nil
}

// EmbeddingDimensions returns the vector size fixed by the first write.
func (s *Store) EmbeddingDimensions(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions, nil
}

// GetInsight retrieves an industry insight.
func (s *Store) GetInsight(_ context.Context, industry string) (*domain.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ins, ok := s.insights[industry]
	if !ok {
		return nil, domain.ErrNotFound
	}
	ins.Aggregate = ins.Aggregate.Clone()
	return &ins, nil
}

// ListInsights returns non-empty insights by document count.
func (s *Store) ListInsights(_ context.Context, limit int) ([]domain.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Insight, 0, len(s.insights))
	for _, ins := range s.insights {
		if ins.Aggregate.Documents <= 0 {
			continue
		}
		ins.Aggregate = ins.Aggregate.Clone()
		out = append(out, ins)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Aggregate.Documents != out[j].Aggregate.Documents {
			return out[i].Aggregate.Documents > out[j].Aggregate.Documents
		}
		return out[i].Industry < out[j].Industry
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetContribution returns a document's applied contribution.
func (s *Store) GetContribution(_ context.Context, documentID string) (*domain.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contributions[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyContribution(c)
	return &out, nil
}

// ListContributions returns an industry's contributions by document ID.
func (s *Store) ListContributions(_ context.Context, industry string) ([]domain.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Contribution
	for _, c := range s.contributions {
		if c.Industry == industry {
			out = append(out, copyContribution(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out, nil
}

// CommitAggregation applies an aggregation if no revision has moved.
func (s *Store) CommitAggregation(_ context.Context, c domain.AggregationCommit) error {
	if c.Document == nil || c.Insight == nil || c.Contribution == nil {
		return fmt.Errorf("incomplete aggregation commit: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[c.Document.ID]; !ok {
		return domain.ErrNotFound
	}
	if s.insights[c.Insight.Industry].Revision != c.ExpectedRevision {
		return domain.ErrAggregationConflict
	}
	if c.Retracted != nil && s.insights[c.Retracted.Industry].Revision != c.RetractedExpectedRevision {
		return domain.ErrAggregationConflict
	}

	ins := *c.Insight
	ins.Aggregate = ins.Aggregate.Clone()
	s.insights[ins.Industry] = ins
	if c.Retracted != nil {
		old := *c.Retracted
		old.Aggregate = old.Aggregate.Clone()
		s.insights[old.Industry] = old
	}
	s.contributions[c.Contribution.DocumentID] = copyContribution(*c.Contribution)
	s.documents[c.Document.ID] = copyDocument(c.Document)
	return nil
}

// ReplaceInsight overwrites an insight.
func (s *Store) ReplaceInsight(_ context.Context, insight *domain.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ins := *insight
	ins.Aggregate = ins.Aggregate.Clone()
	s.insights[ins.Industry] = ins
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func copyDocument(doc *domain.Document) domain.Document {
	out := *doc
	if doc.Failure != nil {
		f := *doc.Failure
		out.Failure = &f
	}
	return out
}

func copyContribution(c domain.Contribution) domain.Contribution {
	c.Aggregate = c.Aggregate.Clone()
	c.Centroid = append([]float32(nil), c.Centroid...)
	return c
}

package driven

import (
	"context"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// DocumentStore persists documents and their stage outputs.
type DocumentStore interface {
	// CreateDocument stores a new document.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// FindDocumentByHash returns the document with the given content hash
	// and industry, or domain.ErrNotFound.
	FindDocumentByHash(ctx context.Context, hash, industry string) (*domain.Document, error)

	// CountDocumentsByHash returns how many documents share a content
	// hash across all industries.
	CountDocumentsByHash(ctx context.Context, hash string) (int, error)

	// ListDocuments returns documents, newest first.
	ListDocuments(ctx context.Context, opts ListOptions) ([]domain.Document, error)

	// ListResumable returns every document not in a terminal state, plus
	// failed documents when includeFailed is set.
	ListResumable(ctx context.Context, includeFailed bool) ([]domain.Document, error)

	// UpdateDocument stores a state change without touching stage outputs.
	UpdateDocument(ctx context.Context, doc *domain.Document) error

	// CommitStage atomically stores a stage's output and the document's
	// new state. Embeddings are checked against EmbeddingDimensions.
	CommitStage(ctx context.Context, commit domain.StageCommit) error

	// DeleteDocument removes a document with its pages, chunks and
	// embeddings. Its contribution is retracted from its insight in the
	// same transaction.
	DeleteDocument(ctx context.Context, id string) error

	// GetPages retrieves all pages for a document, ordered by index.
	GetPages(ctx context.Context, documentID string) ([]domain.Page, error)

	// GetChunks retrieves all chunks for a document, ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetEmbeddings retrieves embeddings for a document in chunk order.
	GetEmbeddings(ctx context.Context, documentID string) ([]domain.Embedding, error)

	// EmbeddingDimensions returns the stored vector size, or 0 before the
	// first embedding is written.
	EmbeddingDimensions(ctx context.Context) (int, error)
}

// InsightStore persists industry insights and document contributions.
type InsightStore interface {
	// GetInsight retrieves the insight for a normalised industry label.
	GetInsight(ctx context.Context, industry string) (*domain.Insight, error)

	// ListInsights returns insights with at least one document, ordered
	// by document count descending and then by industry.
	ListInsights(ctx context.Context, limit int) ([]domain.Insight, error)

	// GetContribution returns a document's applied contribution.
	GetContribution(ctx context.Context, documentID string) (*domain.Contribution, error)

	// ListContributions returns all contributions for an industry.
	ListContributions(ctx context.Context, industry string) ([]domain.Contribution, error)

	// CommitAggregation applies an aggregation atomically. It returns
	// domain.ErrAggregationConflict if an insight revision moved.
	CommitAggregation(ctx context.Context, commit domain.AggregationCommit) error

	// ReplaceInsight overwrites an insight without revision checks.
	// Used when rebuilding from contributions.
	ReplaceInsight(ctx context.Context, insight *domain.Insight) error
}

// Store is the persistence gateway used by the pipeline.
type Store interface {
	DocumentStore
	InsightStore

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ListOptions filters ListDocuments.
type ListOptions struct {
	// Status restricts results to one status. Empty means all.
	Status domain.Status

	// Industry restricts results to one industry label.
	Industry string

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

package driving

import (
	"context"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// IngestService runs documents through the ingestion pipeline.
type IngestService interface {
	// Submit stores an uploaded PDF and creates a pending document.
	// Uploading identical bytes for the same industry returns the
	// existing document.
	Submit(ctx context.Context, req SubmitRequest) (*domain.Document, error)

	// Ingest runs the pipeline for a document from its resume point.
	// A document that is already done is returned unchanged unless
	// opts.Force is set. A fatal stage error is returned as
	// *domain.IngestFailure after the document is marked failed.
	Ingest(ctx context.Context, documentID string, opts IngestOptions) (*domain.Document, error)

	// Resume ingests every resumable document.
	Resume(ctx context.Context, opts ResumeOptions) (*ResumeReport, error)

	// Status returns the persisted and live state of a document.
	Status(ctx context.Context, documentID string) (*IngestStatus, error)

	// Cancel stops a running ingestion at its next stage boundary.
	// Returns false if the document is not running.
	Cancel(documentID string) bool

	// List returns documents matching filter.
	List(ctx context.Context, filter DocumentFilter) ([]domain.Document, error)

	// Delete removes a document, its outputs and its contribution.
	Delete(ctx context.Context, documentID string) error
}

// SubmitRequest describes an uploaded document.
type SubmitRequest struct {
	// Name is the original file name.
	Name string

	// Industry is the label the document contributes to.
	Industry string

	// Outcome is the won/lost state, if known.
	Outcome domain.Outcome

	// Data is the PDF content.
	Data []byte
}

// IngestOptions configures a single ingestion run.
type IngestOptions struct {
	// Force restarts a completed document from the beginning.
	Force bool
}

// ResumeOptions configures Resume.
type ResumeOptions struct {
	// IncludeFailed retries failed documents from their checkpoint.
	IncludeFailed bool

	// TransientOnly limits IncludeFailed to failures marked transient.
	TransientOnly bool
}

// ResumeReport summarises a Resume call.
type ResumeReport struct {
	Attempted int
	Completed int
	Failed    int
	Cancelled int
}

// IngestStatus is the state of one document.
type IngestStatus struct {
	// Document is the persisted document.
	Document domain.Document

	// Running is true while a pipeline instance owns the document.
	Running bool

	// Stage is the stage in flight when Running.
	Stage domain.Stage

	// Pages, OCRPages, Chunks and Embeddings count stored outputs.
	Pages      int
	OCRPages   int
	Chunks     int
	Embeddings int
}

// DocumentFilter restricts List results.
type DocumentFilter struct {
	Status   domain.Status
	Industry string
	Limit    int
}

// IngestQueue ingests many documents concurrently.
type IngestQueue interface {
	// Start launches the workers.
	Start()

	// Enqueue adds a document, ingested later under ctx.
	Enqueue(ctx context.Context, documentID string, opts IngestOptions) error

	// RunAll ingests ids and returns results in input order.
	RunAll(ctx context.Context, ids []string, opts IngestOptions) []IngestResult

	// Close stops accepting documents and waits for queued ones.
	Close()
}

// IngestResult is the outcome of one queued document.
type IngestResult struct {
	DocumentID string
	Document   *domain.Document
	Err        error
}

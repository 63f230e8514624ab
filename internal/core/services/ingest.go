package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// Ensure Ingestor implements the interface.
var _ driving.IngestService = (*Ingestor)(nil)

// Ingestor drives documents through the persisted stage machine.
// Every stage boundary is a checkpoint: a crashed or cancelled run
// continues from the last committed status.
type Ingestor struct {
	store      driven.Store
	blobs      driven.BlobStore
	extractor  driven.TextExtractor
	ocr        driven.OCRFallback
	pipeline   driven.PostProcessorPipeline
	embedder   driven.Embedder
	noEmbedder error
	aggregator *Aggregator
	workers    int
	now        func() time.Time

	// Run tracking
	mu   sync.RWMutex
	runs map[string]*run
}

type run struct {
	cancel context.CancelFunc
	stage  domain.Stage
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithOCR enables the OCR fallback for low-yield pages. Without it a
// document that needs OCR fails with ErrOCREngineUnavailable.
func WithOCR(f driven.OCRFallback) IngestorOption {
	return func(s *Ingestor) {
		s.ocr = f
	}
}

// WithEmbeddingUnavailable records why the Ingestor was built without an
// embedder. Documents that still need embedding are refused with reason.
func WithEmbeddingUnavailable(reason error) IngestorOption {
	return func(s *Ingestor) {
		s.noEmbedder = reason
	}
}

// WithWorkers sets how many documents Resume ingests concurrently.
func WithWorkers(n int) IngestorOption {
	return func(s *Ingestor) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) IngestorOption {
	return func(s *Ingestor) {
		if now != nil {
			s.now = now
		}
	}
}

// NewIngestor creates an Ingestor. embedder may be nil, in which case
// only documents that are already embedded can be ingested.
func NewIngestor(
	store driven.Store,
	blobs driven.BlobStore,
	extractor driven.TextExtractor,
	pipeline driven.PostProcessorPipeline,
	embedder driven.Embedder,
	aggregator *Aggregator,
	opts ...IngestorOption,
) *Ingestor {
	s := &Ingestor{
		store:      store,
		blobs:      blobs,
		extractor:  extractor,
		pipeline:   pipeline,
		embedder:   embedder,
		aggregator: aggregator,
		workers:    DefaultWorkers,
		now:        time.Now,
		runs:       make(map[string]*run),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit stores the PDF bytes and creates a pending document.
func (s *Ingestor) Submit(ctx context.Context, req driving.SubmitRequest) (*domain.Document, error) {
	industry, err := domain.NormalizeIndustry(req.Industry)
	if err != nil {
		return nil, fmt.Errorf("industry: %w", err)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("empty upload: %w", domain.ErrInvalidInput)
	}
	outcome := req.Outcome
	if outcome == "" {
		outcome = domain.OutcomeUnknown
	}

	sum := sha256.Sum256(req.Data)
	hash := hex.EncodeToString(sum[:])

	existing, err := s.store.FindDocumentByHash(ctx, hash, industry)
	if err == nil {
		logger.Debug("Duplicate upload %s matches document %s", req.Name, existing.ID)
		if outcome != domain.OutcomeUnknown && outcome != existing.Outcome {
			return s.reclassify(ctx, existing, outcome)
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find document: %w", err)
	}

	ref, err := s.blobs.Put(ctx, req.Data)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	now := s.now()
	doc := &domain.Document{
		ID:          uuid.New().String(),
		Name:        req.Name,
		SourceRef:   ref,
		ContentHash: hash,
		Industry:    industry,
		Outcome:     outcome,
		Status:      domain.StatusPending,
		Checkpoint:  domain.StatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	logger.Info("Submitted %s as %s (industry %q)", req.Name, doc.ID, industry)
	return doc, nil
}

// reclassify records a new won or lost outcome on an existing document.
// A done document drops back to its embedded checkpoint so the next run
// only re-aggregates it. An unknown outcome never overwrites a known one.
func (s *Ingestor) reclassify(ctx context.Context, doc *domain.Document, outcome domain.Outcome) (*domain.Document, error) {
	if err := s.begin(doc.ID, func() {}); err != nil {
		return nil, err
	}
	defer s.end(doc.ID)

	previous := doc.Outcome
	next := *doc
	next.Outcome = outcome
	if next.Status == domain.StatusDone {
		next.Status = domain.StatusEmbedded
		next.Checkpoint = domain.StatusEmbedded
	}
	next.UpdatedAt = s.now()
	if err := s.store.UpdateDocument(ctx, &next); err != nil {
		return nil, fmt.Errorf("update outcome: %w", err)
	}
	logger.Info("Document %s outcome %s -> %s", doc.ID, previous, outcome)
	return &next, nil
}

// Ingest runs the pipeline for a document from its resume point.
func (s *Ingestor) Ingest(ctx context.Context, documentID string, opts driving.IngestOptions) (*domain.Document, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.begin(documentID, cancel); err != nil {
		return nil, err
	}
	defer s.end(documentID)

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if s.embedder == nil && needsEmbedding(doc, opts) {
		return doc, fmt.Errorf("document %s: %w", doc.ID, s.embedderError())
	}

	if err := s.prepare(ctx, doc, opts); err != nil {
		return nil, err
	}

	var pages []domain.Page
	for {
		if doc.Status == domain.StatusExtracted {
			if pages, err = s.store.GetPages(ctx, doc.ID); err != nil {
				return doc, fmt.Errorf("get pages: %w", err)
			}
		}
		stage, ok := domain.NextStage(doc.Status, pages)
		if !ok {
			break
		}
		if runCtx.Err() != nil {
			logger.Info("Document %s cancelled at %s", doc.ID, doc.Status)
			return doc, fmt.Errorf("document %s at %s: %w", doc.ID, doc.Status, domain.ErrCancelled)
		}

		s.setStage(doc.ID, stage)
		logger.Debug("Document %s: %s", doc.ID, stage)

		// A started stage completes and persists even if the run is cancelled.
		if err := s.runStage(context.WithoutCancel(runCtx), stage, doc); err != nil {
			return doc, s.fail(context.WithoutCancel(ctx), doc, stage, err)
		}
	}

	if doc.Status == domain.StatusDone {
		logger.Info("Document %s done (%d pages)", doc.ID, doc.PageCount)
	}
	return doc, nil
}

// needsEmbedding reports whether running doc with opts reaches the
// embedding stage.
func needsEmbedding(doc *domain.Document, opts driving.IngestOptions) bool {
	status := doc.Status
	switch status {
	case domain.StatusDone:
		return opts.Force
	case domain.StatusFailed:
		status = doc.ResumePoint()
	}
	return status != domain.StatusEmbedded && status != domain.StatusDone
}

func (s *Ingestor) embedderError() error {
	if s.noEmbedder != nil {
		return s.noEmbedder
	}
	return fmt.Errorf("no embedding provider configured: %w", domain.ErrEmbeddingUnavailable)
}

// prepare resets a done or failed document so the stage loop can run.
func (s *Ingestor) prepare(ctx context.Context, doc *domain.Document, opts driving.IngestOptions) error {
	switch doc.Status {
	case domain.StatusDone:
		if !opts.Force {
			return nil
		}
		doc.Version++
		doc.Status = domain.StatusPending
		doc.Checkpoint = domain.StatusPending
	case domain.StatusFailed:
		resume := doc.ResumePoint()
		doc.Status = resume
		doc.Checkpoint = resume
	default:
		return nil
	}
	doc.Failure = nil
	doc.UpdatedAt = s.now()
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return fmt.Errorf("reset document: %w", err)
	}
	return nil
}

func (s *Ingestor) runStage(ctx context.Context, stage domain.Stage, doc *domain.Document) error {
	switch stage {
	case domain.StageExtracting:
		return s.extract(ctx, doc)
	case domain.StageOCRFallback:
		return s.ocrFallback(ctx, doc)
	case domain.StageChunking:
		return s.chunk(ctx, doc)
	case domain.StageEmbedding:
		return s.embed(ctx, doc)
	case domain.StageAggregating:
		return s.aggregate(ctx, doc)
	}
	return fmt.Errorf("unknown stage %q", stage)
}

func (s *Ingestor) extract(ctx context.Context, doc *domain.Document) error {
	data, err := s.blobs.Get(ctx, doc.SourceRef)
	if err != nil {
		return fmt.Errorf("load upload: %w", err)
	}

	extraction, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return err
	}

	pages := make([]domain.Page, len(extraction.Pages))
	for i, p := range extraction.Pages {
		p.DocumentID = doc.ID
		pages[i] = p
	}
	if low := extraction.LowYieldPages(); len(low) > 0 {
		logger.Debug("Document %s: %d low-yield pages %v", doc.ID, len(low), low)
	}

	next := *doc
	next.PageCount = len(pages)
	return s.commit(ctx, domain.StageExtracting, doc, &next, domain.StageCommit{Pages: pages})
}

func (s *Ingestor) ocrFallback(ctx context.Context, doc *domain.Document) error {
	if s.ocr == nil {
		return fmt.Errorf("no OCR engine configured: %w", domain.ErrOCREngineUnavailable)
	}

	pages, err := s.store.GetPages(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get pages: %w", err)
	}
	data, err := s.blobs.Get(ctx, doc.SourceRef)
	if err != nil {
		return fmt.Errorf("load upload: %w", err)
	}

	recovered := make([]domain.Page, len(pages))
	for i, p := range pages {
		if !p.LowYield || p.Method != domain.MethodDirect {
			recovered[i] = p
			continue
		}
		out, err := s.ocr.Recover(ctx, data, p)
		if err != nil {
			return fmt.Errorf("page %d: %w", p.Index, err)
		}
		out.DocumentID = doc.ID
		recovered[i] = out
	}

	next := *doc
	return s.commit(ctx, domain.StageOCRFallback, doc, &next, domain.StageCommit{Pages: recovered})
}

func (s *Ingestor) chunk(ctx context.Context, doc *domain.Document) error {
	pages, err := s.store.GetPages(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get pages: %w", err)
	}

	chunks, err := s.pipeline.Process(ctx, doc, pages)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}

	next := *doc
	return s.commit(ctx, domain.StageChunking, doc, &next, domain.StageCommit{Chunks: chunks})
}

func (s *Ingestor) embed(ctx context.Context, doc *domain.Document) error {
	chunks, err := s.store.GetChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return err
	}

	if len(vectors) > 0 {
		dims, err := s.store.EmbeddingDimensions(ctx)
		if err != nil {
			return fmt.Errorf("embedding dimensions: %w", err)
		}
		if dims != 0 && len(vectors[0]) != dims {
			return fmt.Errorf("got %d, stored %d: %w", len(vectors[0]), dims, domain.ErrDimensionMismatch)
		}
	}

	now := s.now()
	model := s.embedder.ModelName()
	embeddings := make([]domain.Embedding, len(chunks))
	for i, c := range chunks {
		embeddings[i] = domain.Embedding{
			ChunkID:   c.ID,
			Vector:    vectors[i],
			Model:     model,
			CreatedAt: now,
		}
	}

	next := *doc
	return s.commit(ctx, domain.StageEmbedding, doc, &next, domain.StageCommit{Embeddings: embeddings})
}

func (s *Ingestor) aggregate(ctx context.Context, doc *domain.Document) error {
	pages, err := s.store.GetPages(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get pages: %w", err)
	}
	chunks, err := s.store.GetChunks(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}
	embeddings, err := s.store.GetEmbeddings(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("get embeddings: %w", err)
	}

	c := s.aggregator.Contribution(doc, pages, chunks, embeddings)
	return s.aggregator.Apply(ctx, doc, c)
}

// commit persists a stage output with the status that follows it. doc
// only advances once the write has succeeded.
func (s *Ingestor) commit(
	ctx context.Context,
	stage domain.Stage,
	doc, next *domain.Document,
	c domain.StageCommit,
) error {
	status := domain.CompletedStatus(stage)

	next.Status = status
	next.Checkpoint = status
	next.Failure = nil
	next.UpdatedAt = s.now()
	c.Document = next

	if err := s.store.CommitStage(ctx, c); err != nil {
		return fmt.Errorf("commit %s: %w", stage, err)
	}
	*doc = *next
	return nil
}

// fail records a fatal stage error on the document. The checkpoint is
// kept so a later run resumes after the last completed stage.
func (s *Ingestor) fail(ctx context.Context, doc *domain.Document, stage domain.Stage, cause error) error {
	kind, transient := domain.ClassifyError(cause)
	now := s.now()

	doc.Status = domain.StatusFailed
	doc.Failure = &domain.Failure{
		Kind:      kind,
		Stage:     stage,
		Message:   cause.Error(),
		Transient: transient,
		At:        now,
	}
	doc.UpdatedAt = now

	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		logger.Error("Failed to record failure for %s: %v", doc.ID, err)
	}
	logger.Warn("Document %s failed at %s (%s): %v", doc.ID, stage, kind, cause)

	return &domain.IngestFailure{
		DocumentID: doc.ID,
		Stage:      stage,
		Kind:       kind,
		Err:        cause,
	}
}

// Resume ingests every resumable document through a worker queue.
func (s *Ingestor) Resume(ctx context.Context, opts driving.ResumeOptions) (*driving.ResumeReport, error) {
	docs, err := s.store.ListResumable(ctx, opts.IncludeFailed)
	if err != nil {
		return nil, fmt.Errorf("list resumable: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		if opts.TransientOnly && d.Status == domain.StatusFailed && (d.Failure == nil || !d.Failure.Transient) {
			continue
		}
		ids = append(ids, d.ID)
	}

	report := &driving.ResumeReport{Attempted: len(ids)}
	if len(ids) == 0 {
		return report, nil
	}
	logger.Info("Resuming %d documents", len(ids))

	queue := NewQueue(s.Ingest, WithQueueWorkers(s.workers))
	for _, r := range queue.RunAll(ctx, ids, driving.IngestOptions{}) {
		switch {
		case r.Err == nil && r.Document != nil && r.Document.Status == domain.StatusDone:
			report.Completed++
		case errors.Is(r.Err, domain.ErrCancelled) || errors.Is(r.Err, context.Canceled):
			report.Cancelled++
		default:
			report.Failed++
		}
	}
	return report, nil
}

// Status returns the persisted and live state of a document.
func (s *Ingestor) Status(ctx context.Context, documentID string) (*driving.IngestStatus, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	status := &driving.IngestStatus{Document: *doc}

	s.mu.RLock()
	if r, ok := s.runs[documentID]; ok {
		status.Running = true
		status.Stage = r.stage
	}
	s.mu.RUnlock()

	pages, err := s.store.GetPages(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get pages: %w", err)
	}
	status.Pages = len(pages)
	for _, p := range pages {
		if p.Method == domain.MethodOCR {
			status.OCRPages++
		}
	}

	chunks, err := s.store.GetChunks(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	status.Chunks = len(chunks)

	embeddings, err := s.store.GetEmbeddings(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get embeddings: %w", err)
	}
	status.Embeddings = len(embeddings)

	return status, nil
}

// Cancel stops a running ingestion at its next stage boundary.
func (s *Ingestor) Cancel(documentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[documentID]
	if !ok {
		return false
	}
	r.cancel()
	return true
}

// List returns documents matching filter.
func (s *Ingestor) List(ctx context.Context, filter driving.DocumentFilter) ([]domain.Document, error) {
	opts := driven.ListOptions{
		Status: filter.Status,
		Limit:  filter.Limit,
	}
	if filter.Industry != "" {
		industry, err := domain.NormalizeIndustry(filter.Industry)
		if err != nil {
			return nil, err
		}
		opts.Industry = industry
	}
	return s.store.ListDocuments(ctx, opts)
}

// Delete removes a document, its stage outputs and its contribution.
// The upload is removed once no other document references it.
func (s *Ingestor) Delete(ctx context.Context, documentID string) error {
	if err := s.begin(documentID, func() {}); err != nil {
		return err
	}
	defer s.end(documentID)

	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}

	unlock := s.aggregator.Locks().Lock(doc.Industry)
	err = s.store.DeleteDocument(ctx, documentID)
	unlock()
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	remaining, err := s.store.CountDocumentsByHash(ctx, doc.ContentHash)
	if err != nil {
		return fmt.Errorf("count uploads: %w", err)
	}
	if remaining == 0 {
		if err := s.blobs.Delete(ctx, doc.SourceRef); err != nil {
			logger.Warn("Failed to delete upload %s: %v", doc.SourceRef, err)
		}
	}
	logger.Info("Deleted document %s", documentID)
	return nil
}

// begin claims a document for one run.
func (s *Ingestor) begin(documentID string, cancel context.CancelFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[documentID]; ok {
		return fmt.Errorf("document %s: %w", documentID, domain.ErrIngestInProgress)
	}
	s.runs[documentID] = &run{cancel: cancel}
	return nil
}

func (s *Ingestor) setStage(documentID string, stage domain.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[documentID]; ok {
		r.stage = stage
	}
}

func (s *Ingestor) end(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, documentID)
}

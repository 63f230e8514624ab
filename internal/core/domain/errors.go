package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnreadableDocument indicates the bytes are not a parseable PDF.
	// Fatal for the document.
	ErrUnreadableDocument = errors.New("unreadable document")

	// ErrOCREngineUnavailable indicates the recognition engine could not
	// be invoked, usually because a runtime dependency is missing.
	// Fatal for the document.
	ErrOCREngineUnavailable = errors.New("ocr engine unavailable")

	// ErrLowYieldPage signals that a page produced too little text.
	// It is never returned to callers; it triggers OCR or page exclusion.
	ErrLowYieldPage = errors.New("low-yield page")

	// ErrAggregationConflict indicates an insight changed between read and
	// commit. The industry critical section is retried.
	ErrAggregationConflict = errors.New("aggregation conflict")

	// ErrDimensionMismatch indicates an embedding's length differs from the
	// dimensionality already stored.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIngestInProgress indicates another run owns the document.
	ErrIngestInProgress = errors.New("ingestion in progress")

	// ErrCancelled indicates ingestion stopped at a stage boundary
	// because its context was cancelled.
	ErrCancelled = errors.New("ingestion cancelled")

	// ErrEmbeddingUnavailable indicates the embedding provider is not
	// configured or cannot be reached. Ingestion cannot start without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Cluster summaries are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrMalformedLLMResponse indicates the LLM reply was not valid JSON
	// or did not match the cluster insight schema.
	ErrMalformedLLMResponse = errors.New("malformed LLM response")
)

// ErrorKind classifies the cause recorded on a failed document.
type ErrorKind string

const (
	KindUnreadableDocument   ErrorKind = "unreadable_document"
	KindOCREngineUnavailable ErrorKind = "ocr_engine_unavailable"
	KindEmbeddingService     ErrorKind = "embedding_service_error"
	KindDimensionMismatch    ErrorKind = "dimension_mismatch"
	KindInternal             ErrorKind = "internal"
)

// EmbeddingErrorKind is the transient/permanent classification of an
// embedding service failure.
type EmbeddingErrorKind string

const (
	EmbeddingTransient EmbeddingErrorKind = "transient"
	EmbeddingPermanent EmbeddingErrorKind = "permanent"
)

// Reasons reported by embedding providers.
const (
	ReasonRateLimit         = "rate_limit"
	ReasonTimeout           = "timeout"
	ReasonServer            = "server"
	ReasonNetwork           = "network"
	ReasonAuth              = "auth"
	ReasonMalformedRequest  = "malformed_request"
	ReasonMalformedResponse = "malformed_response"
)

// EmbeddingError is returned by embedding providers and the embedding client.
type EmbeddingError struct {
	Kind       EmbeddingErrorKind
	Reason     string
	StatusCode int

	// RetryAfter is the provider's requested delay, if it sent one.
	RetryAfter time.Duration

	// Attempts is set by the client once its retry budget is spent.
	Attempts int

	Err error
}

func (e *EmbeddingError) Error() string {
	msg := fmt.Sprintf("embedding service error{%s}: %s", e.Kind, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// Transient reports whether the failure may succeed on retry.
func (e *EmbeddingError) Transient() bool {
	return e.Kind == EmbeddingTransient
}

// NewTransientEmbeddingError builds a retryable embedding error.
func NewTransientEmbeddingError(reason string, status int, err error) *EmbeddingError {
	return &EmbeddingError{Kind: EmbeddingTransient, Reason: reason, StatusCode: status, Err: err}
}

// NewPermanentEmbeddingError builds a non-retryable embedding error.
func NewPermanentEmbeddingError(reason string, status int, err error) *EmbeddingError {
	return &EmbeddingError{Kind: EmbeddingPermanent, Reason: reason, StatusCode: status, Err: err}
}

// IngestFailure is the structured report returned when a document
// transitions to failed.
type IngestFailure struct {
	DocumentID string
	Stage      Stage
	Kind       ErrorKind
	Err        error
}

func (f *IngestFailure) Error() string {
	return fmt.Sprintf("document %s failed at %s (%s): %v", f.DocumentID, f.Stage, f.Kind, f.Err)
}

func (f *IngestFailure) Unwrap() error { return f.Err }

// ClassifyError maps a stage error to the kind recorded on the document.
func ClassifyError(err error) (ErrorKind, bool) {
	var embErr *EmbeddingError
	switch {
	case errors.Is(err, ErrUnreadableDocument):
		return KindUnreadableDocument, false
	case errors.Is(err, ErrOCREngineUnavailable):
		return KindOCREngineUnavailable, false
	case errors.As(err, &embErr):
		return KindEmbeddingService, embErr.Transient()
	case errors.Is(err, ErrDimensionMismatch):
		return KindDimensionMismatch, false
	}
	return KindInternal, false
}

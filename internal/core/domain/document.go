package domain

import "time"

// Status is the persisted ingestion checkpoint of a document.
// Each value names the last stage whose output has been stored.
type Status string

const (
	// StatusPending means the document has been uploaded but not processed.
	StatusPending Status = "pending"
	// StatusExtracted means direct text extraction has been stored.
	StatusExtracted Status = "extracted"
	// StatusOCRFallback means OCR output for low-yield pages has been stored.
	StatusOCRFallback Status = "ocr_fallback"
	// StatusChunked means chunks have been stored.
	StatusChunked Status = "chunked"
	// StatusEmbedded means embeddings have been stored.
	StatusEmbedded Status = "embedded"
	// StatusDone means the document's contribution is part of its industry insight.
	StatusDone Status = "done"
	// StatusFailed means a fatal error stopped ingestion. See Document.Failure.
	StatusFailed Status = "failed"
)

// IsTerminal reports whether no further stage transitions occur from s.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusExtracted, StatusOCRFallback, StatusChunked,
		StatusEmbedded, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Stage is a unit of pipeline work. A stage runs between two statuses.
type Stage string

const (
	StageExtracting  Stage = "extracting"
	StageOCRFallback Stage = "ocr_fallback"
	StageChunking    Stage = "chunking"
	StageEmbedding   Stage = "embedding"
	StageAggregating Stage = "aggregating"
)

// Outcome records whether the opportunity described by a document was won.
type Outcome string

const (
	OutcomeUnknown Outcome = "unknown"
	OutcomeWon     Outcome = "won"
	OutcomeLost    Outcome = "lost"
)

// ParseOutcome maps user input to an Outcome. Empty input is unknown.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case "", OutcomeUnknown:
		return OutcomeUnknown, nil
	case OutcomeWon, OutcomeLost:
		return Outcome(s), nil
	}
	return "", ErrInvalidInput
}

// Document is an uploaded PDF moving through the ingestion pipeline.
type Document struct {
	// ID is the unique identifier.
	ID string

	// Name is the original file name.
	Name string

	// SourceRef locates the original bytes in the blob store.
	SourceRef string

	// ContentHash is the hex SHA-256 of the original bytes.
	ContentHash string

	// Industry is the normalised industry label the document is tagged with.
	Industry string

	// Outcome is the won/lost state of the opportunity.
	Outcome Outcome

	// Status is the current persisted state.
	Status Status

	// Checkpoint is the last successfully completed status.
	// It differs from Status only while the document is failed.
	Checkpoint Status

	// Version increases each time ingestion is forced to start over.
	Version int

	// PageCount is the number of pages found by extraction.
	PageCount int

	// Failure holds the cause when Status is StatusFailed.
	Failure *Failure

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the document last changed state.
	UpdatedAt time.Time
}

// Failure describes why a document's ingestion stopped.
type Failure struct {
	Kind      ErrorKind
	Stage     Stage
	Message   string
	Transient bool
	At        time.Time
}

// ExtractionMethod records which path produced a page's text.
type ExtractionMethod string

const (
	// MethodDirect means the text came from the PDF content stream.
	MethodDirect ExtractionMethod = "direct"
	// MethodOCR means the page was rasterised and recognised.
	MethodOCR ExtractionMethod = "ocr"
)

// Page is the text of one PDF page.
type Page struct {
	// DocumentID links to the parent document.
	DocumentID string

	// Index is the 0-based page number, unique within the document.
	Index int

	// Text is the raw extracted text. May be empty.
	Text string

	// Method is the extraction path used.
	Method ExtractionMethod

	// Confidence is the OCR confidence in [0, 1]. Zero for direct pages.
	Confidence float64

	// CharCount is the number of recognised glyphs in Text.
	CharCount int

	// GlyphRatio is the share of non-space runes that are recognised glyphs.
	GlyphRatio float64

	// Area is the page size in square points.
	Area float64

	// LowYield is set when direct extraction fell below the threshold.
	LowYield bool

	// Empty is set when OCR also fell below the threshold.
	// Empty pages are excluded from chunking.
	Empty bool
}

// Chunk is a bounded segment of normalised page text.
type Chunk struct {
	// ID is the unique identifier.
	ID string

	// DocumentID links to the parent document.
	DocumentID string

	// PageIndex is the page the chunk was cut from.
	PageIndex int

	// Position is the 0-based order of the chunk within the document.
	Position int

	// Content is the chunk text. Never empty.
	Content string

	// StartOffset and EndOffset are rune offsets into the normalised page text.
	StartOffset int
	EndOffset   int

	// Overlap is the number of leading runes shared with the previous
	// chunk on the same page.
	Overlap int
}

// Embedding is the vector generated for one chunk.
type Embedding struct {
	ChunkID   string
	Vector    []float32
	Model     string
	CreatedAt time.Time
}

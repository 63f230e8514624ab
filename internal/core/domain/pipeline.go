package domain

// StageCommit is the atomic "advance state + store stage output" write.
// Nil slices leave the stored data untouched; non-nil slices replace it.
type StageCommit struct {
	Document   *Document
	Pages      []Page
	Chunks     []Chunk
	Embeddings []Embedding
}

// CompletedStatus is the status persisted once stage has finished.
func CompletedStatus(stage Stage) Status {
	switch stage {
	case StageExtracting:
		return StatusExtracted
	case StageOCRFallback:
		return StatusOCRFallback
	case StageChunking:
		return StatusChunked
	case StageEmbedding:
		return StatusEmbedded
	case StageAggregating:
		return StatusDone
	}
	return StatusFailed
}

// NextStage returns the stage that follows the given checkpoint.
// pages are the stored pages and decide whether OCR is needed after
// extraction. ok is false when there is nothing left to run.
func NextStage(checkpoint Status, pages []Page) (stage Stage, ok bool) {
	switch checkpoint {
	case StatusPending:
		return StageExtracting, true
	case StatusExtracted:
		if NeedsOCR(pages) {
			return StageOCRFallback, true
		}
		return StageChunking, true
	case StatusOCRFallback:
		return StageChunking, true
	case StatusChunked:
		return StageEmbedding, true
	case StatusEmbedded:
		return StageAggregating, true
	}
	return "", false
}

// NeedsOCR reports whether any directly extracted page is low-yield.
func NeedsOCR(pages []Page) bool {
	for _, p := range pages {
		if p.LowYield && p.Method == MethodDirect {
			return true
		}
	}
	return false
}

// ResumePoint is the checkpoint a document continues from.
func (d *Document) ResumePoint() Status {
	if d.Status == StatusFailed {
		if d.Checkpoint == "" {
			return StatusPending
		}
		return d.Checkpoint
	}
	return d.Status
}

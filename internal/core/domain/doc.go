// Package domain holds the entities the ingestion pipeline and the
// insight aggregator pass between each other:
//
//   - Document: an uploaded PDF, its industry, outcome and status
//   - Page: the text of one page, extracted directly or by OCR
//   - Chunk: a bounded slice of normalised page text
//   - Embedding: the vector stored for a chunk
//   - Insight: the per-industry aggregate of document contributions
//   - ScheduledTask and TaskResult: background maintenance runs
//
// It imports only the standard library; every other package may depend
// on it and it depends on none of them.
package domain

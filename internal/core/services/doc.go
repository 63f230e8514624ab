// Package services implements the driving port interfaces.
//
// Ingestor moves uploaded documents through the persisted stage machine
// (extract, OCR fallback, chunk, embed, aggregate). Aggregator folds
// document contributions into per-industry insights under a keyed lock.
// InsightQuery serves industry listings, k-means clusters and LLM
// summaries. Scheduler resumes failed documents and rebuilds insights in
// the background.
//
// Services depend only on driven ports and never on concrete adapters.
package services

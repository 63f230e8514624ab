// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for ingestion to run:
//
//   - TextExtractor: Direct per-page PDF text extraction
//   - OCRFallback: Recognises low-yield pages (Rasterizer + OCREngine)
//   - PostProcessorPipeline: Normalises page text and cuts chunks
//   - Embedder: Ordered, batched, retried embedding of chunk texts
//   - Store: Documents, pages, chunks, embeddings and insights
//   - BlobStore: Original PDF bytes
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Without it, cluster summaries are disabled.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or infrastructure package
package driven

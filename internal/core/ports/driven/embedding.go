package driven

import "context"

// EmbeddingService is one provider endpoint, called one batch at a
// time. Failures are *domain.EmbeddingError values so the Embedder can
// decide whether to retry.
type EmbeddingService interface {
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the nominal vector size, or 0 when unknown.
	Dimensions() int

	ModelName() string
	Ping(ctx context.Context) error
	Close() error
}

// Embedder embeds any number of texts with batching, retries and order
// preservation layered over an EmbeddingService.
type Embedder interface {
	// EmbedAll returns vectors[i] for texts[i].
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName returns the model recorded on stored embeddings.
	ModelName() string
}

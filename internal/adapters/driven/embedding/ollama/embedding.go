// Package ollama embeds text through a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/embedding/httperr"
	"github.com/custodia-labs/opptrack/internal/adapters/driven/httpjson"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "nomic-embed-text"
	DefaultTimeout    = 30 * time.Second
	DefaultDimensions = 768
)

// Config configures the adapter. Zero fields take the defaults above.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// EmbeddingService calls /api/embed, which accepts a whole batch.
type EmbeddingService struct {
	api        *httpjson.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates the adapter.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	cfg.BaseURL = orDefault(cfg.BaseURL, DefaultBaseURL)
	cfg.Model = orDefault(cfg.Model, DefaultModel)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	return &EmbeddingService{
		api:        httpjson.New("ollama", cfg.BaseURL, cfg.Timeout),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// EmbedBatch returns one vector per text, in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{s.model, texts}
	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := s.api.Post(ctx, "/api/embed", req, &resp); err != nil {
		return nil, httperr.Classify(err)
	}
	if got := len(resp.Embeddings); got != len(texts) {
		return nil, httperr.Malformed(fmt.Errorf("ollama: %d embeddings for %d inputs", got, len(texts)))
	}
	return resp.Embeddings, nil
}

func (s *EmbeddingService) Dimensions() int   { return s.dimensions }
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists local models, which needs no inference.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return httperr.Classify(s.api.Get(ctx, "/api/tags"))
}

func (s *EmbeddingService) Close() error {
	s.api.Close()
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

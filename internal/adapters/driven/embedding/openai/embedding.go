// Package openai embeds text through the OpenAI embeddings endpoint or
// any server that speaks the same protocol.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/embedding/httperr"
	"github.com/custodia-labs/opptrack/internal/adapters/driven/httpjson"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "text-embedding-3-small"
	DefaultTimeout = 60 * time.Second
)

var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config configures the adapter. A base URL without a key targets a
// compatible local server; the hosted API needs a key.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions shortens text-embedding-3 vectors when set. For other
	// models it only reports the expected size.
	Dimensions int
}

// EmbeddingService calls POST /embeddings.
type EmbeddingService struct {
	api        *httpjson.Client
	model      string
	dimensions int
	shortens   bool
}

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewEmbeddingService creates the adapter.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai: the hosted API needs an API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = knownDimensions[cfg.Model]
	}

	return &EmbeddingService{
		api:        httpjson.New("openai", cfg.BaseURL, cfg.Timeout, httpjson.WithBearer(cfg.APIKey)),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		shortens:   strings.HasPrefix(cfg.Model, "text-embedding-3-"),
	}, nil
}

// EmbedBatch returns one vector per text. The response may list
// vectors in any order; they are placed by their index.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	req := embeddingsRequest{Model: s.model, Input: texts}
	if s.shortens {
		req.Dimensions = s.dimensions
	}
	var resp embeddingsResponse
	if err := s.api.Post(ctx, "/embeddings", req, &resp); err != nil {
		return nil, httperr.Classify(err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, httperr.Malformed(fmt.Errorf("openai: embedding index %d out of range", d.Index))
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, httperr.Malformed(fmt.Errorf("openai: no embedding for input %d", i))
		}
	}
	return out, nil
}

// Dimensions is zero for models whose size is not known up front.
func (s *EmbeddingService) Dimensions() int   { return s.dimensions }
func (s *EmbeddingService) ModelName() string { return s.model }

// Ping lists models, which checks the key without spending tokens.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return httperr.Classify(s.api.Get(ctx, "/models"))
}

func (s *EmbeddingService) Close() error {
	s.api.Close()
	return nil
}

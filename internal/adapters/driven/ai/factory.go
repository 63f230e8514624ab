// Package ai builds embedding and LLM adapters from provider settings.
package ai

import (
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/opptrack/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/opptrack/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/opptrack/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/opptrack/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/opptrack/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// pingTimeout bounds a provider probe when the caller sets none.
const pingTimeout = 5 * time.Second

// Services holds the AI adapters for one process.
type Services struct {
	Embedding driven.EmbeddingService // nil when ingestion is disabled.
	LLM       driven.LLMService       // nil when summaries are disabled.
	Warnings  []string                // Non-fatal issues, e.g. LLM disabled.

	// EmbeddingErr says why Embedding is nil. It wraps
	// domain.ErrEmbeddingUnavailable.
	EmbeddingErr error
}

// Close releases all resources held by Services.
func (s *Services) Close() {
	if s.Embedding != nil {
		s.Embedding.Close()
	}
	if s.LLM != nil {
		s.LLM.Close()
	}
}

// Build creates the embedding and LLM services. Both are optional here:
// without embeddings the query side still works and only ingestion is
// refused, so a missing or broken provider is reported as a warning.
func Build(embed *domain.EmbeddingSettings, llm *domain.LLMSettings) (*Services, error) {
	s := &Services{}

	embSvc, err := CreateEmbeddingService(embed)
	switch {
	case err != nil:
		s.EmbeddingErr = fmt.Errorf("%w: %w. Run 'opptrack config set embedding.provider <ollama|openai>' to fix",
			domain.ErrEmbeddingUnavailable, err)
	case embSvc == nil:
		s.EmbeddingErr = fmt.Errorf("%w: no provider configured. Run 'opptrack config set embedding.provider <ollama|openai>'",
			domain.ErrEmbeddingUnavailable)
	default:
		s.Embedding = embSvc
	}
	if s.EmbeddingErr != nil {
		s.Warnings = append(s.Warnings, fmt.Sprintf("ingestion disabled: %v", s.EmbeddingErr))
	}

	llmSvc, err := CreateLLMService(llm)
	switch {
	case err != nil:
		s.Warnings = append(s.Warnings, fmt.Sprintf("cluster summaries disabled: %v", err))
	case llmSvc == nil:
		s.Warnings = append(s.Warnings, "cluster summaries disabled: no LLM configured")
	default:
		s.LLM = llmSvc
	}
	return s, nil
}

// CreateEmbeddingService creates the embedding adapter for settings.
// Returns nil if no provider is set.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if settings.Model == "" {
		return nil, errors.New("embedding model is not set")
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(settings)

	case domain.AIProviderAnthropic:
		return nil, errors.New("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the LLM adapter for settings.
// Returns nil if no provider is set.
func CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || settings.Provider == "" {
		return nil, nil
	}
	if settings.Model == "" {
		return nil, errors.New("llm model is not set")
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return createOllamaLLM(settings), nil

	case domain.AIProviderOpenAI:
		return createOpenAILLM(settings)

	case domain.AIProviderAnthropic:
		return createAnthropicLLM(settings)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}

func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := domain.EmbeddingDimensions()[settings.Model]
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: dimensions,
	})
}

// createOpenAIEmbedding leaves Dimensions zero for models outside the
// lookup; the adapter learns the size from the first response.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:     settings.APIKey,
		BaseURL:    settings.BaseURL,
		Model:      settings.Model,
		Dimensions: domain.EmbeddingDimensions()[settings.Model],
	})
}

func createOllamaLLM(settings *domain.LLMSettings) driven.LLMService {
	return ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

func createOpenAILLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

func createAnthropicLLM(settings *domain.LLMSettings) (driven.LLMService, error) {
	return anthropicllm.NewLLMService(anthropicllm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}

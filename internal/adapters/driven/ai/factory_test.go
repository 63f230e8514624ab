package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

func TestCreateEmbeddingService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.EmbeddingSettings
		wantNil     bool
		errContains string
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "no provider", settings: &domain.EmbeddingSettings{Model: "x"}, wantNil: true},
		{
			name:     "ollama",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text"},
		},
		{
			name: "openai",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI, Model: "text-embedding-3-small", APIKey: "test-key",
			},
		},
		{
			name: "openai-compatible without key",
			settings: &domain.EmbeddingSettings{
				Provider: domain.AIProviderOpenAI, Model: "bge-m3", BaseURL: "http://embeddings.internal/v1",
			},
		},
		{
			name:        "missing model",
			settings:    &domain.EmbeddingSettings{Provider: domain.AIProviderOllama},
			wantNil:     true,
			errContains: "model",
		},
		{
			name:        "anthropic",
			settings:    &domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, Model: "x", APIKey: "k"},
			wantNil:     true,
			errContains: "anthropic does not support embeddings",
		},
		{
			name:        "unknown provider",
			settings:    &domain.EmbeddingSettings{Provider: "cohere", Model: "x"},
			wantNil:     true,
			errContains: "unsupported embedding provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateEmbeddingService(tt.settings)
			if svc != nil {
				defer svc.Close()
			}

			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantNil, svc == nil)
		})
	}
}

func TestCreateEmbeddingService_Dimensions(t *testing.T) {
	svc, err := CreateEmbeddingService(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama,
		Model:    "mxbai-embed-large",
	})
	require.NoError(t, err)
	defer svc.Close()

	assert.Equal(t, 1024, svc.Dimensions())
	assert.Equal(t, "mxbai-embed-large", svc.ModelName())
}

func TestCreateLLMService(t *testing.T) {
	tests := []struct {
		name        string
		settings    *domain.LLMSettings
		wantNil     bool
		errContains string
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "no provider", settings: &domain.LLMSettings{}, wantNil: true},
		{name: "ollama", settings: &domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"}},
		{
			name:     "openai",
			settings: &domain.LLMSettings{Provider: domain.AIProviderOpenAI, Model: "gpt-4o-mini", APIKey: "k"},
		},
		{
			name: "anthropic",
			settings: &domain.LLMSettings{
				Provider: domain.AIProviderAnthropic, Model: "claude-3-5-sonnet-latest", APIKey: "k",
			},
		},
		{
			name:        "missing model",
			settings:    &domain.LLMSettings{Provider: domain.AIProviderOllama},
			wantNil:     true,
			errContains: "model",
		},
		{
			name:        "unknown provider",
			settings:    &domain.LLMSettings{Provider: "bard", Model: "x"},
			wantNil:     true,
			errContains: "unsupported LLM provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := CreateLLMService(tt.settings)
			if svc != nil {
				defer svc.Close()
			}

			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantNil, svc == nil)
		})
	}
}

func TestBuild(t *testing.T) {
	t.Run("missing embedding disables ingestion", func(t *testing.T) {
		svcs, err := Build(&domain.EmbeddingSettings{}, nil)
		require.NoError(t, err)
		defer svcs.Close()

		assert.Nil(t, svcs.Embedding)
		require.ErrorIs(t, svcs.EmbeddingErr, domain.ErrEmbeddingUnavailable)
		assert.Contains(t, svcs.EmbeddingErr.Error(), "opptrack config set embedding.provider")
		require.Len(t, svcs.Warnings, 2)
		assert.Contains(t, svcs.Warnings[0], "ingestion disabled")
	})

	t.Run("bad embedding provider", func(t *testing.T) {
		svcs, err := Build(&domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, Model: "x"}, nil)
		require.NoError(t, err)

		assert.Nil(t, svcs.Embedding)
		assert.ErrorIs(t, svcs.EmbeddingErr, domain.ErrEmbeddingUnavailable)
		assert.Contains(t, svcs.EmbeddingErr.Error(), "anthropic does not support embeddings")
	})

	t.Run("llm optional", func(t *testing.T) {
		svcs, err := Build(&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "all-minilm"}, nil)
		require.NoError(t, err)
		defer svcs.Close()

		assert.NotNil(t, svcs.Embedding)
		assert.NoError(t, svcs.EmbeddingErr)
		assert.Nil(t, svcs.LLM)
		require.Len(t, svcs.Warnings, 1)
		assert.Contains(t, svcs.Warnings[0], "no LLM configured")
	})

	t.Run("broken llm is a warning", func(t *testing.T) {
		svcs, err := Build(
			&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "all-minilm"},
			&domain.LLMSettings{Provider: domain.AIProviderAnthropic, Model: "claude-3-5-sonnet-latest"},
		)
		require.NoError(t, err)
		defer svcs.Close()

		assert.Nil(t, svcs.LLM)
		require.Len(t, svcs.Warnings, 1)
		assert.Contains(t, svcs.Warnings[0], "cluster summaries disabled")
	})

	t.Run("both configured", func(t *testing.T) {
		svcs, err := Build(
			&domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "all-minilm"},
			&domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2"},
		)
		require.NoError(t, err)
		defer svcs.Close()

		assert.NotNil(t, svcs.LLM)
		assert.Empty(t, svcs.Warnings)
	})
}

func TestServices_Close_Nil(t *testing.T) {
	(&Services{}).Close()
}

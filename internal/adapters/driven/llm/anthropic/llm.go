// Package anthropic writes chat completions with the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/httpjson"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 2048

	anthropicVersion = "2023-06-01"
)

// Config configures the adapter. APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// LLMService calls POST /v1/messages.
type LLMService struct {
	api   *httpjson.Client
	model string
}

type messagesRequest struct {
	Model       string               `json:"model"`
	System      string               `json:"system,omitempty"`
	Messages    []driven.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens"`
	Temperature float64              `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewLLMService creates the adapter.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: an API key is required")
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
	return &LLMService{
		api: httpjson.New("anthropic", cfg.BaseURL, cfg.Timeout,
			httpjson.WithHeader("x-api-key", cfg.APIKey),
			httpjson.WithHeader("anthropic-version", anthropicVersion),
		),
		model: cfg.Model,
	}, nil
}

// Chat returns the concatenated text blocks of the reply. System turns
// move to the request's system field. The API has no JSON mode, so for
// opts.JSON the assistant turn is prefilled with "{" and the brace is
// put back on the reply.
func (s *LLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	req := buildRequest(s.model, messages, opts)

	var resp messagesResponse
	if err := s.api.Post(ctx, "/v1/messages", req, &resp); err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", errors.New("chat: anthropic: response has no content")
	}

	var b strings.Builder
	if opts.JSON {
		b.WriteByte('{')
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func buildRequest(model string, messages []driven.ChatMessage, opts driven.ChatOptions) messagesRequest {
	req := messagesRequest{
		Model:       model,
		Messages:    make([]driven.ChatMessage, 0, len(messages)+1),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	var system []string
	for _, m := range messages {
		if m.Role == driven.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, m)
	}
	req.System = strings.Join(system, "\n\n")
	if opts.JSON {
		req.Messages = append(req.Messages, driven.ChatMessage{Role: driven.RoleAssistant, Content: "{"})
	}
	return req
}

func (s *LLMService) ModelName() string { return s.model }

// Ping lists models, which checks the key without spending tokens.
func (s *LLMService) Ping(ctx context.Context) error {
	return s.api.Get(ctx, "/v1/models")
}

func (s *LLMService) Close() error {
	s.api.Close()
	return nil
}

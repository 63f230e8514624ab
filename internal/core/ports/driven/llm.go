package driven

import "context"

// LLMService writes the cluster summaries. It is optional: with no LLM
// configured the insight service reports domain.ErrLLMUnavailable.
type LLMService interface {
	// Chat sends the conversation and returns the assistant's reply.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	ModelName() string

	// Ping checks the provider answers without running a completion.
	Ping(ctx context.Context) error

	Close() error
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation. The JSON form matches the
// chat APIs that take role/content pairs.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tunes a single Chat call. Zero values leave the
// provider's defaults in place.
type ChatOptions struct {
	MaxTokens   int
	Temperature float64

	// JSON asks for a single JSON object as the reply.
	JSON bool
}

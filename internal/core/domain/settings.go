package domain

// AIProvider names a hosted or local model provider.
type AIProvider string

const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai" // or any server speaking its API
	AIProviderAnthropic AIProvider = "anthropic"
)

// providerTraits is what the rest of the code needs to know about a
// provider. Anything not listed is not a provider.
type providerTraits struct {
	label      string
	embedModel string // empty when the provider cannot embed
	llmModel   string

	// keyed says when an API key is needed: always, or only against the
	// provider's own hosted endpoint (no base URL override).
	keyAlways, keyHosted bool
}

var providers = map[AIProvider]providerTraits{
	AIProviderOllama: {
		label:      "Ollama (local)",
		embedModel: "nomic-embed-text",
		llmModel:   "llama3.2",
	},
	AIProviderOpenAI: {
		label:      "OpenAI-compatible",
		embedModel: "text-embedding-3-small",
		llmModel:   "gpt-4o-mini",
		keyHosted:  true,
	},
	AIProviderAnthropic: {
		label:     "Anthropic (cloud)",
		llmModel:  "claude-3-5-haiku-latest",
		keyAlways: true,
	},
}

// providerOrder fixes the listing order.
var providerOrder = []AIProvider{AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic}

func (p AIProvider) IsValid() bool {
	_, ok := providers[p]
	return ok
}

// RequiresAPIKey reports whether calls need a key. An OpenAI-compatible
// server on a custom base URL may run without one.
func (p AIProvider) RequiresAPIKey(baseURL string) bool {
	t := providers[p]
	return t.keyAlways || (t.keyHosted && baseURL == "")
}

func (p AIProvider) SupportsEmbeddings() bool {
	return providers[p].embedModel != ""
}

func (p AIProvider) String() string { return string(p) }

// Description is the label shown in listings.
func (p AIProvider) Description() string {
	if t, ok := providers[p]; ok {
		return t.label
	}
	return "Unknown"
}

// EmbeddingSettings selects and authenticates the embedding provider.
// An empty BaseURL means the provider's default endpoint.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured reports whether the settings are complete enough to use.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider.SupportsEmbeddings() && usable(e.Provider, e.Model, e.BaseURL, e.APIKey)
}

// LLMSettings selects and authenticates the summary LLM.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

// IsConfigured reports whether the settings are complete enough to use.
func (l LLMSettings) IsConfigured() bool {
	return l.Provider.IsValid() && usable(l.Provider, l.Model, l.BaseURL, l.APIKey)
}

func usable(p AIProvider, model, baseURL, key string) bool {
	return model != "" && (key != "" || !p.RequiresAPIKey(baseURL))
}

// AllEmbeddingProviders lists the providers that can embed.
func AllEmbeddingProviders() []AIProvider {
	var out []AIProvider
	for _, p := range providerOrder {
		if p.SupportsEmbeddings() {
			out = append(out, p)
		}
	}
	return out
}

// AllLLMProviders lists every provider; all of them can chat.
func AllLLMProviders() []AIProvider {
	return append([]AIProvider(nil), providerOrder...)
}

// DefaultEmbeddingModels maps each embedding provider to its default model.
func DefaultEmbeddingModels() map[AIProvider]string {
	out := make(map[AIProvider]string)
	for p, t := range providers {
		if t.embedModel != "" {
			out[p] = t.embedModel
		}
	}
	return out
}

// DefaultLLMModels maps each provider to its default chat model.
func DefaultLLMModels() map[AIProvider]string {
	out := make(map[AIProvider]string, len(providers))
	for p, t := range providers {
		out[p] = t.llmModel
	}
	return out
}

// EmbeddingDimensions gives the vector size of well-known models. Other
// models are sized by their first response.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

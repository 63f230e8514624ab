package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// ProviderProbe contacts the configured AI providers so a bad key or an
// unreachable endpoint shows up before documents are ingested.
type ProviderProbe interface {
	ProbeEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) ProbeResult
	ProbeLLM(ctx context.Context, settings *domain.LLMSettings) ProbeResult
}

// ProbeResult is the outcome of contacting one provider. Err is nil when
// the provider answered or nothing is configured.
type ProbeResult struct {
	Provider   domain.AIProvider
	Model      string
	Configured bool
	Latency    time.Duration
	Err        error
}

// Status is "ok", "not configured" or the error text.
func (r ProbeResult) Status() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case !r.Configured:
		return "not configured"
	default:
		return "ok"
	}
}

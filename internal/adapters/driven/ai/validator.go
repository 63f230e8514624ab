package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

var _ driven.ProviderProbe = (*Prober)(nil)

// Prober builds a throwaway adapter from settings and pings it.
type Prober struct {
	timeout time.Duration
}

// NewProber creates a Prober that gives each provider timeout to answer.
// A non-positive timeout uses pingTimeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = pingTimeout
	}
	return &Prober{timeout: timeout}
}

// ProbeEmbedding pings the embedding provider.
func (p *Prober) ProbeEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) driven.ProbeResult {
	if settings == nil || settings.Provider == "" {
		return driven.ProbeResult{}
	}
	res := driven.ProbeResult{Provider: settings.Provider, Model: settings.Model, Configured: true}
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		res.Err = err
		return res
	}
	defer svc.Close()
	return p.ping(ctx, res, svc.Ping, domain.ErrEmbeddingUnavailable)
}

// ProbeLLM pings the LLM provider.
func (p *Prober) ProbeLLM(ctx context.Context, settings *domain.LLMSettings) driven.ProbeResult {
	if settings == nil || settings.Provider == "" {
		return driven.ProbeResult{}
	}
	res := driven.ProbeResult{Provider: settings.Provider, Model: settings.Model, Configured: true}
	svc, err := CreateLLMService(settings)
	if err != nil {
		res.Err = err
		return res
	}
	defer svc.Close()
	return p.ping(ctx, res, svc.Ping, domain.ErrLLMUnavailable)
}

func (p *Prober) ping(ctx context.Context, res driven.ProbeResult, ping func(context.Context) error, kind error) driven.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	res.Latency = time.Since(start)
	if err != nil {
		res.Err = fmt.Errorf("%w: %s unreachable: %w", kind, res.Provider, err)
	}
	return res
}

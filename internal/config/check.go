package config

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

var userinfoPassword = regexp.MustCompile(`:[^:@]+@`)

// Mask hides the password segment of a URL and most of what remains.
// Lengths count characters; results of twelve or fewer are fully hidden.
func Mask(text string) string {
	masked := []rune(userinfoPassword.ReplaceAllString(text, ":****@"))
	if len(masked) > 12 {
		return string(masked[:6]) + "****" + string(masked[len(masked)-4:])
	}
	return "****"
}

// Check is the presence report served by /config/check. It never
// contains a secret in clear.
type Check struct {
	Backend   string            `json:"storage_backend"`
	LLM       ProviderCheck     `json:"llm"`
	Embedding ProviderCheck     `json:"embedding"`
	Postgres  PostgresCheck     `json:"postgres"`
	URLs      map[string]string `json:"urls"`
	LogLevel  string            `json:"log_level"`
}

// ProviderCheck reports which provider settings are present.
type ProviderCheck struct {
	Provider   string `json:"provider"`
	APIBaseURL bool   `json:"api_base_url"`
	ModelName  bool   `json:"model_name"`
	APIKey     bool   `json:"api_key"`
	Configured bool   `json:"configured"`
}

// PostgresCheck reports which Postgres settings are present.
type PostgresCheck struct {
	DBName   bool `json:"db_name"`
	User     bool `json:"user"`
	Password bool `json:"password"`
	Host     bool `json:"host"`
	Port     bool `json:"port"`
}

// Masked returns the configuration check view.
func (c *Config) Masked() Check {
	embed := c.EmbeddingSettings()
	llm := c.LLMSettings()
	pg := c.Storage.Postgres

	check := Check{
		Backend: c.Storage.Backend,
		LLM: ProviderCheck{
			Provider:   string(c.LLM.Provider),
			APIBaseURL: c.LLM.BaseURL != "",
			ModelName:  c.LLM.Model != "",
			APIKey:     c.LLM.APIKey != "",
			Configured: llm.IsConfigured(),
		},
		Embedding: ProviderCheck{
			Provider:   string(c.Embedding.Provider),
			APIBaseURL: c.Embedding.BaseURL != "",
			ModelName:  c.Embedding.Model != "",
			APIKey:     c.Embedding.APIKey != "",
			Configured: embed.IsConfigured(),
		},
		Postgres: PostgresCheck{
			DBName:   pg.Name != "",
			User:     pg.User != "",
			Password: pg.Password != "",
			Host:     pg.Host != "",
			Port:     pg.Port != 0,
		},
		URLs:     map[string]string{},
		LogLevel: c.Log.Level,
	}

	if pg.URL != "" || pg.Host != "" {
		check.URLs["postgres"] = Mask(c.PostgresDSN())
	}
	if c.Embedding.BaseURL != "" {
		check.URLs["embedding"] = Mask(c.Embedding.BaseURL)
	}
	if c.LLM.BaseURL != "" {
		check.URLs["llm"] = Mask(c.LLM.BaseURL)
	}
	return check
}

// ProbeEntry is one provider's line in a probed check.
type ProbeEntry struct {
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

// ProbedCheck is Check plus the result of contacting each provider.
type ProbedCheck struct {
	Check
	Probe map[string]ProbeEntry `json:"probe"`
}

// Probe contacts the embedding provider and, when one is set, the LLM
// provider. The returned error joins every failure.
func (c *Config) Probe(ctx context.Context, probe driven.ProviderProbe) (ProbedCheck, error) {
	out := ProbedCheck{Check: c.Masked(), Probe: map[string]ProbeEntry{}}

	results := map[string]driven.ProbeResult{
		"embedding": probe.ProbeEmbedding(ctx, c.EmbeddingSettings()),
	}
	if c.LLM.Provider != "" {
		results["llm"] = probe.ProbeLLM(ctx, c.LLMSettings())
	}

	var errs []error
	for _, name := range []string{"embedding", "llm"} {
		res, ok := results[name]
		if !ok {
			continue
		}
		out.Probe[name] = ProbeEntry{
			Provider:  string(res.Provider),
			Model:     res.Model,
			Status:    res.Status(),
			LatencyMS: res.Latency.Milliseconds(),
		}
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
		}
	}
	return out, errors.Join(errs...)
}

// Package embedding turns chunk texts into vectors through an
// EmbeddingService, adding batching, bounded concurrency, retries with
// exponential backoff and strict order preservation.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.Embedder = (*Client)(nil)

// Default configuration values.
const (
	DefaultBatchSize   = 32
	DefaultConcurrency = 4
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 30 * time.Second
	DefaultCallTimeout = 30 * time.Second
)

// Client implements driven.Embedder over a single EmbeddingService.
type Client struct {
	svc         driven.EmbeddingService
	batchSize   int
	concurrency int
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	callTimeout time.Duration
	limiter     *RateLimiter
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithBatchSize sets the maximum number of texts per provider call.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithConcurrency sets how many batches may be in flight at once.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
// Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the first retry delay and the cap on later ones.
func WithBackoff(base, limit time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseBackoff = base
		}
		if limit > 0 {
			c.maxBackoff = limit
		}
	}
}

// WithCallTimeout bounds each provider call.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithRateLimit replaces the default client-side rate limit.
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(c *Client) {
		c.limiter = NewRateLimiter(cfg)
	}
}

// NewClient creates a Client for svc.
func NewClient(svc driven.EmbeddingService, opts ...Option) *Client {
	c := &Client{
		svc:         svc,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: DefaultBaseBackoff,
		maxBackoff:  DefaultMaxBackoff,
		callTimeout: DefaultCallTimeout,
		limiter:     NewRateLimiter(DefaultRateLimit),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.limiter.sleep = c.sleep
	return c
}

// ModelName returns the provider's model name.
func (c *Client) ModelName() string {
	return c.svc.ModelName()
}

// EmbedAll returns one vector per text, in input order. Failures are
// returned as *domain.EmbeddingError unless the caller's context ended.
func (c *Client) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vectors, err := c.embedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	dim := len(out[0])
	for i, v := range out {
		if len(v) != dim {
			return nil, domain.NewPermanentEmbeddingError(domain.ReasonMalformedResponse, 0,
				fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), dim))
		}
	}
	return out, nil
}

// embedBatch calls the provider for one batch, retrying transient failures.
func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := c.call(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var embErr *domain.EmbeddingError
		if !errors.As(err, &embErr) {
			embErr = domain.NewTransientEmbeddingError(domain.ReasonNetwork, 0, err)
		}

		if !embErr.Transient() || attempt > c.maxRetries {
			final := *embErr
			final.Attempts = attempt
			return nil, &final
		}

		if embErr.Reason == domain.ReasonRateLimit {
			c.limiter.RecordRateLimitError(embErr.RetryAfter)
		}
		delay := c.backoff(attempt)
		logger.Debug("embedding batch of %d failed (%s), retry %d/%d in %s",
			len(texts), embErr.Reason, attempt, c.maxRetries, delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// call makes a single provider request under the per-call timeout and
// checks the shape of the response.
func (c *Client) call(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	vectors, err := c.svc.EmbedBatch(callCtx, texts)
	if err != nil {
		var embErr *domain.EmbeddingError
		if !errors.As(err, &embErr) && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewTransientEmbeddingError(domain.ReasonTimeout, 0, err)
		}
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, domain.NewPermanentEmbeddingError(domain.ReasonMalformedResponse, 0,
			fmt.Errorf("got %d vectors for %d inputs", len(vectors), len(texts)))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, domain.NewPermanentEmbeddingError(domain.ReasonMalformedResponse, 0,
				fmt.Errorf("empty vector at %d", i))
		}
		if len(v) != len(vectors[0]) {
			return nil, domain.NewPermanentEmbeddingError(domain.ReasonMalformedResponse, 0,
				fmt.Errorf("vector %d has %d dimensions, expected %d", i, len(v), len(vectors[0])))
		}
	}
	return vectors, nil
}

// backoff returns base×2^(attempt-1), capped at maxBackoff.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	return min(d, c.maxBackoff)
}

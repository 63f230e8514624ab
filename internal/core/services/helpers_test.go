package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/embedding"
	"github.com/custodia-labs/opptrack/internal/ocr"
	"github.com/custodia-labs/opptrack/internal/postprocessors"
	"github.com/custodia-labs/opptrack/internal/postprocessors/analysis"
	"github.com/custodia-labs/opptrack/internal/postprocessors/chunker"
	"github.com/custodia-labs/opptrack/internal/postprocessors/normaliser"
)

// letterArea is a US Letter page in square points.
const letterArea = 612 * 792

// --- Text fixtures ---

// words returns n glyphs of prose-like text separated by spaces.
func words(n int, seed string) string {
	var b strings.Builder
	vocab := []string{"revenue", "pipeline", "renewal", "pricing", "contract", "budget", "security", "rollout"}
	glyphs := 0
	for i := 0; glyphs < n; i++ {
		w := vocab[(i+len(seed))%len(vocab)]
		if rest := n - glyphs; len(w) > rest {
			w = w[:rest]
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		glyphs += len(w)
	}
	return seed + " " + b.String()
}

func directPage(index int, text string) domain.Page {
	glyphs, ratio := domain.CountGlyphs(text)
	return domain.Page{
		Index:      index,
		Text:       text,
		Method:     domain.MethodDirect,
		CharCount:  glyphs,
		GlyphRatio: ratio,
		Area:       letterArea,
		LowYield:   domain.DefaultYieldPolicy().IsLowYield(glyphs, letterArea),
	}
}

// --- Fakes ---

// fakeExtractor returns canned pages keyed by the uploaded bytes.
// Unknown bytes are unreadable.
type fakeExtractor struct {
	mu    sync.Mutex
	pages map[string][]domain.Page
	calls int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{pages: make(map[string][]domain.Page)}
}

func (f *fakeExtractor) add(data string, pages ...domain.Page) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[data] = pages
	return []byte(data)
}

func (f *fakeExtractor) Extract(_ context.Context, data []byte) (*driven.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	pages, ok := f.pages[string(data)]
	if !ok {
		return nil, domain.ErrUnreadableDocument
	}
	return &driven.Extraction{Pages: append([]domain.Page(nil), pages...)}, nil
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRasterizer struct{}

func (fakeRasterizer) Rasterize(_ context.Context, _ []byte, pageIndex, _ int) ([]byte, error) {
	return []byte{byte(pageIndex)}, nil
}

// fakeEngine recognises the same text on every page.
type fakeEngine struct {
	text       string
	confidence float64
	err        error
	calls      atomic.Int32
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Recognize(_ context.Context, _ []byte) (driven.OCRResult, error) {
	e.calls.Add(1)
	if e.err != nil {
		return driven.OCRResult{}, e.err
	}
	return driven.OCRResult{Text: e.text, Confidence: e.confidence}, nil
}

// fakeEmbedding returns deterministic 4-dimensional vectors. It fails
// the first `failures` calls with a rate-limit error and runs hook
// before every call.
type fakeEmbedding struct {
	failures atomic.Int32
	calls    atomic.Int32
	hook     func()
	err      error
}

func (f *fakeEmbedding) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return nil, &domain.EmbeddingError{
			Kind:       domain.EmbeddingTransient,
			Reason:     domain.ReasonRateLimit,
			StatusCode: 429,
		}
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = vectorFor(text)
	}
	return out, nil
}

func (f *fakeEmbedding) Dimensions() int              { return 4 }
func (f *fakeEmbedding) ModelName() string            { return "fake-embed" }
func (f *fakeEmbedding) Ping(_ context.Context) error { return nil }
func (f *fakeEmbedding) Close() error                 { return nil }

func vectorFor(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum64()
	v := make([]float32, 4)
	for i := range v {
		v[i] = float32((sum>>(16*i))&0xffff) / 65535
	}
	return v
}

// --- Harness ---

type harness struct {
	store     *memory.Store
	blobs     *memory.BlobStore
	extractor *fakeExtractor
	engine    *fakeEngine
	embed     *fakeEmbedding
	agg       *Aggregator
	ingestor  *Ingestor
}

type harnessConfig struct {
	noOCR      bool
	noEmbedder bool
	maxRetries int
}

type harnessOption func(*harnessConfig)

func withoutOCR() harnessOption {
	return func(c *harnessConfig) { c.noOCR = true }
}

func withoutEmbedder() harnessOption {
	return func(c *harnessConfig) { c.noEmbedder = true }
}

func withMaxRetries(n int) harnessOption {
	return func(c *harnessConfig) { c.maxRetries = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{maxRetries: 3}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &harness{
		store:     memory.NewStore(),
		blobs:     memory.NewBlobStore(),
		extractor: newFakeExtractor(),
		engine:    &fakeEngine{text: words(300, "scanned"), confidence: 0.92},
		embed:     &fakeEmbedding{},
	}
	h.agg = NewAggregator(h.store, analysis.New(), NewKeyedMutex())

	pipeline := postprocessors.NewPipeline(
		normaliser.New(),
		chunker.New(chunker.WithChunkSize(120), chunker.WithOverlap(20)),
	)
	client := embedding.NewClient(h.embed,
		embedding.WithBatchSize(3),
		embedding.WithConcurrency(1),
		embedding.WithMaxRetries(cfg.maxRetries),
		embedding.WithBackoff(time.Millisecond, time.Millisecond),
		embedding.WithRateLimit(embedding.RateLimitConfig{}),
	)

	var ingestOpts []IngestorOption
	if !cfg.noOCR {
		fallback, err := ocr.NewFallback(fakeRasterizer{}, h.engine)
		require.NoError(t, err)
		ingestOpts = append(ingestOpts, WithOCR(fallback))
	}
	var embedder driven.Embedder = client
	if cfg.noEmbedder {
		embedder = nil
	}
	h.ingestor = NewIngestor(h.store, h.blobs, h.extractor, pipeline, embedder, h.agg, ingestOpts...)
	return h
}

// submit uploads a document whose bytes extract to pages.
func (h *harness) submit(t *testing.T, industry, data string, pages ...domain.Page) *domain.Document {
	t.Helper()
	doc, err := h.ingestor.Submit(context.Background(), driving.SubmitRequest{
		Name:     data + ".pdf",
		Industry: industry,
		Data:     h.extractor.add(data, pages...),
	})
	require.NoError(t, err)
	return doc
}

func (h *harness) insight(t *testing.T, industry string) *domain.Insight {
	t.Helper()
	ins, err := h.store.GetInsight(context.Background(), industry)
	require.NoError(t, err)
	return ins
}

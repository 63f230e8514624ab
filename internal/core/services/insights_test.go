package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/postprocessors/analysis"
)

// mockLLM returns a canned reply and records the last request.
type mockLLM struct {
	reply    string
	err      error
	messages []driven.ChatMessage
	opts     driven.ChatOptions
}

func (m *mockLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.messages = messages
	m.opts = opts
	return m.reply, m.err
}

func (m *mockLLM) ModelName() string            { return "mock-llm" }
func (m *mockLLM) Ping(_ context.Context) error { return nil }
func (m *mockLLM) Close() error                 { return nil }

type mockPrompts map[string]string

func (p mockPrompts) Load(name string) (string, error) {
	if s, ok := p[name]; ok {
		return s, nil
	}
	return "", domain.ErrNotFound
}

func (p mockPrompts) Reload() {}

type insightFixture struct {
	store *memory.Store
	agg   *Aggregator
	query *InsightQuery
	llm   *mockLLM
}

func newInsightFixture(t *testing.T) *insightFixture {
	t.Helper()
	store := memory.NewStore()
	agg := NewAggregator(store, analysis.New(), nil)
	llm := &mockLLM{}
	return &insightFixture{
		store: store,
		agg:   agg,
		query: NewInsightQuery(store, agg, llm, nil),
		llm:   llm,
	}
}

// apply commits a document whose centroid is given directly.
func (f *insightFixture) apply(t *testing.T, id, industry string, outcome domain.Outcome, centroid []float32, excerpt string) {
	t.Helper()
	ctx := context.Background()
	doc := &domain.Document{
		ID:         id,
		Industry:   industry,
		Outcome:    outcome,
		Status:     domain.StatusEmbedded,
		Checkpoint: domain.StatusEmbedded,
		Version:    1,
	}
	require.NoError(t, f.store.CreateDocument(ctx, doc))

	var embeddings []domain.Embedding
	if centroid != nil {
		embeddings = []domain.Embedding{{Vector: centroid}}
	}
	var chunks []domain.Chunk
	if excerpt != "" {
		chunks = []domain.Chunk{{Content: excerpt}}
	}
	c := f.agg.Contribution(doc, nil, chunks, embeddings)
	require.NoError(t, f.agg.Apply(ctx, doc, c))
}

// twoGroups applies three won documents near the origin and three lost
// documents far from it.
func (f *insightFixture) twoGroups(t *testing.T, industry string) {
	t.Helper()
	for i := range 3 {
		d := float32(i) * 0.01
		f.apply(t, fmt.Sprintf("near-%d", i), industry, domain.OutcomeWon,
			[]float32{d, d}, "pricing renewal discount")
		f.apply(t, fmt.Sprintf("far-%d", i), industry, domain.OutcomeLost,
			[]float32{10 + d, 10 - d}, "security review stalled")
	}
}

func TestInsightQuery_ListIndustries(t *testing.T) {
	f := newInsightFixture(t)
	ctx := context.Background()

	f.apply(t, "a1", "retail", domain.OutcomeWon, []float32{1, 0}, "pricing")
	f.apply(t, "a2", "retail", domain.OutcomeLost, []float32{0, 1}, "pricing")
	f.apply(t, "b1", "energy", domain.OutcomeWon, []float32{1, 1}, "grid")

	list, err := f.query.ListIndustries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "retail", list[0].Industry)
	assert.Equal(t, int64(2), list[0].Documents)
	assert.InDelta(t, 0.5, list[0].WinRate, 1e-9)
	assert.Equal(t, "energy", list[1].Industry)
	assert.InDelta(t, 1.0, list[1].WinRate, 1e-9)

	list, err = f.query.ListIndustries(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	for _, limit := range []int{-1, driving.MaxIndustryLimit + 1} {
		_, err = f.query.ListIndustries(ctx, limit)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "limit %d", limit)
	}
	_, err = f.query.ListIndustries(ctx, driving.MaxIndustryLimit)
	assert.NoError(t, err)
}

func TestInsightQuery_GetInsight(t *testing.T) {
	f := newInsightFixture(t)
	ctx := context.Background()
	f.apply(t, "a1", "retail", domain.OutcomeWon, []float32{1, 0, 0}, "renewal renewal pricing Acme Corp")

	got, err := f.query.GetInsight(ctx, "  RETAIL ")
	require.NoError(t, err)
	assert.Equal(t, "retail", got.Industry)
	assert.Equal(t, int64(1), got.Documents)
	assert.Equal(t, 3, got.Dimensions)
	require.NotEmpty(t, got.TopTerms)
	assert.Equal(t, domain.Count{Key: "renewal", Count: 2}, got.TopTerms[0])
	assert.NotEmpty(t, got.TopEntities)

	_, err = f.query.GetInsight(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.query.GetInsight(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInsightQuery_Clusters(t *testing.T) {
	f := newInsightFixture(t)
	f.twoGroups(t, "retail")
	f.apply(t, "textless", "retail", domain.OutcomeWon, nil, "")

	report, err := f.query.Clusters(context.Background(), "Retail")
	require.NoError(t, err)
	assert.Equal(t, "retail", report.Industry)
	assert.Equal(t, 2, report.K)
	require.Len(t, report.Clusters, 2)

	var groups []string
	for _, c := range report.Clusters {
		assert.Equal(t, 3, c.Size)
		sort.Strings(c.DocumentIDs)
		groups = append(groups, strings.Join(c.DocumentIDs, ","))
		if strings.HasPrefix(c.DocumentIDs[0], "near") {
			assert.Equal(t, 3, c.Won)
			assert.Contains(t, c.Summary, "pricing")
		} else {
			assert.Equal(t, 3, c.Lost)
			assert.Contains(t, c.Summary, "security")
		}
	}
	sort.Strings(groups)
	assert.Equal(t, []string{"far-0,far-1,far-2", "near-0,near-1,near-2"}, groups)

	again, err := f.query.Clusters(context.Background(), "retail")
	require.NoError(t, err)
	assert.Equal(t, report, again)
}

func TestInsightQuery_ClustersEdgeCases(t *testing.T) {
	f := newInsightFixture(t)
	ctx := context.Background()

	_, err := f.query.Clusters(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	f.apply(t, "blank", "retail", domain.OutcomeUnknown, nil, "")
	report, err := f.query.Clusters(ctx, "retail")
	require.NoError(t, err)
	assert.Zero(t, report.K)
	assert.Empty(t, report.Clusters)

	f.apply(t, "only", "energy", domain.OutcomeWon, []float32{1, 2}, "grid upgrade")
	report, err = f.query.Clusters(ctx, "energy")
	require.NoError(t, err)
	assert.Equal(t, 1, report.K)
	require.Len(t, report.Clusters, 1)
	assert.Equal(t, []string{"only"}, report.Clusters[0].DocumentIDs)
}

const validInsights = `{
  "clusters": [
    {"id": 0, "size": 3, "won": 3, "lost": 0, "themes": ["pricing"], "action_items": ["lead with discounts"]},
    {"id": 1, "size": 3, "won": 0, "lost": 3, "themes": ["security"], "action_items": ["prepare SOC2 pack"],
     "competitors": ["Acme"], "loss_reasons": ["review stalled"]}
  ],
  "overall": {"summary": "Price wins, security loses.", "recommendations": ["invest in compliance"]}
}`

func TestInsightQuery_Summarise(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"plain", validInsights},
		{"fenced", "```json\n" + validInsights + "\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInsightFixture(t)
			f.twoGroups(t, "retail")
			f.llm.reply = tt.reply

			got, err := f.query.Summarise(context.Background(), "retail")
			require.NoError(t, err)
			assert.Equal(t, "retail", got.Industry)
			require.Len(t, got.Clusters, 2)
			assert.Equal(t, []string{"prepare SOC2 pack"}, got.Clusters[1].ActionItems)
			assert.Equal(t, []string{"Acme"}, got.Clusters[1].Competitors)
			assert.Equal(t, "Price wins, security loses.", got.Overall.Summary)

			require.Len(t, f.llm.messages, 2)
			assert.Equal(t, "system", f.llm.messages[0].Role)
			assert.Contains(t, f.llm.messages[1].Content, "Industry: retail")
			assert.Contains(t, f.llm.messages[1].Content, "size=3 won=3 lost=0")
			assert.True(t, f.llm.opts.JSON)
		})
	}
}

func TestInsightQuery_SummariseRejectsMalformed(t *testing.T) {
	replies := map[string]string{
		"not json":        "the clusters are about pricing",
		"missing overall": `{"clusters": []}`,
		"wrong type":      `{"clusters": [{"id": 0, "themes": "pricing", "action_items": []}], "overall": {"summary": "x"}}`,
		"missing actions": `{"clusters": [{"id": 0, "themes": []}], "overall": {"summary": "x"}}`,
	}

	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			f := newInsightFixture(t)
			f.twoGroups(t, "retail")
			f.llm.reply = reply

			_, err := f.query.Summarise(context.Background(), "retail")
			assert.ErrorIs(t, err, domain.ErrMalformedLLMResponse)
		})
	}
}

func TestInsightQuery_SummariseWithoutLLM(t *testing.T) {
	store := memory.NewStore()
	query := NewInsightQuery(store, NewAggregator(store, nil, nil), nil, nil)

	_, err := query.Summarise(context.Background(), "retail")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestInsightQuery_SummariseLLMError(t *testing.T) {
	f := newInsightFixture(t)
	f.twoGroups(t, "retail")
	f.llm.err = errors.New("connection refused")

	_, err := f.query.Summarise(context.Background(), "retail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestInsightQuery_SummariseUsesPromptStore(t *testing.T) {
	f := newInsightFixture(t)
	f.twoGroups(t, "retail")
	f.llm.reply = validInsights
	f.query = NewInsightQuery(f.store, f.agg, f.llm, mockPrompts{
		driven.PromptClusterSystem: "custom system",
	})

	_, err := f.query.Summarise(context.Background(), "retail")
	require.NoError(t, err)
	assert.Equal(t, "custom system", f.llm.messages[0].Content)
	assert.Contains(t, f.llm.messages[1].Content, "Industry: retail")
}

func TestInsightQuery_Rebuild(t *testing.T) {
	f := newInsightFixture(t)
	f.twoGroups(t, "retail")

	got, err := f.query.Rebuild(context.Background(), "RETAIL")
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.Documents)
	assert.Equal(t, int64(3), got.Won)
	assert.Equal(t, int64(3), got.Lost)

	_, err = f.query.Rebuild(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSummarizeExcerpts(t *testing.T) {
	assert.Equal(t, "alpha beta", summarizeExcerpts([]string{" alpha ", "", "beta"}, 100))
	assert.Equal(t, "alpha", summarizeExcerpts([]string{"alpha", "beta gamma"}, 8))
	assert.Equal(t, "abcdefg...", summarizeExcerpts([]string{strings.Repeat("abcdefghij", 3)}, 10))
	assert.Empty(t, summarizeExcerpts(nil, 10))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`  {"a":1}  `))
}

package services

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/custodia-labs/opptrack/internal/cluster"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// Ensure InsightQuery implements the interface.
var _ driving.InsightService = (*InsightQuery)(nil)

// Insight reporting limits.
const (
	// TopN is the number of terms and entities in an insight summary.
	TopN = 20

	// SummaryLength caps the excerpt text sent to the LLM per cluster.
	SummaryLength = 1200

	summaryMaxTokens = 2048
)

//go:embed schema/cluster_insights.json
var clusterInsightsSchema []byte

// fallbackPrompts are used when no prompt store is configured.
var fallbackPrompts = map[string]string{
	driven.PromptClusterSystem: "You analyse clusters of sales opportunity documents. " +
		"Return STRICT JSON with keys clusters (list of {id, size, won, lost, themes, action_items, " +
		"competitors, win_reasons, loss_reasons}) and overall ({summary, recommendations}).",
	driven.PromptClusterUser: "Industry: %s\n\nEach block below describes one cluster. Provide structured insights:\n\n%s",
}

// InsightQuery answers read-only questions about industry insights.
type InsightQuery struct {
	store      driven.InsightStore
	aggregator *Aggregator
	llm        driven.LLMService
	prompts    driven.PromptStore

	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
}

// NewInsightQuery creates an InsightQuery. llm and prompts are optional;
// without an LLM, Summarise returns ErrLLMUnavailable.
func NewInsightQuery(
	store driven.InsightStore,
	aggregator *Aggregator,
	llm driven.LLMService,
	prompts driven.PromptStore,
) *InsightQuery {
	return &InsightQuery{
		store:      store,
		aggregator: aggregator,
		llm:        llm,
		prompts:    prompts,
	}
}

// ListIndustries returns industries ordered by document count.
func (q *InsightQuery) ListIndustries(ctx context.Context, limit int) ([]driving.IndustrySummary, error) {
	if limit == 0 {
		limit = driving.DefaultIndustryLimit
	}
	if limit < 1 || limit > driving.MaxIndustryLimit {
		return nil, fmt.Errorf("limit %d outside [1, %d]: %w", limit, driving.MaxIndustryLimit, domain.ErrInvalidInput)
	}

	insights, err := q.store.ListInsights(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}

	out := make([]driving.IndustrySummary, len(insights))
	for i := range insights {
		out[i] = industrySummary(&insights[i])
	}
	return out, nil
}

// GetInsight returns the detailed summary for one industry.
func (q *InsightQuery) GetInsight(ctx context.Context, industry string) (*driving.InsightSummary, error) {
	industry, err := domain.NormalizeIndustry(industry)
	if err != nil {
		return nil, err
	}
	ins, err := q.store.GetInsight(ctx, industry)
	if err != nil {
		return nil, err
	}
	return insightSummary(ins), nil
}

// Clusters groups an industry's documents by their embedding centroids.
func (q *InsightQuery) Clusters(ctx context.Context, industry string) (*driving.ClusterReport, error) {
	industry, err := domain.NormalizeIndustry(industry)
	if err != nil {
		return nil, err
	}

	all, err := q.store.ListContributions(ctx, industry)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	if len(all) == 0 {
		if _, err := q.store.GetInsight(ctx, industry); err != nil {
			return nil, err
		}
	}

	// Documents without text have no centroid and cannot be placed.
	contributions := make([]domain.Contribution, 0, len(all))
	for _, c := range all {
		if len(c.Centroid) > 0 {
			contributions = append(contributions, c)
		}
	}
	sort.Slice(contributions, func(i, j int) bool {
		return contributions[i].DocumentID < contributions[j].DocumentID
	})

	report := &driving.ClusterReport{Industry: industry, Clusters: []driving.Cluster{}}
	if len(contributions) == 0 {
		return report, nil
	}

	vectors := make([][]float32, len(contributions))
	for i, c := range contributions {
		vectors[i] = c.Centroid
	}
	k := cluster.ChooseK(len(vectors))
	res, err := cluster.KMeans(vectors, k, cluster.DefaultMaxIters, cluster.DefaultSeed)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}
	report.K = k

	members := make([][]domain.Contribution, k)
	for i, label := range res.Labels {
		members[label] = append(members[label], contributions[i])
	}

	for id, group := range members {
		if len(group) == 0 {
			continue
		}
		c := driving.Cluster{ID: id, Size: len(group)}
		excerpts := make([]string, 0, len(group))
		for _, m := range group {
			c.DocumentIDs = append(c.DocumentIDs, m.DocumentID)
			switch m.Outcome {
			case domain.OutcomeWon:
				c.Won++
			case domain.OutcomeLost:
				c.Lost++
			}
			excerpts = append(excerpts, m.Excerpt)
		}
		c.Summary = summarizeExcerpts(excerpts, SummaryLength)
		report.Clusters = append(report.Clusters, c)
	}
	return report, nil
}

// Summarise asks the LLM for structured insights over the clusters.
func (q *InsightQuery) Summarise(ctx context.Context, industry string) (*driving.ClusterInsights, error) {
	if q.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	report, err := q.Clusters(ctx, industry)
	if err != nil {
		return nil, err
	}
	if len(report.Clusters) == 0 {
		return &driving.ClusterInsights{Industry: report.Industry, Clusters: []driving.ClusterInsight{}}, nil
	}

	blocks := make([]string, len(report.Clusters))
	for i, c := range report.Clusters {
		blocks[i] = fmt.Sprintf("cluster=%d size=%d won=%d lost=%d\n%s", c.ID, c.Size, c.Won, c.Lost, c.Summary)
	}

	system := q.loadPrompt(driven.PromptClusterSystem)
	user := fmt.Sprintf(q.loadPrompt(driven.PromptClusterUser), report.Industry, strings.Join(blocks, "\n\n"))

	reply, err := q.llm.Chat(ctx, []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: user},
	}, driven.ChatOptions{MaxTokens: summaryMaxTokens, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}

	out, err := q.parseInsights(reply)
	if err != nil {
		logger.Warn("Discarding cluster insights for %q: %v", report.Industry, err)
		return nil, err
	}
	out.Industry = report.Industry
	return out, nil
}

// Rebuild recomputes an industry insight from its contributions.
func (q *InsightQuery) Rebuild(ctx context.Context, industry string) (*driving.InsightSummary, error) {
	industry, err := domain.NormalizeIndustry(industry)
	if err != nil {
		return nil, err
	}
	ins, err := q.aggregator.Rebuild(ctx, industry)
	if err != nil {
		return nil, err
	}
	return insightSummary(ins), nil
}

func (q *InsightQuery) loadPrompt(name string) string {
	if q.prompts != nil {
		if p, err := q.prompts.Load(name); err == nil && p != "" {
			return p
		}
	}
	return fallbackPrompts[name]
}

// parseInsights validates an LLM reply against the cluster insight
// schema and decodes it.
func (q *InsightQuery) parseInsights(reply string) (*driving.ClusterInsights, error) {
	q.schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("cluster_insights.json", bytes.NewReader(clusterInsightsSchema)); err != nil {
			q.schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		q.schema, q.schemaErr = compiler.Compile("cluster_insights.json")
	})
	if q.schemaErr != nil {
		return nil, fmt.Errorf("compile schema: %w", q.schemaErr)
	}

	data := []byte(stripFences(reply))
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedLLMResponse, err)
	}
	if err := q.schema.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedLLMResponse, err)
	}

	var out driving.ClusterInsights
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedLLMResponse, err)
	}
	if out.Clusters == nil {
		out.Clusters = []driving.ClusterInsight{}
	}
	return &out, nil
}

// stripFences removes a surrounding ``` or ```json code fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// summarizeExcerpts joins non-empty excerpts until maxChars would be
// exceeded. The first excerpt is truncated rather than dropped.
func summarizeExcerpts(excerpts []string, maxChars int) string {
	var parts []string
	total := 0
	for _, e := range excerpts {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		n := utf8.RuneCountInString(e)
		if total+n > maxChars {
			if len(parts) == 0 {
				parts = append(parts, string([]rune(e)[:maxChars-3])+"...")
			}
			break
		}
		parts = append(parts, e)
		total += n
	}
	s := strings.Join(parts, " ")
	if utf8.RuneCountInString(s) > maxChars {
		s = string([]rune(s)[:maxChars-3]) + "..."
	}
	return s
}

func industrySummary(ins *domain.Insight) driving.IndustrySummary {
	return driving.IndustrySummary{
		Industry:  ins.Industry,
		Documents: ins.Aggregate.Documents,
		Won:       ins.Aggregate.Won,
		Lost:      ins.Aggregate.Lost,
		WinRate:   ins.Aggregate.WinRate(),
		UpdatedAt: ins.UpdatedAt,
	}
}

func insightSummary(ins *domain.Insight) *driving.InsightSummary {
	agg := ins.Aggregate
	return &driving.InsightSummary{
		IndustrySummary: industrySummary(ins),
		Pages:           agg.Pages,
		OCRPages:        agg.OCRPages,
		EmptyPages:      agg.EmptyPages,
		Chunks:          agg.Chunks,
		Chars:           agg.Chars,
		Dimensions:      len(agg.VectorSum),
		TopTerms:        agg.TopTerms(TopN),
		TopEntities:     agg.TopEntities(TopN),
	}
}

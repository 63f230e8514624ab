package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// Aggregation defaults.
const (
	// DefaultConflictRetries is how often a stale-revision commit is retried.
	DefaultConflictRetries = 5

	// ExcerptLength is the number of normalised characters kept per
	// contribution for cluster summaries.
	ExcerptLength = 1200
)

// Aggregator folds per-document contributions into industry insights.
// Writes to one industry are serialised through a KeyedMutex.
type Aggregator struct {
	store           driven.InsightStore
	analyzer        driven.TextAnalyzer
	locks           *KeyedMutex
	conflictRetries int
	now             func() time.Time
}

// NewAggregator creates an Aggregator. The KeyedMutex is shared with
// anything else that writes insights, such as document deletion.
func NewAggregator(store driven.InsightStore, analyzer driven.TextAnalyzer, locks *KeyedMutex) *Aggregator {
	if locks == nil {
		locks = NewKeyedMutex()
	}
	return &Aggregator{
		store:           store,
		analyzer:        analyzer,
		locks:           locks,
		conflictRetries: DefaultConflictRetries,
		now:             time.Now,
	}
}

// Locks returns the industry lock set.
func (a *Aggregator) Locks() *KeyedMutex {
	return a.locks
}

// Contribution builds the aggregate delta of one document from its
// stored stage outputs. It does not touch the store.
func (a *Aggregator) Contribution(
	doc *domain.Document,
	pages []domain.Page,
	chunks []domain.Chunk,
	embeddings []domain.Embedding,
) domain.Contribution {
	agg := domain.Aggregate{
		Documents: 1,
		Pages:     int64(len(pages)),
		Chunks:    int64(len(chunks)),
	}
	switch doc.Outcome {
	case domain.OutcomeWon:
		agg.Won = 1
	case domain.OutcomeLost:
		agg.Lost = 1
	}
	for _, p := range pages {
		if p.Method == domain.MethodOCR {
			agg.OCRPages++
		}
		if p.Empty {
			agg.EmptyPages++
		}
	}

	text := normalisedText(chunks)
	agg.Chars = int64(utf8.RuneCountInString(text))
	if a.analyzer != nil {
		agg.Terms = a.analyzer.Terms(text)
		agg.Entities = a.analyzer.Entities(text)
	}

	centroid := meanVector(embeddings)
	if centroid != nil {
		agg.VectorSum = domain.QuantizeVector(centroid)
		agg.Vectors = 1
	}

	return domain.Contribution{
		DocumentID: doc.ID,
		Version:    doc.Version,
		Industry:   doc.Industry,
		Aggregate:  agg,
		Centroid:   centroid,
		Outcome:    doc.Outcome,
		Excerpt:    truncateRunes(text, ExcerptLength),
	}
}

// Apply replaces the document's prior contribution with c and marks the
// document done, in one commit. Concurrent writers to the same industry
// wait for each other; stale revisions from other processes are retried.
func (a *Aggregator) Apply(ctx context.Context, doc *domain.Document, c domain.Contribution) error {
	prior, err := a.priorContribution(ctx, doc.ID)
	if err != nil {
		return err
	}

	keys := []string{c.Industry}
	if prior != nil && prior.Industry != c.Industry {
		keys = append(keys, prior.Industry)
	}
	unlock := a.locks.Lock(keys...)
	defer unlock()

	for attempt := 0; ; attempt++ {
		err := a.applyOnce(ctx, doc, c)
		if !errors.Is(err, domain.ErrAggregationConflict) || attempt >= a.conflictRetries {
			return err
		}
		logger.Warn("aggregation conflict on %q, retrying (%d/%d)", c.Industry, attempt+1, a.conflictRetries)
	}
}

func (a *Aggregator) applyOnce(ctx context.Context, doc *domain.Document, c domain.Contribution) error {
	now := a.now()

	prior, err := a.priorContribution(ctx, doc.ID)
	if err != nil {
		return err
	}

	target, err := a.loadInsight(ctx, c.Industry)
	if err != nil {
		return err
	}
	expected := target.Revision
	agg := target.Aggregate.Clone()

	commit := domain.AggregationCommit{ExpectedRevision: expected}

	if prior != nil {
		if prior.Industry == c.Industry {
			agg.Sub(prior.Aggregate)
		} else {
			old, err := a.loadInsight(ctx, prior.Industry)
			if err != nil {
				return err
			}
			oldAgg := old.Aggregate.Clone()
			oldAgg.Sub(prior.Aggregate)
			commit.Retracted = &domain.Insight{
				Industry:  prior.Industry,
				Aggregate: oldAgg,
				Revision:  old.Revision + 1,
				UpdatedAt: now,
			}
			commit.RetractedExpectedRevision = old.Revision
		}
	}
	agg.Add(c.Aggregate)

	commit.Insight = &domain.Insight{
		Industry:  c.Industry,
		Aggregate: agg,
		Revision:  expected + 1,
		UpdatedAt: now,
	}

	applied := c
	applied.AppliedAt = now
	commit.Contribution = &applied

	next := *doc
	next.Status = domain.StatusDone
	next.Checkpoint = domain.StatusDone
	next.Failure = nil
	next.UpdatedAt = now
	commit.Document = &next

	if err := a.store.CommitAggregation(ctx, commit); err != nil {
		return fmt.Errorf("commit aggregation: %w", err)
	}
	*doc = next
	return nil
}

// Rebuild recomputes an industry's insight by folding all of its stored
// contributions from the identity.
func (a *Aggregator) Rebuild(ctx context.Context, industry string) (*domain.Insight, error) {
	unlock := a.locks.Lock(industry)
	defer unlock()

	contributions, err := a.store.ListContributions(ctx, industry)
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}

	current, err := a.store.GetInsight(ctx, industry)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get insight: %w", err)
	}
	if current == nil && len(contributions) == 0 {
		return nil, fmt.Errorf("industry %q: %w", industry, domain.ErrNotFound)
	}

	var agg domain.Aggregate
	for _, c := range contributions {
		agg.Add(c.Aggregate)
	}

	rebuilt := &domain.Insight{
		Industry:  industry,
		Aggregate: agg,
		Revision:  1,
		UpdatedAt: a.now(),
	}
	if current != nil {
		rebuilt.Revision = current.Revision + 1
	}
	if err := a.store.ReplaceInsight(ctx, rebuilt); err != nil {
		return nil, fmt.Errorf("replace insight: %w", err)
	}
	logger.Info("Rebuilt %q from %d contributions", industry, len(contributions))
	return rebuilt, nil
}

func (a *Aggregator) priorContribution(ctx context.Context, documentID string) (*domain.Contribution, error) {
	prior, err := a.store.GetContribution(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contribution: %w", err)
	}
	return prior, nil
}

// loadInsight returns the stored insight, or an empty one at revision 0.
func (a *Aggregator) loadInsight(ctx context.Context, industry string) (*domain.Insight, error) {
	ins, err := a.store.GetInsight(ctx, industry)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Insight{Industry: industry}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get insight: %w", err)
	}
	return ins, nil
}

// normalisedText rebuilds the document's normalised text from its
// chunks, dropping overlaps. Pages are separated by a newline.
func normalisedText(chunks []domain.Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 && c.PageIndex != chunks[i-1].PageIndex {
			b.WriteByte('\n')
		}
		content := c.Content
		if c.Overlap > 0 {
			runes := []rune(content)
			if c.Overlap >= len(runes) {
				continue
			}
			content = string(runes[c.Overlap:])
		}
		b.WriteString(content)
	}
	return b.String()
}

// meanVector averages embedding vectors, or returns nil for none.
func meanVector(embeddings []domain.Embedding) []float32 {
	if len(embeddings) == 0 || len(embeddings[0].Vector) == 0 {
		return nil
	}
	sum := make([]float64, len(embeddings[0].Vector))
	for _, e := range embeddings {
		for i, v := range e.Vector {
			if i < len(sum) {
				sum[i] += float64(v)
			}
		}
	}
	out := make([]float32, len(sum))
	for i, v := range sum {
		out[i] = float32(v / float64(len(embeddings)))
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

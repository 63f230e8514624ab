package api

import (
	"context"
	"sync"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	mu        sync.Mutex
	submitted []driving.SubmitRequest
	documents []domain.Document
	status    *driving.IngestStatus
	filter    driving.DocumentFilter
	deleted   []string
	err       error
}

func (m *mockIngestService) Submit(_ context.Context, req driving.SubmitRequest) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.submitted = append(m.submitted, req)
	return &domain.Document{
		ID:       "doc-" + req.Name,
		Name:     req.Name,
		Industry: req.Industry,
		Outcome:  req.Outcome,
		Status:   domain.StatusPending,
	}, nil
}

func (m *mockIngestService) Ingest(_ context.Context, id string, _ driving.IngestOptions) (*domain.Document, error) {
	return &domain.Document{ID: id, Status: domain.StatusDone}, m.err
}

func (m *mockIngestService) Resume(_ context.Context, _ driving.ResumeOptions) (*driving.ResumeReport, error) {
	return &driving.ResumeReport{}, m.err
}

func (m *mockIngestService) Status(_ context.Context, _ string) (*driving.IngestStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.status, nil
}

func (m *mockIngestService) Cancel(_ string) bool {
	return false
}

func (m *mockIngestService) List(_ context.Context, filter driving.DocumentFilter) ([]domain.Document, error) {
	m.filter = filter
	return m.documents, m.err
}

func (m *mockIngestService) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// mockInsightService is a mock implementation of driving.InsightService.
type mockInsightService struct {
	industries []driving.IndustrySummary
	insight    *driving.InsightSummary
	clusters   *driving.ClusterReport
	summary    *driving.ClusterInsights
	limit      int
	industry   string
	err        error
}

func (m *mockInsightService) ListIndustries(_ context.Context, limit int) ([]driving.IndustrySummary, error) {
	m.limit = limit
	return m.industries, m.err
}

func (m *mockInsightService) GetInsight(_ context.Context, industry string) (*driving.InsightSummary, error) {
	m.industry = industry
	return m.insight, m.err
}

func (m *mockInsightService) Clusters(_ context.Context, industry string) (*driving.ClusterReport, error) {
	m.industry = industry
	return m.clusters, m.err
}

func (m *mockInsightService) Summarise(_ context.Context, industry string) (*driving.ClusterInsights, error) {
	m.industry = industry
	return m.summary, m.err
}

func (m *mockInsightService) Rebuild(_ context.Context, industry string) (*driving.InsightSummary, error) {
	m.industry = industry
	return m.insight, m.err
}

// mockQueue records enqueued documents.
type mockQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (m *mockQueue) Enqueue(_ context.Context, id string, _ driving.IngestOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.ids = append(m.ids, id)
	return nil
}

// mockProbe is a mock implementation of driven.ProviderProbe.
type mockProbe struct {
	embeddingErr error
	llmErr       error
}

func (m *mockProbe) ProbeEmbedding(_ context.Context, s *domain.EmbeddingSettings) driven.ProbeResult {
	return driven.ProbeResult{Provider: s.Provider, Model: s.Model, Configured: true, Err: m.embeddingErr}
}

func (m *mockProbe) ProbeLLM(_ context.Context, s *domain.LLMSettings) driven.ProbeResult {
	return driven.ProbeResult{Provider: s.Provider, Model: s.Model, Configured: true, Err: m.llmErr}
}

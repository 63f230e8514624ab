package mcp

import (
	"context"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// mockInsightService is a mock implementation of driving.InsightService.
type mockInsightService struct {
	industries []driving.IndustrySummary
	insight    *driving.InsightSummary
	clusters   *driving.ClusterReport
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

func (m *mockInsightService) Summarise(_ context.Context, _ string) (*driving.ClusterInsights, error) {
	return nil, domain.ErrLLMUnavailable
}

func (m *mockInsightService) Rebuild(_ context.Context, _ string) (*driving.InsightSummary, error) {
	return m.insight, m.err
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	status    *driving.IngestStatus
	documents []domain.Document
	filter    driving.DocumentFilter
	err       error
}

func (m *mockIngestService) Submit(_ context.Context, _ driving.SubmitRequest) (*domain.Document, error) {
	return nil, m.err
}

func (m *mockIngestService) Ingest(_ context.Context, _ string, _ driving.IngestOptions) (*domain.Document, error) {
	return nil, m.err
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

func (m *mockIngestService) Delete(_ context.Context, _ string) error {
	return m.err
}

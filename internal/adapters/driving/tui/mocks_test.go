package tui

import (
	"context"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// MockInsightService implements driving.InsightService for testing.
type MockInsightService struct {
	Industries []driving.IndustrySummary
	Err        error
}

func (m *MockInsightService) ListIndustries(context.Context, int) ([]driving.IndustrySummary, error) {
	return m.Industries, m.Err
}

func (m *MockInsightService) GetInsight(_ context.Context, industry string) (*driving.InsightSummary, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &driving.InsightSummary{IndustrySummary: driving.IndustrySummary{Industry: industry, Documents: 2}}, nil
}

func (m *MockInsightService) Clusters(_ context.Context, industry string) (*driving.ClusterReport, error) {
	return &driving.ClusterReport{Industry: industry}, nil
}

func (m *MockInsightService) Summarise(context.Context, string) (*driving.ClusterInsights, error) {
	return nil, domain.ErrLLMUnavailable
}

func (m *MockInsightService) Rebuild(ctx context.Context, industry string) (*driving.InsightSummary, error) {
	return m.GetInsight(ctx, industry)
}

// MockIngestService implements driving.IngestService for testing.
type MockIngestService struct {
	Documents []domain.Document
	Deleted   []string
}

func (m *MockIngestService) Submit(context.Context, driving.SubmitRequest) (*domain.Document, error) {
	return nil, nil
}

func (m *MockIngestService) Ingest(context.Context, string, driving.IngestOptions) (*domain.Document, error) {
	return nil, nil
}

func (m *MockIngestService) Resume(context.Context, driving.ResumeOptions) (*driving.ResumeReport, error) {
	return &driving.ResumeReport{}, nil
}

func (m *MockIngestService) Status(_ context.Context, id string) (*driving.IngestStatus, error) {
	for _, d := range m.Documents {
		if d.ID == id {
			return &driving.IngestStatus{Document: d}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIngestService) Cancel(string) bool { return false }

func (m *MockIngestService) List(_ context.Context, filter driving.DocumentFilter) ([]domain.Document, error) {
	var out []domain.Document
	for _, d := range m.Documents {
		if filter.Industry == "" || d.Industry == filter.Industry {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MockIngestService) Delete(_ context.Context, id string) error {
	m.Deleted = append(m.Deleted, id)
	return nil
}

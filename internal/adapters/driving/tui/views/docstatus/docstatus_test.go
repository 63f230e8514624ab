package docstatus

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// MockIngestService implements driving.IngestService for testing.
type MockIngestService struct {
	StatusFunc func(ctx context.Context, id string) (*driving.IngestStatus, error)
}

func (m *MockIngestService) Submit(context.Context, driving.SubmitRequest) (*domain.Document, error) {
	return nil, nil
}

func (m *MockIngestService) Ingest(context.Context, string, driving.IngestOptions) (*domain.Document, error) {
	return nil, nil
}

func (m *MockIngestService) Resume(context.Context, driving.ResumeOptions) (*driving.ResumeReport, error) {
	return nil, nil
}

func (m *MockIngestService) Status(ctx context.Context, id string) (*driving.IngestStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, id)
	}
	return doneStatus(id), nil
}

func (m *MockIngestService) Cancel(string) bool { return false }

func (m *MockIngestService) List(context.Context, driving.DocumentFilter) ([]domain.Document, error) {
	return nil, nil
}

func (m *MockIngestService) Delete(context.Context, string) error { return nil }

func doneStatus(id string) *driving.IngestStatus {
	return &driving.IngestStatus{
		Document: domain.Document{
			ID:          id,
			Name:        "deal.pdf",
			Industry:    "fintech",
			Outcome:     domain.OutcomeWon,
			Status:      domain.StatusDone,
			Checkpoint:  domain.StatusDone,
			Version:     1,
			PageCount:   3,
			ContentHash: "abc123",
			CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		Pages:      3,
		OCRPages:   1,
		Chunks:     9,
		Embeddings: 9,
	}
}

func failedStatus(id string) *driving.IngestStatus {
	st := doneStatus(id)
	st.Document.Status = domain.StatusFailed
	st.Document.Checkpoint = domain.StatusChunked
	st.Document.Failure = &domain.Failure{
		Kind:      domain.KindEmbeddingService,
		Stage:     domain.StageEmbedding,
		Message:   "503 from provider\nretry later",
		Transient: true,
	}
	return st
}

func loadedView(t *testing.T, mock *MockIngestService, id string) *View {
	t.Helper()
	view := NewView(nil, nil, mock)
	view, _ = view.Update(view.SetDocument(id)())
	require.NoError(t, view.Err())
	return view
}

func TestNewView(t *testing.T) {
	view := NewView(nil, nil, nil)

	require.NotNil(t, view)
	assert.Nil(t, view.Init())
	assert.Contains(t, view.View(), "No document selected")
}

func TestView_SetDocument(t *testing.T) {
	var asked string
	mock := &MockIngestService{
		StatusFunc: func(_ context.Context, id string) (*driving.IngestStatus, error) {
			asked = id
			return doneStatus(id), nil
		},
	}
	view := NewView(nil, nil, mock)

	cmd := view.SetDocument("doc-1")
	assert.True(t, view.Loading())
	assert.Contains(t, view.View(), "Loading status...")

	view, _ = view.Update(cmd())

	assert.Equal(t, "doc-1", asked)
	assert.Equal(t, "doc-1", view.DocumentID())
	require.NotNil(t, view.Status())
	assert.False(t, view.Loading())
}

func TestView_Load_Error(t *testing.T) {
	mock := &MockIngestService{
		StatusFunc: func(context.Context, string) (*driving.IngestStatus, error) {
			return nil, domain.ErrNotFound
		},
	}
	view := NewView(nil, nil, mock)

	view, _ = view.Update(view.SetDocument("gone")())

	assert.ErrorIs(t, view.Err(), domain.ErrNotFound)
	assert.Contains(t, view.View(), "Error: not found")
}

func TestView_Load_NilService(t *testing.T) {
	view := NewView(nil, nil, nil)

	view, _ = view.Update(view.SetDocument("doc-1")())

	assert.Error(t, view.Err())
}

func TestView_IgnoresOtherDocument(t *testing.T) {
	view := loadedView(t, &MockIngestService{}, "doc-1")

	view, _ = view.Update(messages.DocumentStatusLoaded{DocumentID: "doc-2", Err: domain.ErrNotFound})

	assert.NoError(t, view.Err())
}

func TestView_View_Done(t *testing.T) {
	view := loadedView(t, &MockIngestService{}, "doc-1")

	out := view.View()

	assert.Contains(t, out, "Document Status")
	assert.Contains(t, out, "deal.pdf")
	assert.Contains(t, out, "fintech")
	assert.Contains(t, out, "won")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "3 stored of 3 (1 OCR)")
	assert.Contains(t, out, "abc123")
	assert.NotContains(t, out, "Checkpoint")
	assert.NotContains(t, out, "Failure")
}

func TestView_View_Failed(t *testing.T) {
	mock := &MockIngestService{
		StatusFunc: func(_ context.Context, id string) (*driving.IngestStatus, error) {
			return failedStatus(id), nil
		},
	}
	view := loadedView(t, mock, "doc-1")

	out := view.View()

	assert.Contains(t, out, "Checkpoint")
	assert.Contains(t, out, "chunked")
	assert.Contains(t, out, "Failure")
	assert.Contains(t, out, "503 from provider")
	assert.Contains(t, out, "retry later")
	assert.Contains(t, out, "will be retried by resume")
}

func TestView_View_Running(t *testing.T) {
	mock := &MockIngestService{
		StatusFunc: func(_ context.Context, id string) (*driving.IngestStatus, error) {
			st := doneStatus(id)
			st.Document.Status = domain.StatusExtracted
			st.Running = true
			st.Stage = domain.StageChunking
			return st, nil
		},
	}
	view := loadedView(t, mock, "doc-1")

	assert.Contains(t, view.View(), "stage chunking")
}

func TestView_Scroll(t *testing.T) {
	mock := &MockIngestService{
		StatusFunc: func(_ context.Context, id string) (*driving.IngestStatus, error) {
			return failedStatus(id), nil
		},
	}
	view := loadedView(t, mock, "doc-1")
	view.SetDimensions(80, 10)

	for range 100 {
		view, _ = view.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	assert.Equal(t, view.maxScroll(), view.scroll)
	assert.NotContains(t, view.View(), "deal.pdf")

	for range 100 {
		view, _ = view.Update(tea.KeyMsg{Type: tea.KeyUp})
	}
	assert.Equal(t, 0, view.scroll)
	assert.Contains(t, view.View(), "deal.pdf")
}

func TestView_Reload(t *testing.T) {
	calls := 0
	mock := &MockIngestService{
		StatusFunc: func(_ context.Context, id string) (*driving.IngestStatus, error) {
			calls++
			return doneStatus(id), nil
		},
	}
	view := loadedView(t, mock, "doc-1")

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, 2, calls)
}

func TestView_Reload_NoDocument(t *testing.T) {
	view := NewView(nil, nil, &MockIngestService{})

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})

	assert.Nil(t, cmd)
}

func TestView_Back(t *testing.T) {
	view := loadedView(t, &MockIngestService{}, "doc-1")

	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewDocuments}, cmd())
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))
	assert.NotEqual(t, "-", formatTime(time.Now()))
}

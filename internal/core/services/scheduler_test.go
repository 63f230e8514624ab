package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu       sync.RWMutex
	tasks    map[string]*domain.ScheduledTask
	results  map[string][]domain.TaskResult
	saveErr  error
	listErr  error
	getErr   error
	pruneErr error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if task == nil {
		return domain.ErrInvalidInput
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if result == nil {
		return domain.ErrInvalidInput
	}
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) History(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if limit > 0 && len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	return m.pruneErr
}

// mockIngest records Resume calls. Other methods are not used.
type mockIngest struct {
	driving.IngestService

	mu     sync.Mutex
	calls  []driving.ResumeOptions
	report *driving.ResumeReport
	err    error
}

func (m *mockIngest) Resume(_ context.Context, opts driving.ResumeOptions) (*driving.ResumeReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, opts)
	if m.err != nil {
		return nil, m.err
	}
	if m.report == nil {
		return &driving.ResumeReport{}, nil
	}
	return m.report, nil
}

func (m *mockIngest) resumed() []driving.ResumeOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]driving.ResumeOptions(nil), m.calls...)
}

// mockInsights lists fixed industries and records rebuilds.
type mockInsights struct {
	driving.InsightService

	industries []string
	rebuilt    []string
	rebuildErr error
	failOn     string
}

func (m *mockInsights) ListIndustries(_ context.Context, _ int) ([]driving.IndustrySummary, error) {
	out := make([]driving.IndustrySummary, len(m.industries))
	for i, ind := range m.industries {
		out[i] = driving.IndustrySummary{Industry: ind}
	}
	return out, nil
}

func (m *mockInsights) Rebuild(_ context.Context, industry string) (*driving.InsightSummary, error) {
	if m.rebuildErr != nil && (m.failOn == "" || m.failOn == industry) {
		return nil, m.rebuildErr
	}
	m.rebuilt = append(m.rebuilt, industry)
	return &driving.InsightSummary{}, nil
}

var _ driven.SchedulerStore = (*mockSchedulerStore)(nil)

func TestNewScheduler(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	scheduler := NewScheduler(config, newMockSchedulerStore(), &mockIngest{}, &mockInsights{})

	require.NotNil(t, scheduler)
	assert.Equal(t, config.Enabled, scheduler.config.Enabled)
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), &mockIngest{}, &mockInsights{})

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	cancel()
	require.NoError(t, scheduler.Stop())
	wg.Wait()
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, nil)
	require.NoError(t, scheduler.Stop())
}

func TestScheduler_DisabledStartReturns(t *testing.T) {
	config := domain.DefaultSchedulerConfig()
	config.Enabled = false
	scheduler := NewScheduler(config, newMockSchedulerStore(), nil, nil)

	require.NoError(t, scheduler.Start(context.Background()))
}

func TestScheduler_DoubleStart(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), &mockIngest{}, &mockInsights{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = scheduler.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	// Second start returns immediately.
	assert.NoError(t, scheduler.Start(context.Background()))

	cancel()
	scheduler.Stop() //nolint:errcheck
	wg.Wait()
}

func TestScheduler_SyncTasks(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil)

	ctx := context.Background()
	require.NoError(t, scheduler.syncTasks(ctx))

	resume, err := store.GetTask(ctx, domain.TaskIDDocumentResume)
	require.NoError(t, err)
	require.NotNil(t, resume)
	assert.Equal(t, "Resume documents", resume.Name)
	assert.True(t, resume.Enabled)
	assert.Equal(t, 15*time.Minute, resume.Interval)

	rebuild, err := store.GetTask(ctx, domain.TaskIDInsightRebuild)
	require.NoError(t, err)
	require.NotNil(t, rebuild)
	assert.Equal(t, 24*time.Hour, rebuild.Interval)
}

func TestScheduler_SyncTasks_DisablesExisting(t *testing.T) {
	store := newMockSchedulerStore()
	ctx := context.Background()
	require.NoError(t, NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil).syncTasks(ctx))

	cfg := domain.DefaultSchedulerConfig()
	cfg.Rebuild.Enabled = false
	require.NoError(t, NewScheduler(cfg, store, nil, nil).syncTasks(ctx))

	rebuild, err := store.GetTask(ctx, domain.TaskIDInsightRebuild)
	require.NoError(t, err)
	require.NotNil(t, rebuild)
	assert.False(t, rebuild.Enabled)
	assert.False(t, rebuild.Due(time.Now().Add(48*time.Hour)))
}

func TestScheduler_SyncTasks_SkipsNewDisabled(t *testing.T) {
	store := newMockSchedulerStore()
	cfg := domain.DefaultSchedulerConfig()
	cfg.Resume.Enabled = false

	require.NoError(t, NewScheduler(cfg, store, nil, nil).syncTasks(context.Background()))

	got, err := store.GetTask(context.Background(), domain.TaskIDDocumentResume)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestScheduler_SyncTasks_StoreError(t *testing.T) {
	store := newMockSchedulerStore()
	store.getErr = errors.New("db down")

	err := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil).syncTasks(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestScheduler_EnsureTask_UpdateInterval(t *testing.T) {
	store := newMockSchedulerStore()
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, nil)
	ctx := context.Background()

	taskCfg := domain.TaskConfig{Enabled: true, Interval: time.Hour}
	require.NoError(t, scheduler.ensureTask(ctx, "test-task", "Test Task", taskCfg))

	taskCfg.Interval = 2 * time.Hour
	require.NoError(t, scheduler.ensureTask(ctx, "test-task", "Test Task", taskCfg))

	task, err := store.GetTask(ctx, "test-task")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, task.Interval)
	assert.True(t, task.NextRun.After(time.Now().Add(time.Hour)))
}

func TestScheduler_ResumeDocuments(t *testing.T) {
	ingest := &mockIngest{report: &driving.ResumeReport{Attempted: 3, Completed: 3}}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), ingest, nil)

	processed, failed, err := scheduler.resumeDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)
	assert.Zero(t, failed)
	assert.Equal(t, []driving.ResumeOptions{{IncludeFailed: true, TransientOnly: true}}, ingest.resumed())
}

func TestScheduler_ResumeDocuments_ReportsFailures(t *testing.T) {
	ingest := &mockIngest{report: &driving.ResumeReport{Attempted: 3, Completed: 1, Failed: 2}}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), ingest, nil)

	processed, failed, err := scheduler.resumeDocuments(context.Background())
	assert.ErrorContains(t, err, "2 of 3 documents failed")
	assert.Equal(t, 1, processed)
	assert.Equal(t, 2, failed)
}

func TestScheduler_NilServices(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, nil)
	ctx := context.Background()

	_, _, err := scheduler.resumeDocuments(ctx)
	require.NoError(t, err)
	_, _, err = scheduler.rebuildInsights(ctx)
	require.NoError(t, err)
}

func TestScheduler_RebuildInsights(t *testing.T) {
	insights := &mockInsights{industries: []string{"fintech", "retail"}}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, insights)

	processed, failed, err := scheduler.rebuildInsights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
	assert.Zero(t, failed)
	assert.Equal(t, []string{"fintech", "retail"}, insights.rebuilt)
}

func TestScheduler_RebuildInsights_ContinuesPastFailure(t *testing.T) {
	insights := &mockInsights{
		industries: []string{"fintech", "retail", "logistics"},
		rebuildErr: errors.New("boom"),
		failOn:     "retail",
	}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, insights)

	processed, failed, err := scheduler.rebuildInsights(context.Background())
	assert.ErrorContains(t, err, `rebuild "retail": boom`)
	assert.Equal(t, 2, processed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"fintech", "logistics"}, insights.rebuilt)
}

func TestScheduler_RunDue(t *testing.T) {
	store := newMockSchedulerStore()
	ingest := &mockIngest{}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, ingest, nil)
	ctx := context.Background()

	due := &domain.ScheduledTask{
		ID:       domain.TaskIDDocumentResume,
		Name:     "Resume documents",
		Interval: time.Hour,
		NextRun:  time.Now().Add(-time.Minute),
		Enabled:  true,
	}
	notDue := &domain.ScheduledTask{
		ID:       domain.TaskIDInsightRebuild,
		Name:     "Rebuild insights",
		Interval: time.Hour,
		NextRun:  time.Now().Add(time.Hour),
		Enabled:  true,
	}
	require.NoError(t, store.SaveTask(ctx, due))
	require.NoError(t, store.SaveTask(ctx, notDue))

	scheduler.runDue(ctx)
	scheduler.wg.Wait()

	assert.Len(t, ingest.resumed(), 1)

	task, err := store.GetTask(ctx, domain.TaskIDDocumentResume)
	require.NoError(t, err)
	assert.True(t, task.NextRun.After(time.Now()))
	assert.False(t, task.LastSuccess.IsZero())
	assert.Empty(t, task.LastError)

	history, err := store.History(ctx, domain.TaskIDDocumentResume, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Success())

	rebuilds, err := store.History(ctx, domain.TaskIDInsightRebuild, 10)
	require.NoError(t, err)
	assert.Empty(t, rebuilds)
}

func TestScheduler_RunNow(t *testing.T) {
	store := newMockSchedulerStore()
	insights := &mockInsights{industries: []string{"fintech"}, rebuildErr: errors.New("boom")}
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), store, nil, insights)
	ctx := context.Background()

	result, err := scheduler.RunNow(ctx, domain.TaskIDInsightRebuild)
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, 1, result.Failed)

	task, err := store.GetTask(ctx, domain.TaskIDInsightRebuild)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Contains(t, task.LastError, "boom")
	assert.True(t, task.LastSuccess.IsZero())

	history, err := scheduler.History(ctx, domain.TaskIDInsightRebuild, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	tasks, err := scheduler.Tasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestScheduler_RunNow_UnknownTask(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, nil)

	_, err := scheduler.RunNow(context.Background(), "vacuum")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduler_RunTask_UnknownTaskID(t *testing.T) {
	scheduler := NewScheduler(domain.DefaultSchedulerConfig(), newMockSchedulerStore(), nil, nil)

	task := &domain.ScheduledTask{ID: "unknown-task", Name: "Unknown", Enabled: true}

	scheduler.runTask(context.Background(), task)
	scheduler.wg.Wait()
}

package cli

import (
	"context"
	"slices"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/opptrack/internal/config"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// mockIngestService implements driving.IngestService for testing.
type mockIngestService struct {
	mu        sync.Mutex
	submitted []driving.SubmitRequest
	existing  map[string]*domain.Document
	documents []domain.Document
	status    *driving.IngestStatus
	resume    *driving.ResumeReport
	resumeOpt driving.ResumeOptions
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
	if doc, ok := m.existing[req.Name]; ok {
		return doc, nil
	}
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

func (m *mockIngestService) Resume(_ context.Context, opts driving.ResumeOptions) (*driving.ResumeReport, error) {
	m.resumeOpt = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.resume == nil {
		return &driving.ResumeReport{}, nil
	}
	return m.resume, nil
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
	if id == "missing" {
		return domain.ErrNotFound
	}
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

// mockInsightService implements driving.InsightService for testing.
type mockInsightService struct {
	industries []driving.IndustrySummary
	insight    *driving.InsightSummary
	clusters   *driving.ClusterReport
	summary    *driving.ClusterInsights
	limit      int
	rebuilt    string
	err        error
}

func (m *mockInsightService) ListIndustries(_ context.Context, limit int) ([]driving.IndustrySummary, error) {
	m.limit = limit
	return m.industries, m.err
}

func (m *mockInsightService) GetInsight(_ context.Context, _ string) (*driving.InsightSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.insight, nil
}

func (m *mockInsightService) Clusters(_ context.Context, _ string) (*driving.ClusterReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.clusters, nil
}

func (m *mockInsightService) Summarise(_ context.Context, _ string) (*driving.ClusterInsights, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

func (m *mockInsightService) Rebuild(_ context.Context, industry string) (*driving.InsightSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.rebuilt = industry
	return &driving.InsightSummary{IndustrySummary: driving.IndustrySummary{Industry: industry, Documents: 3}}, nil
}

// mockQueue implements driving.IngestQueue by ingesting inline.
type mockQueue struct {
	mu       sync.Mutex
	started  bool
	closed   bool
	enqueued []string
	ran      []string
	opts     driving.IngestOptions
	failIDs  map[string]error
}

func (m *mockQueue) Start() { m.started = true }

func (m *mockQueue) Close() { m.closed = true }

func (m *mockQueue) Enqueue(_ context.Context, id string, opts driving.IngestOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, id)
	m.opts = opts
	return m.failIDs[id]
}

func (m *mockQueue) RunAll(_ context.Context, ids []string, opts driving.IngestOptions) []driving.IngestResult {
	m.opts = opts
	m.ran = append(m.ran, ids...)
	out := make([]driving.IngestResult, len(ids))
	for i, id := range ids {
		if err := m.failIDs[id]; err != nil {
			out[i] = driving.IngestResult{DocumentID: id, Err: err}
			continue
		}
		out[i] = driving.IngestResult{
			DocumentID: id,
			Document:   &domain.Document{ID: id, Status: domain.StatusDone, PageCount: 2, Industry: "fintech"},
		}
	}
	return out
}

// mockScheduler implements driving.Scheduler for testing. Start blocks
// until ctx is done.
type mockScheduler struct {
	mu      sync.Mutex
	started chan struct{}
	stopped bool
	tasks   []domain.ScheduledTask
	history []domain.TaskResult
	result  *domain.TaskResult
	ran     []string
	err     error
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{started: make(chan struct{})}
}

func (m *mockScheduler) Start(ctx context.Context) error {
	close(m.started)
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

func (m *mockScheduler) Tasks(_ context.Context) ([]domain.ScheduledTask, error) {
	return m.tasks, m.err
}

func (m *mockScheduler) History(_ context.Context, _ string, limit int) ([]domain.TaskResult, error) {
	if limit > 0 && len(m.history) > limit {
		return m.history[:limit], m.err
	}
	return m.history, m.err
}

func (m *mockScheduler) RunNow(_ context.Context, taskID string) (*domain.TaskResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := domain.TaskNames()[taskID]; !ok {
		return nil, domain.ErrNotFound
	}
	m.ran = append(m.ran, taskID)
	return m.result, nil
}

// mockConfigStore implements driven.ConfigStore in memory.
type mockConfigStore struct {
	values map[string]any
	err    error
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{values: map[string]any{}}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	s, _ := m.values[key].(string)
	return s
}

func (m *mockConfigStore) GetInt(key string) int {
	i, _ := m.values[key].(int)
	return i
}

func (m *mockConfigStore) GetBool(key string) bool {
	b, _ := m.values[key].(bool)
	return b
}

func (m *mockConfigStore) GetStringSlice(key string) []string {
	s, _ := m.values[key].([]string)
	return s
}

func (m *mockConfigStore) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (m *mockConfigStore) Set(key string, value any) error {
	if m.err != nil {
		return m.err
	}
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Unset(key string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.values, key)
	return nil
}

func (m *mockConfigStore) Save() error  { return m.err }
func (m *mockConfigStore) Load() error  { return m.err }
func (m *mockConfigStore) Path() string { return "/tmp/opptrack/config.toml" }

// mockProbe implements driven.ProviderProbe for testing.
type mockProbe struct {
	embedErr error
	llmErr   error
}

func (m *mockProbe) ProbeEmbedding(_ context.Context, s *domain.EmbeddingSettings) driven.ProbeResult {
	return driven.ProbeResult{Provider: s.Provider, Model: s.Model, Configured: true, Err: m.embedErr}
}

func (m *mockProbe) ProbeLLM(_ context.Context, s *domain.LLMSettings) driven.ProbeResult {
	return driven.ProbeResult{Provider: s.Provider, Model: s.Model, Configured: true, Err: m.llmErr}
}

// testEnv holds the mocks injected by setupTestServices.
type testEnv struct {
	ingest   *mockIngestService
	insights *mockInsightService
	queue    *mockQueue
	store    *mockConfigStore
	cfg      *config.Config
}

// setupTestServices injects fresh mocks and returns a cleanup func that
// restores the previous state.
func setupTestServices() (*testEnv, func()) {
	oldStore, oldCfg := configStore, appConfig
	oldIngest, oldInsights, oldQueue := ingestService, insightService, ingestQueue
	oldScheduler, oldProbe, oldClose := scheduler, providerProbe, closeServices

	env := &testEnv{
		ingest:   &mockIngestService{},
		insights: &mockInsightService{},
		queue:    &mockQueue{failIDs: map[string]error{}},
		store:    newMockConfigStore(),
		cfg:      config.Default(),
	}
	SetConfig(env.store, env.cfg)
	SetServices(&Services{
		Ingest:   env.ingest,
		Insights: env.insights,
		Queue:    env.queue,
	})
	resetFlags(rootCmd)

	return env, func() {
		configStore, appConfig = oldStore, oldCfg
		ingestService, insightService, ingestQueue = oldIngest, oldInsights, oldQueue
		scheduler, providerProbe, closeServices = oldScheduler, oldProbe, oldClose
		rootCmd.SetArgs(nil)
	}
}

// resetFlags restores every flag to its default, since cobra keeps flag
// values between executions of the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

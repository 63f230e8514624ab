package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// historyKeep is the number of results retained per task.
const historyKeep = 100

// taskFunc runs one maintenance pass and reports how many items it
// processed and how many failed.
type taskFunc func(ctx context.Context) (processed, failed int, err error)

// Scheduler runs document resume and insight rebuild passes on the
// intervals in its config. Task state lives in the SchedulerStore so the
// schedule survives restarts.
type Scheduler struct {
	config   domain.SchedulerConfig
	store    driven.SchedulerStore
	ingest   driving.IngestService
	insights driving.InsightService
	tasks    map[string]taskFunc
	tick     time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ driving.Scheduler = (*Scheduler)(nil)

// NewScheduler creates a scheduler. ingest and insights may be nil, in
// which case their task does nothing.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	ingest driving.IngestService,
	insights driving.InsightService,
) *Scheduler {
	s := &Scheduler{
		config:   config,
		store:    store,
		ingest:   ingest,
		insights: insights,
		tick:     time.Minute,
	}
	s.tasks = map[string]taskFunc{
		domain.TaskIDDocumentResume: s.resumeDocuments,
		domain.TaskIDInsightRebuild: s.rebuildInsights,
	}
	return s
}

// Start runs due tasks once, then on every tick. It blocks until Stop is
// called or ctx is done, and returns at once when the scheduler is
// disabled or already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running || !s.config.Enabled {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.syncTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	s.runDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// Stop ends the loop and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// syncTasks writes the configured interval and enabled flag of every
// task to the store, keeping the persisted run times.
func (s *Scheduler) syncTasks(ctx context.Context) error {
	var errs []error
	for id, name := range domain.TaskNames() {
		cfg, _ := s.config.Task(id)
		if err := s.ensureTask(ctx, id, name, cfg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	switch {
	case task == nil:
		if !cfg.Enabled {
			return nil
		}
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  true,
			NextRun:  time.Now().Add(cfg.Interval),
		}
	case task.Interval != cfg.Interval:
		task.Interval = cfg.Interval
		task.NextRun = time.Now().Add(cfg.Interval)
	}
	task.Enabled = cfg.Enabled

	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) runDue(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		if tasks[i].Due(now) {
			s.runTask(ctx, &tasks[i])
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	if _, ok := s.tasks[task.ID]; !ok {
		logger.Warn("scheduler: unknown task ID: %s", task.ID)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, task)
	}()
}

// RunNow runs one task in the caller's goroutine. Tasks disabled in
// config can still be run this way.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	name, ok := domain.TaskNames()[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", domain.ErrNotFound, taskID)
	}

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		cfg, _ := s.config.Task(taskID)
		task = &domain.ScheduledTask{ID: taskID, Name: name, Interval: cfg.Interval, Enabled: cfg.Enabled}
	}
	return s.execute(ctx, task), nil
}

// Tasks lists the persisted tasks.
func (s *Scheduler) Tasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.store.ListTasks(ctx)
}

// History returns the newest results of a task.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	return s.store.History(ctx, taskID, limit)
}

// execute runs task, then persists its new state and the result.
func (s *Scheduler) execute(ctx context.Context, task *domain.ScheduledTask) *domain.TaskResult {
	result := &domain.TaskResult{TaskID: task.ID, StartedAt: time.Now()}
	processed, failed, err := s.tasks[task.ID](ctx)
	result.EndedAt = time.Now()
	result.Processed, result.Failed = processed, failed
	if err != nil {
		result.Error = err.Error()
		logger.Warn("scheduler: %s failed: %v", task.ID, err)
	} else {
		logger.Debug("scheduler: %s processed %d in %s", task.ID, processed, result.Duration())
	}
	task.Finish(result)

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, historyKeep); err != nil {
		logger.Warn("scheduler: failed to prune history: %v", err)
	}
	return result
}

// resumeDocuments continues interrupted documents and retries the ones
// that failed on a transient error.
func (s *Scheduler) resumeDocuments(ctx context.Context) (int, int, error) {
	if s.ingest == nil {
		return 0, 0, nil
	}
	report, err := s.ingest.Resume(ctx, driving.ResumeOptions{IncludeFailed: true, TransientOnly: true})
	if err != nil {
		return 0, 0, err
	}
	if report.Failed > 0 {
		return report.Completed, report.Failed, fmt.Errorf("%d of %d documents failed", report.Failed, report.Attempted)
	}
	return report.Completed, 0, nil
}

// rebuildInsights refolds every listed industry from its contributions.
// A failing industry does not stop the others.
func (s *Scheduler) rebuildInsights(ctx context.Context) (int, int, error) {
	if s.insights == nil {
		return 0, 0, nil
	}
	industries, err := s.insights.ListIndustries(ctx, driving.MaxIndustryLimit)
	if err != nil {
		return 0, 0, err
	}

	var (
		rebuilt int
		errs    []error
	)
	for _, ind := range industries {
		if err := ctx.Err(); err != nil {
			return rebuilt, len(errs), err
		}
		if _, err := s.insights.Rebuild(ctx, ind.Industry); err != nil {
			errs = append(errs, fmt.Errorf("rebuild %q: %w", ind.Industry, err))
			continue
		}
		rebuilt++
	}
	return rebuilt, len(errs), errors.Join(errs...)
}

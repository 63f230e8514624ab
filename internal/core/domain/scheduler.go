package domain

import "time"

// Maintenance task IDs.
const (
	// TaskIDDocumentResume continues interrupted documents and retries
	// transient failures.
	TaskIDDocumentResume = "document-resume"

	// TaskIDInsightRebuild refolds every industry from its contributions.
	TaskIDInsightRebuild = "insight-rebuild"
)

// ScheduledTask is the persisted state of a maintenance task, kept so a
// restarted process picks up the schedule where it stopped.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	LastError   string
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// Finish records a run that started at start and ended with res.
func (t *ScheduledTask) Finish(res *TaskResult) {
	t.LastRun = res.StartedAt
	t.NextRun = res.EndedAt.Add(t.Interval)
	t.LastError = res.Error
	if res.Success() {
		t.LastSuccess = res.EndedAt
	}
}

// TaskResult is one run of a maintenance task.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time

	// Processed counts documents resumed or industries rebuilt.
	Processed int

	// Failed counts the documents or industries that did not complete.
	Failed int

	// Error is empty when the run succeeded.
	Error string
}

// Success reports whether the run completed without error.
func (r *TaskResult) Success() bool {
	return r.Error == ""
}

// Duration is how long the run took.
func (r *TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// TaskConfig enables a task and sets its interval.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SchedulerConfig selects which maintenance tasks run and how often.
type SchedulerConfig struct {
	// Enabled is the master switch.
	Enabled bool

	Resume  TaskConfig
	Rebuild TaskConfig
}

// Task returns the configuration for a task ID.
func (c SchedulerConfig) Task(id string) (TaskConfig, bool) {
	switch id {
	case TaskIDDocumentResume:
		return c.Resume, true
	case TaskIDInsightRebuild:
		return c.Rebuild, true
	}
	return TaskConfig{}, false
}

// TaskNames returns the display name of every maintenance task by ID.
func TaskNames() map[string]string {
	return map[string]string{
		TaskIDDocumentResume: "Resume documents",
		TaskIDInsightRebuild: "Rebuild insights",
	}
}

// DefaultSchedulerConfig resumes documents every 15 minutes and rebuilds
// insights daily.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		Resume:  TaskConfig{Enabled: true, Interval: 15 * time.Minute},
		Rebuild: TaskConfig{Enabled: true, Interval: 24 * time.Hour},
	}
}

package driven

import (
	"context"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// SchedulerStore keeps maintenance task state and run history next to the
// pipeline data, so a restarted process continues the same schedule.
type SchedulerStore interface {
	// GetTask returns nil and no error for an unknown ID.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns every task ordered by ID.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask upserts a task by ID.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// History returns up to limit results for a task, newest first.
	// A limit of zero or less returns all of them.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// PruneHistory keeps the newest keep results of each task.
	PruneHistory(ctx context.Context, keep int) error
}

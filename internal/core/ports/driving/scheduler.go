package driving

import (
	"context"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// Scheduler periodically resumes interrupted documents and rebuilds
// industry insights.
type Scheduler interface {
	// Start runs due tasks until Stop is called or ctx is done.
	Start(ctx context.Context) error

	// Stop ends the loop and waits for in-flight tasks.
	Stop() error

	// Tasks lists the persisted tasks with their last and next run.
	Tasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns the newest results of one task.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)

	// RunNow runs a task immediately and waits for it. The result is
	// recorded and the next run is rescheduled from now.
	RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error)
}

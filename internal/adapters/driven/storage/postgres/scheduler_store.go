package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

type schedulerStore struct {
	pool *pgxpool.Pool
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const taskColumns = `id, name, interval_ms, last_run, next_run, last_error, last_success, enabled`

// GetTask returns nil and no error if the task does not exist.
func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	task, err := scanTask(s.pool.QueryRow(ctx, "SELECT "+taskColumns+" FROM scheduled_tasks WHERE id = $1", taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

// ListTasks returns all scheduled tasks by ID.
func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+taskColumns+" FROM scheduled_tasks ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying scheduled tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ScheduledTask, error) {
		task, err := scanTask(row)
		if err != nil {
			return domain.ScheduledTask{}, err
		}
		return *task, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning scheduled tasks: %w", err)
	}
	return nilIfEmpty(tasks), nil
}

// SaveTask creates or updates a task.
func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			interval_ms = excluded.interval_ms,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			enabled = excluded.enabled
	`, task.ID, task.Name, task.Interval.Milliseconds(),
		nullableTime(task.LastRun), nullableTime(task.NextRun),
		task.LastError, nullableTime(task.LastSuccess), task.Enabled)
	if err != nil {
		return fmt.Errorf("saving scheduled task: %w", err)
	}
	return nil
}

// RecordResult logs a task execution result.
func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_results (task_id, started_at, ended_at, processed, failed, error)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, result.TaskID, result.StartedAt, result.EndedAt, result.Processed, result.Failed, result.Error)
	if err != nil {
		return fmt.Errorf("recording task result: %w", err)
	}
	return nil
}

// History returns recent results for a task, most recent first.
func (s *schedulerStore) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	b := psql.Select("task_id", "started_at", "ended_at", "processed", "failed", "error").
		From("task_results").
		Where("task_id = ?", taskID).
		OrderBy("started_at DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying task history: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TaskResult, error) {
		var r domain.TaskResult
		err := row.Scan(&r.TaskID, &r.StartedAt, &r.EndedAt, &r.Processed, &r.Failed, &r.Error)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning task history: %w", err)
	}
	return nilIfEmpty(results), nil
}

// PruneHistory keeps the most recent keep results per task.
func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM task_results
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC, id DESC) AS rn
				FROM task_results
			) ranked WHERE rn > $1
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning task history: %w", err)
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var intervalMS int64
	var lastRun, nextRun, lastSuccess pgtype.Timestamptz

	if err := row.Scan(&task.ID, &task.Name, &intervalMS, &lastRun, &nextRun,
		&task.LastError, &lastSuccess, &task.Enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning scheduled task: %w", err)
	}
	task.Interval = time.Duration(intervalMS) * time.Millisecond
	task.LastRun = fromTimestamptz(lastRun)
	task.NextRun = fromTimestamptz(nextRun)
	task.LastSuccess = fromTimestamptz(lastSuccess)
	return &task, nil
}

func nullableTime(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

func fromTimestamptz(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time.UTC()
}

package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect and trigger maintenance tasks",
	Long: `The scheduler resumes interrupted documents (document-resume) and
rebuilds every industry insight from its contributions (insight-rebuild).
It runs inside "opptrack serve" and "opptrack tui"; intervals are set with
scheduler.resume_interval and scheduler.rebuild_interval.`,
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show tasks with their last and next run",
	Args:  cobra.NoArgs,
	RunE:  runScheduleList,
}

var scheduleHistoryCmd = &cobra.Command{
	Use:   "history <task-id>",
	Short: "Show recent runs of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleHistory,
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run <task-id>",
	Short: "Run a task now",
	Example: `  opptrack schedule run document-resume
  opptrack schedule run insight-rebuild`,
	Args: cobra.ExactArgs(1),
	RunE: runScheduleRun,
}

func init() {
	scheduleHistoryCmd.Flags().Int("limit", 10, "number of runs to show")

	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleHistoryCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func requireScheduler(cmd *cobra.Command) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if scheduler == nil {
		return errors.New("scheduler not configured")
	}
	return nil
}

func runScheduleList(cmd *cobra.Command, _ []string) error {
	if err := requireScheduler(cmd); err != nil {
		return err
	}
	tasks, err := scheduler.Tasks(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if len(tasks) == 0 {
		p.Muted("No tasks have been scheduled yet. They are created when serve or tui starts.")
		return nil
	}
	for i := range tasks {
		t := &tasks[i]
		p.Title(fmt.Sprintf("%s (%s)", t.Name, t.ID))
		p.Field("Enabled", t.Enabled)
		p.Field("Interval", t.Interval)
		p.Field("Last run", whenOrNever(t.LastRun))
		p.Field("Next run", whenOrNever(t.NextRun))
		if t.LastError != "" {
			p.Field("Last error", p.render(p.failure, t.LastError))
		}
	}
	return nil
}

func runScheduleHistory(cmd *cobra.Command, args []string) error {
	if err := requireScheduler(cmd); err != nil {
		return err
	}
	if _, ok := domain.TaskNames()[args[0]]; !ok {
		return fmt.Errorf("unknown task %q", args[0])
	}
	limit, _ := cmd.Flags().GetInt("limit")

	results, err := scheduler.History(cmd.Context(), args[0], limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if len(results) == 0 {
		p.Muted("%s has not run yet.", args[0])
		return nil
	}
	for i := range results {
		r := &results[i]
		line := fmt.Sprintf("%s  %6s  processed %d  failed %d",
			r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Millisecond), r.Processed, r.Failed)
		if r.Success() {
			p.Line("%s", line)
			continue
		}
		p.Failure("%s  %s", line, r.Error)
	}
	return nil
}

func runScheduleRun(cmd *cobra.Command, args []string) error {
	if err := requireScheduler(cmd); err != nil {
		return err
	}
	result, err := scheduler.RunNow(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("unknown task %q", args[0])
	}
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	if !result.Success() {
		p.Failure("✗ %s: processed %d, failed %d", args[0], result.Processed, result.Failed)
		return errors.New(result.Error)
	}
	p.Success("✓ %s: processed %d in %s", args[0], result.Processed, result.Duration().Round(time.Millisecond))
	return nil
}

func whenOrNever(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}

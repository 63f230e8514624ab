package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui"
	"github.com/custodia-labs/opptrack/internal/logger"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse industry insights in the terminal",
	Long: `Launch the interactive terminal browser for industry insights.

Industries are listed by document count. Open one to see its aggregate,
clusters and LLM summary, then drill into its documents and their
ingestion status.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Open
  d        - Documents of the industry
  s        - Summarise clusters
  b        - Rebuild the insight
  x        - Delete a document
  Esc      - Back
  ?        - Toggle help
  q        - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

// runProgram runs the app; tests replace it to avoid needing a terminal.
var runProgram = func(app *tui.App) error {
	return app.Run()
}

func init() {
	tuiCmd.Flags().Bool("no-scheduler", false, "disable background resume and rebuild tasks")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	if err := requireServices(cmd); err != nil {
		return err
	}

	app, err := tui.NewApp(&tui.Ports{Insights: insightService, Ingest: ingestService})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The TUI is long-running, so background tasks run alongside it.
	noScheduler, _ := cmd.Flags().GetBool("no-scheduler")
	if scheduler != nil && !noScheduler {
		go func() {
			if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("scheduler stopped: %v", err)
			}
		}()
		defer func() {
			if err := scheduler.Stop(); err != nil {
				logger.Warn("scheduler stop error: %v", err)
			}
		}()
	}

	app.WithContext(ctx)
	if err := runProgram(app); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

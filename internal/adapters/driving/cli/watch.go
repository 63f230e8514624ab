package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/opptrack/internal/connectors/filesystem"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest PDFs dropped into an inbox directory",
	Long: `Watch an inbox directory and ingest every PDF that appears in it. Each
top-level subdirectory names the industry its documents contribute to:

  inbox/
    fintech/deal.pdf
    real estate/proposal.pdf

A file is picked up once it has stopped changing for --settle. PDFs already
in the inbox are ingested on start unless --scan=false. Files that were
ingested before are skipped.

Examples:
  opptrack watch ~/opportunities
  opptrack watch --outcome won --settle 5s ./won`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("outcome", "o", "", "outcome for every watched document: won, lost or unknown")
	watchCmd.Flags().Bool("scan", true, "ingest PDFs already in the inbox")
	watchCmd.Flags().Duration("settle", filesystem.DefaultSettle, "how long a file must be unchanged before ingestion")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if ingestService == nil || ingestQueue == nil {
		return errors.New("ingest service not configured")
	}

	outcomeFlag, _ := cmd.Flags().GetString("outcome")
	outcome, err := domain.ParseOutcome(outcomeFlag)
	if err != nil {
		return fmt.Errorf("invalid outcome %q: must be won, lost or unknown", outcomeFlag)
	}
	scan, _ := cmd.Flags().GetBool("scan")
	settle, _ := cmd.Flags().GetDuration("settle")

	ctx := cmd.Context()
	p := newPrinter(cmd.OutOrStdout())
	w := filesystem.New(args[0]).WithSettle(settle)
	defer w.Close()

	ingestQueue.Start()
	defer ingestQueue.Close()

	submit := func(a filesystem.Arrival) {
		doc, err := submitArrival(ctx, a, outcome)
		if err != nil {
			p.Failure("✗ %s: %v", a.Path, err)
			return
		}
		if doc.Status == domain.StatusDone {
			p.Muted("%s already ingested as %s", a.Path, doc.ID)
			return
		}
		if err := ingestQueue.Enqueue(ctx, doc.ID, driving.IngestOptions{}); err != nil {
			p.Failure("✗ %s: %v", a.Path, err)
			return
		}
		p.Line("queued %s (%s) for %q", filepath.Base(a.Path), doc.ID, a.Industry)
	}

	if scan {
		existing, err := w.Scan()
		if err != nil {
			return err
		}
		for _, a := range existing {
			submit(a)
		}
	}

	arrivals, err := w.Watch(ctx)
	if err != nil {
		return err
	}
	p.Success("Watching %s (Ctrl-C to stop)", args[0])
	logger.Info("inbox: watching %s, settle %s", args[0], settle)

	for a := range arrivals {
		submit(a)
	}
	return nil
}

func submitArrival(ctx context.Context, a filesystem.Arrival, outcome domain.Outcome) (*domain.Document, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return ingestService.Submit(ctx, driving.SubmitRequest{
		Name:     filepath.Base(a.Path),
		Industry: a.Industry,
		Outcome:  outcome,
		Data:     data,
	})
}

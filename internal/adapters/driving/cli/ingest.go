package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf>...",
	Short: "Ingest PDF documents",
	Long: `Upload one or more PDF documents and run them through the pipeline:
text extraction, OCR fallback for low-yield pages, chunking, embedding and
aggregation into the industry insight.

Documents are processed concurrently. Uploading the same bytes for the same
industry again returns the existing document; use --force to re-run it.

Examples:
  opptrack ingest --industry fintech --outcome won deal.pdf
  opptrack ingest --industry "real estate" proposals/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue interrupted documents",
	Long: `Continue every document that stopped before completion from its last
checkpoint. With --include-failed, failed documents are retried too.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

var statusCmd = &cobra.Command{
	Use:   "status <doc-id>",
	Short: "Show a document's ingestion state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	ingestCmd.Flags().StringP("industry", "i", "", "industry label the documents contribute to (required)")
	ingestCmd.Flags().StringP("outcome", "o", "", "opportunity outcome: won, lost or unknown")
	ingestCmd.Flags().BoolP("force", "f", false, "re-run documents that are already done")
	_ = ingestCmd.MarkFlagRequired("industry")

	resumeCmd.Flags().Bool("include-failed", false, "retry failed documents from their checkpoint")
	resumeCmd.Flags().Bool("transient-only", false, "with --include-failed, only retry transient failures")

	statusCmd.Flags().Bool("json", false, "print as JSON")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(statusCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if ingestService == nil || ingestQueue == nil {
		return errors.New("ingest service not configured")
	}

	industry, _ := cmd.Flags().GetString("industry")
	outcomeFlag, _ := cmd.Flags().GetString("outcome")
	force, _ := cmd.Flags().GetBool("force")

	outcome, err := domain.ParseOutcome(outcomeFlag)
	if err != nil {
		return fmt.Errorf("invalid outcome %q: must be won, lost or unknown", outcomeFlag)
	}

	ctx := cmd.Context()
	p := newPrinter(cmd.OutOrStdout())

	ids := make([]string, 0, len(args))
	names := make(map[string]string, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		doc, err := ingestService.Submit(ctx, driving.SubmitRequest{
			Name:     filepath.Base(path),
			Industry: industry,
			Outcome:  outcome,
			Data:     data,
		})
		if err != nil {
			return fmt.Errorf("submit %s: %w", path, err)
		}
		if first, dup := names[doc.ID]; dup {
			p.Muted("%s has the same content as %s", path, first)
			continue
		}
		if doc.Status == domain.StatusDone && !force {
			p.Muted("%s already ingested as %s", path, doc.ID)
			continue
		}
		names[doc.ID] = path
		ids = append(ids, doc.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	results := ingestQueue.RunAll(ctx, ids, driving.IngestOptions{Force: force})

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			p.Failure("✗ %s (%s): %v", names[r.DocumentID], r.DocumentID, r.Err)
			continue
		}
		p.Success("✓ %s (%s) %s", names[r.DocumentID], r.DocumentID, describeDocument(r.Document))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(results))
	}
	return nil
}

func describeDocument(d *domain.Document) string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%s, %d pages, industry %q", d.Status, d.PageCount, d.Industry)
}

func runResume(cmd *cobra.Command, _ []string) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	includeFailed, _ := cmd.Flags().GetBool("include-failed")
	transientOnly, _ := cmd.Flags().GetBool("transient-only")
	if transientOnly && !includeFailed {
		return errors.New("--transient-only requires --include-failed")
	}

	report, err := ingestService.Resume(cmd.Context(), driving.ResumeOptions{
		IncludeFailed: includeFailed,
		TransientOnly: transientOnly,
	})
	if err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if report.Attempted == 0 {
		p.Muted("Nothing to resume.")
		return nil
	}
	p.Title("Resume complete")
	p.Field("Attempted", report.Attempted)
	p.Field("Completed", report.Completed)
	p.Field("Failed", report.Failed)
	p.Field("Cancelled", report.Cancelled)
	if report.Failed > 0 {
		return fmt.Errorf("%d documents failed", report.Failed)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	st, err := ingestService.Status(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("document %s not found", args[0])
		}
		return fmt.Errorf("failed to get status: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return p.JSON(st)
	}

	doc := st.Document
	p.Title(doc.Name)
	p.Field("ID", doc.ID)
	p.Field("Industry", doc.Industry)
	p.Field("Outcome", doc.Outcome)
	p.Field("Status", p.Status(string(doc.Status)))
	if st.Running {
		p.Field("Running", st.Stage)
	}
	if doc.Status == domain.StatusFailed && doc.Checkpoint != "" {
		p.Field("Checkpoint", doc.Checkpoint)
	}
	p.Field("Version", doc.Version)
	p.Field("Pages", fmt.Sprintf("%d (%d OCR)", st.Pages, st.OCRPages))
	p.Field("Chunks", st.Chunks)
	p.Field("Embeddings", st.Embeddings)
	p.Field("Updated", doc.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	if f := doc.Failure; f != nil {
		kind := "permanent"
		if f.Transient {
			kind = "transient"
		}
		p.Field("Last error", p.render(p.failure, fmt.Sprintf("[%s, %s at %s] %s", f.Kind, kind, f.Stage, f.Message)))
	}
	return nil
}

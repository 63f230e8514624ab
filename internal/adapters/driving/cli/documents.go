package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage ingested documents",
	Long:    `List and delete documents that have been submitted for ingestion.`,
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentsList,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>...",
	Short: "Delete documents and their contribution to insights",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDocumentsDelete,
}

func init() {
	documentsListCmd.Flags().String("status", "", "only documents with this status")
	documentsListCmd.Flags().String("industry", "", "only documents for this industry")
	documentsListCmd.Flags().Int("limit", 0, "maximum number of documents (0 = all)")
	documentsListCmd.Flags().Bool("json", false, "print as JSON")

	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
	rootCmd.AddCommand(documentsCmd)
}

func runDocumentsList(cmd *cobra.Command, _ []string) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	status, _ := cmd.Flags().GetString("status")
	industry, _ := cmd.Flags().GetString("industry")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := driving.DocumentFilter{
		Status:   domain.Status(status),
		Industry: industry,
		Limit:    limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	docs, err := ingestService.List(cmd.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return p.JSON(docs)
	}
	if len(docs) == 0 {
		p.Muted("No documents found.")
		return nil
	}

	p.Title(fmt.Sprintf("Documents (%d)", len(docs)))
	for i := range docs {
		d := &docs[i]
		p.Line("  %s  %-12s  %-20s  %-7s  %s", d.ID, p.Status(string(d.Status)), d.Industry, d.Outcome, d.Name)
	}
	return nil
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	p := newPrinter(cmd.OutOrStdout())
	var errs []error
	for _, id := range args {
		if err := ingestService.Delete(cmd.Context(), id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				err = fmt.Errorf("document %s not found", id)
			}
			errs = append(errs, err)
			continue
		}
		p.Success("Deleted %s", id)
	}
	return errors.Join(errs...)
}

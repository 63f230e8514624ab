package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Query industry insights",
	Long: `Industry insights aggregate every completed document tagged with an
industry: outcomes, page statistics, frequent terms and entities, and
document clusters.`,
}

var insightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List industries by document count",
	Args:  cobra.NoArgs,
	RunE:  runInsightsList,
}

var insightsShowCmd = &cobra.Command{
	Use:   "show <industry>",
	Short: "Show the insight for an industry",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsightsShow,
}

var insightsClustersCmd = &cobra.Command{
	Use:   "clusters <industry>",
	Short: "Group an industry's documents by similarity",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsightsClusters,
}

var insightsSummariseCmd = &cobra.Command{
	Use:     "summarise <industry>",
	Aliases: []string{"summarize"},
	Short:   "Ask the LLM for themes and recommendations per cluster",
	Args:    cobra.ExactArgs(1),
	RunE:    runInsightsSummarise,
}

var insightsRebuildCmd = &cobra.Command{
	Use:   "rebuild <industry>",
	Short: "Recompute an industry insight from its documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runInsightsRebuild,
}

func init() {
	insightsListCmd.Flags().Int("limit", driving.DefaultIndustryLimit,
		fmt.Sprintf("maximum number of industries (1-%d)", driving.MaxIndustryLimit))
	for _, c := range []*cobra.Command{insightsListCmd, insightsShowCmd, insightsClustersCmd, insightsSummariseCmd} {
		c.Flags().Bool("json", false, "print as JSON")
	}

	insightsCmd.AddCommand(insightsListCmd)
	insightsCmd.AddCommand(insightsShowCmd)
	insightsCmd.AddCommand(insightsClustersCmd)
	insightsCmd.AddCommand(insightsSummariseCmd)
	insightsCmd.AddCommand(insightsRebuildCmd)
	rootCmd.AddCommand(insightsCmd)
}

func requireInsights(cmd *cobra.Command) error {
	if err := requireServices(cmd); err != nil {
		return err
	}
	if insightService == nil {
		return errors.New("insight service not configured")
	}
	return nil
}

// insightError rewrites common errors into actionable messages.
func insightError(industry string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("no documents ingested for industry %q", industry)
	case errors.Is(err, domain.ErrLLMUnavailable):
		return errors.New("no LLM configured; run 'opptrack config set llm.provider <ollama|openai|anthropic>'")
	}
	return err
}

func runInsightsList(cmd *cobra.Command, _ []string) error {
	if err := requireInsights(cmd); err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 1 || limit > driving.MaxIndustryLimit {
		return fmt.Errorf("--limit must be between 1 and %d", driving.MaxIndustryLimit)
	}

	industries, err := insightService.ListIndustries(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list industries: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return p.JSON(industries)
	}
	if len(industries) == 0 {
		p.Muted("No industries yet. Ingest documents with 'opptrack ingest --industry <label> <file.pdf>'.")
		return nil
	}

	p.Title("Industries")
	p.Line("  %-24s %9s %5s %5s %8s", "INDUSTRY", "DOCUMENTS", "WON", "LOST", "WIN RATE")
	for _, ind := range industries {
		p.Line("  %-24s %9d %5d %5d %7.1f%%", ind.Industry, ind.Documents, ind.Won, ind.Lost, ind.WinRate*100)
	}
	return nil
}

func runInsightsShow(cmd *cobra.Command, args []string) error {
	if err := requireInsights(cmd); err != nil {
		return err
	}

	ins, err := insightService.GetInsight(cmd.Context(), args[0])
	if err != nil {
		return insightError(args[0], err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return p.JSON(ins)
	}

	p.Title(ins.Industry)
	p.Field("Documents", ins.Documents)
	p.Field("Won / Lost", fmt.Sprintf("%d / %d (win rate %.1f%%)", ins.Won, ins.Lost, ins.WinRate*100))
	p.Field("Pages", fmt.Sprintf("%d (%d OCR, %d empty)", ins.Pages, ins.OCRPages, ins.EmptyPages))
	p.Field("Chunks", ins.Chunks)
	if ins.Dimensions > 0 {
		p.Field("Dimensions", ins.Dimensions)
	}
	if len(ins.TopTerms) > 0 {
		p.Field("Top terms", formatCounts(ins.TopTerms))
	}
	if len(ins.TopEntities) > 0 {
		p.Field("Top entities", formatCounts(ins.TopEntities))
	}
	if !ins.UpdatedAt.IsZero() {
		p.Field("Updated", ins.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func formatCounts(counts []domain.Count) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s (%d)", c.Key, c.Count)
	}
	return strings.Join(parts, ", ")
}

func runInsightsClusters(cmd *cobra.Command, args []string) error {
	if err := requireInsights(cmd); err != nil {
		return err
	}

	report, err := insightService.Clusters(cmd.Context(), args[0])
	if err != nil {
		return insightError(args[0], err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return p.JSON(report)
	}
	if len(report.Clusters) == 0 {
		p.Muted("No embedded documents for %q yet.", report.Industry)
		return nil
	}

	p.Title(fmt.Sprintf("%s: %d clusters", report.Industry, len(report.Clusters)))
	for _, c := range report.Clusters {
		p.Line("")
		p.Line("  cluster %d  size=%d won=%d lost=%d", c.ID, c.Size, c.Won, c.Lost)
		p.Muted("    documents: %s", strings.Join(c.DocumentIDs, ", "))
		if c.Summary != "" {
			p.Line("    %s", truncate(c.Summary, 240))
		}
	}
	return nil
}

func runInsightsSummarise(cmd *cobra.Command, args []string) error {
	if err := requireInsights(cmd); err != nil {
		return err
	}

	out, err := insightService.Summarise(cmd.Context(), args[0])
	if err != nil {
		return insightError(args[0], err)
	}

	p := newPrinter(cmd.OutOrStdout())
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return p.JSON(out)
	}

	p.Title(out.Industry)
	for _, c := range out.Clusters {
		p.Line("")
		p.Line("  cluster %d  size=%d won=%d lost=%d", c.ID, c.Size, c.Won, c.Lost)
		printList(p, "Themes", c.Themes)
		printList(p, "Action items", c.ActionItems)
		printList(p, "Competitors", c.Competitors)
		printList(p, "Win reasons", c.WinReasons)
		printList(p, "Loss reasons", c.LossReasons)
	}
	if out.Overall.Summary != "" {
		p.Line("")
		p.Field("Overall", out.Overall.Summary)
		printList(p, "Recommendations", out.Overall.Recommendations)
	}
	return nil
}

func printList(p *printer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	p.Field(label, "")
	for _, item := range items {
		p.Line("    - %s", item)
	}
}

func runInsightsRebuild(cmd *cobra.Command, args []string) error {
	if err := requireInsights(cmd); err != nil {
		return err
	}

	ins, err := insightService.Rebuild(cmd.Context(), args[0])
	if err != nil {
		return insightError(args[0], err)
	}

	newPrinter(cmd.OutOrStdout()).Success("Rebuilt %q from %d documents", ins.Industry, ins.Documents)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

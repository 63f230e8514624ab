// Package insight provides the industry insight view for the TUI.
package insight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// topN is how many terms and entities are listed.
const topN = 10

var errNoService = errors.New("insight service not available")

// View shows one industry's aggregate, clusters and LLM summary.
type View struct {
	ctx      context.Context
	styles   *styles.Styles
	keys     *keymap.KeyMap
	insights driving.InsightService

	industry    string
	insight     *driving.InsightSummary
	clusters    *driving.ClusterReport
	summary     *driving.ClusterInsights
	clustersErr error
	summaryErr  error
	err         error

	loading     bool
	summarising bool
	rebuilding  bool
	scroll      int
	width       int
	height      int
}

// NewView creates a new insight view.
func NewView(s *styles.Styles, km *keymap.KeyMap, insights driving.InsightService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		ctx:      context.Background(),
		styles:   s,
		keys:     km,
		insights: insights,
	}
}

// WithContext sets the context used for service calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// SetIndustry switches the view to industry and loads it.
func (v *View) SetIndustry(industry string) tea.Cmd {
	v.industry = industry
	v.insight, v.clusters, v.summary = nil, nil, nil
	v.err, v.clustersErr, v.summaryErr = nil, nil, nil
	v.scroll = 0
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	industry := v.industry
	return func() tea.Msg {
		if v.insights == nil {
			return messages.InsightLoaded{Industry: industry, Err: errNoService}
		}
		ins, err := v.insights.GetInsight(v.ctx, industry)
		if err != nil {
			return messages.InsightLoaded{Industry: industry, Err: err}
		}
		clusters, cerr := v.insights.Clusters(v.ctx, industry)
		return messages.InsightLoaded{Industry: industry, Insight: ins, Clusters: clusters, ClustersErr: cerr}
	}
}

func (v *View) summarise() tea.Cmd {
	industry := v.industry
	return func() tea.Msg {
		if v.insights == nil {
			return messages.SummaryLoaded{Industry: industry, Err: errNoService}
		}
		summary, err := v.insights.Summarise(v.ctx, industry)
		return messages.SummaryLoaded{Industry: industry, Summary: summary, Err: err}
	}
}

func (v *View) rebuild() tea.Cmd {
	industry := v.industry
	return func() tea.Msg {
		if v.insights == nil {
			return messages.InsightRebuilt{Industry: industry, Err: errNoService}
		}
		ins, err := v.insights.Rebuild(v.ctx, industry)
		return messages.InsightRebuilt{Industry: industry, Insight: ins, Err: err}
	}
}

// Update handles messages for the insight view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.InsightLoaded:
		if msg.Industry != v.industry {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		v.insight = msg.Insight
		v.clusters = msg.Clusters
		v.clustersErr = msg.ClustersErr
		return v, nil

	case messages.SummaryLoaded:
		if msg.Industry != v.industry {
			return v, nil
		}
		v.summarising = false
		v.summary = msg.Summary
		v.summaryErr = msg.Err
		return v, nil

	case messages.InsightRebuilt:
		if msg.Industry != v.industry {
			return v, nil
		}
		v.rebuilding = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		// clusters depend on the rebuilt contributions
		v.insight = msg.Insight
		v.loading = true
		return v, v.load()
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewIndustries}
		}
	case key.Matches(msg, v.keys.Up):
		if v.scroll > 0 {
			v.scroll--
		}
	case key.Matches(msg, v.keys.Down):
		if v.scroll < v.maxScroll() {
			v.scroll++
		}
	case key.Matches(msg, v.keys.Documents):
		industry := v.industry
		return v, func() tea.Msg {
			return messages.DocumentsRequested{Industry: industry}
		}
	case key.Matches(msg, v.keys.Summarise):
		if v.summarising || v.insight == nil {
			return v, nil
		}
		v.summarising = true
		v.summaryErr = nil
		return v, v.summarise()
	case key.Matches(msg, v.keys.Rebuild):
		if v.rebuilding {
			return v, nil
		}
		v.rebuilding = true
		return v, v.rebuild()
	case key.Matches(msg, v.keys.Reload):
		v.loading = true
		return v, v.load()
	}
	return v, nil
}

// View renders the insight view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(v.industry))
	b.WriteString("\n\n")

	switch {
	case v.loading && v.insight == nil:
		b.WriteString(v.styles.Muted.Render("Loading insight..."))
		b.WriteString("\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n")
	default:
		lines := v.contentLines()
		start := min(v.scroll, len(lines))
		end := len(lines)
		if rows := v.visibleRows(); rows > 0 {
			end = min(start+rows, len(lines))
		}
		for _, line := range lines[start:end] {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[d] documents  [s] summarise  [b] rebuild  [r] reload  [esc] back"))
	return b.String()
}

func (v *View) visibleRows() int {
	// title, blank, blank, help
	if v.height <= 4 {
		return 0
	}
	return v.height - 4
}

func (v *View) maxScroll() int {
	rows := v.visibleRows()
	if rows == 0 {
		return 0
	}
	return max(len(v.contentLines())-rows, 0)
}

func (v *View) contentLines() []string {
	var lines []string
	add := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}
	field := func(label, value string) {
		lines = append(lines, v.styles.Muted.Render(fmt.Sprintf("%-12s", label))+" "+v.styles.Normal.Render(value))
	}
	section := func(title string) {
		lines = append(lines, "", v.styles.Subtitle.Render(title))
	}

	if ins := v.insight; ins != nil {
		field("Documents", fmt.Sprintf("%d (%d won, %d lost)", ins.Documents, ins.Won, ins.Lost))
		lines = append(lines, v.styles.Muted.Render(fmt.Sprintf("%-12s", "Win rate"))+" "+v.styles.WinRate(ins.WinRate, ins.Won+ins.Lost))
		field("Pages", fmt.Sprintf("%d (%d OCR, %d empty)", ins.Pages, ins.OCRPages, ins.EmptyPages))
		field("Chunks", fmt.Sprintf("%d", ins.Chunks))
		if ins.Dimensions > 0 {
			field("Dimensions", fmt.Sprintf("%d", ins.Dimensions))
		}
		if !ins.UpdatedAt.IsZero() {
			field("Updated", ins.UpdatedAt.Format("2006-01-02 15:04"))
		}

		if len(ins.TopTerms) > 0 {
			section("Top terms")
			add("  %s", formatCounts(ins.TopTerms, topN))
		}
		if len(ins.TopEntities) > 0 {
			section("Top entities")
			add("  %s", formatCounts(ins.TopEntities, topN))
		}
	}

	section("Clusters")
	switch {
	case v.clustersErr != nil:
		lines = append(lines, v.styles.Warning.Render("  "+v.clustersErr.Error()))
	case v.clusters == nil || len(v.clusters.Clusters) == 0:
		lines = append(lines, v.styles.Muted.Render("  No clusters yet"))
	default:
		for _, c := range v.clusters.Clusters {
			add("  #%d  %d docs  %s / %s", c.ID, c.Size,
				v.styles.Outcome(domain.OutcomeWon).Render(fmt.Sprintf("%d won", c.Won)),
				v.styles.Outcome(domain.OutcomeLost).Render(fmt.Sprintf("%d lost", c.Lost)))
			if c.Summary != "" {
				lines = append(lines, v.styles.Muted.Render("      "+c.Summary))
			}
		}
	}

	section("Summary")
	switch {
	case v.summarising:
		lines = append(lines, v.styles.Muted.Render("  Summarising..."))
	case errors.Is(v.summaryErr, domain.ErrLLMUnavailable):
		lines = append(lines, v.styles.Warning.Render("  No LLM configured; set llm.provider to enable summaries"))
	case v.summaryErr != nil:
		lines = append(lines, v.styles.Error.Render("  "+v.summaryErr.Error()))
	case v.summary == nil:
		lines = append(lines, v.styles.Muted.Render("  Press s to summarise the clusters"))
	default:
		lines = append(lines, v.summaryLines()...)
	}

	if v.rebuilding {
		lines = append(lines, "", v.styles.Muted.Render("Rebuilding..."))
	}
	return lines
}

func (v *View) summaryLines() []string {
	var lines []string
	list := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		lines = append(lines, v.styles.Muted.Render("    "+label+": ")+strings.Join(items, "; "))
	}

	if s := v.summary.Overall.Summary; s != "" {
		lines = append(lines, "  "+s)
	}
	for _, r := range v.summary.Overall.Recommendations {
		lines = append(lines, "  • "+r)
	}
	for _, c := range v.summary.Clusters {
		lines = append(lines, v.styles.Normal.Render(fmt.Sprintf("  Cluster #%d (%d docs)", c.ID, c.Size)))
		list("Themes", c.Themes)
		list("Win reasons", c.WinReasons)
		list("Loss reasons", c.LossReasons)
		list("Competitors", c.Competitors)
		list("Actions", c.ActionItems)
	}
	return lines
}

func formatCounts(counts []domain.Count, n int) string {
	if len(counts) > n {
		counts = counts[:n]
	}
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s (%d)", c.Key, c.Count)
	}
	return strings.Join(parts, ", ")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
}

// Industry returns the industry being shown.
func (v *View) Industry() string {
	return v.industry
}

// Insight returns the loaded insight.
func (v *View) Insight() *driving.InsightSummary {
	return v.insight
}

// Summary returns the loaded LLM summary.
func (v *View) Summary() *driving.ClusterInsights {
	return v.summary
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}

// Loading reports whether a service call is in flight.
func (v *View) Loading() bool {
	return v.loading || v.summarising || v.rebuilding
}

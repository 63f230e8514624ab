// Package industries provides the industry list view for the TUI.
package industries

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
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// View lists industries ordered by document count.
type View struct {
	ctx      context.Context
	styles   *styles.Styles
	keys     *keymap.KeyMap
	insights driving.InsightService

	industries []driving.IndustrySummary
	selected   int
	offset     int
	width      int
	height     int
	loading    bool
	err        error
}

// NewView creates a new industry list view.
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

// Init loads the industries.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	return func() tea.Msg {
		if v.insights == nil {
			return messages.IndustriesLoaded{Err: errors.New("insight service not available")}
		}
		list, err := v.insights.ListIndustries(v.ctx, driving.DefaultIndustryLimit)
		return messages.IndustriesLoaded{Industries: list, Err: err}
	}
}

// Update handles messages for the industry list.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.IndustriesLoaded:
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.industries = msg.Industries
			if v.selected >= len(v.industries) {
				v.selected = max(len(v.industries)-1, 0)
			}
			v.clampOffset()
		}
		return v, nil

	case messages.InsightRebuilt:
		// counts may have moved
		if msg.Err == nil {
			return v, v.load()
		}
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Up):
		if v.selected > 0 {
			v.selected--
			v.clampOffset()
		}
	case key.Matches(msg, v.keys.Down):
		if v.selected < len(v.industries)-1 {
			v.selected++
			v.clampOffset()
		}
	case key.Matches(msg, v.keys.Select):
		if industry, ok := v.Selected(); ok {
			return v, func() tea.Msg {
				return messages.IndustrySelected{Industry: industry.Industry}
			}
		}
	case key.Matches(msg, v.keys.Reload):
		v.loading = true
		return v, v.load()
	}
	return v, nil
}

// visibleRows is the number of table rows that fit the view.
func (v *View) visibleRows() int {
	// title, blank, header, blank, help
	rows := v.height - 5
	if rows < 1 {
		return len(v.industries)
	}
	return rows
}

func (v *View) clampOffset() {
	rows := v.visibleRows()
	if v.selected < v.offset {
		v.offset = v.selected
	}
	if v.selected >= v.offset+rows {
		v.offset = v.selected - rows + 1
	}
}

// View renders the industry list.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Industries"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading industries..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
	case len(v.industries) == 0:
		b.WriteString(v.styles.Muted.Render("No industries yet. Ingest a document with --industry to start one."))
	default:
		b.WriteString(v.styles.Header.Render(fmt.Sprintf("  %-28s %6s %5s %5s %5s", "INDUSTRY", "DOCS", "WON", "LOST", "WIN")))
		b.WriteString("\n")
		end := min(v.offset+v.visibleRows(), len(v.industries))
		for i := v.offset; i < end; i++ {
			b.WriteString(v.renderRow(i))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[enter] open  [r] reload  [?] help  [q] quit"))
	return b.String()
}

func (v *View) renderRow(i int) string {
	ind := v.industries[i]
	line := fmt.Sprintf("%-28s %6d %5d %5d ", truncate(ind.Industry, 28), ind.Documents, ind.Won, ind.Lost)
	rate := v.styles.WinRate(ind.WinRate, ind.Won+ind.Lost)
	if i == v.selected {
		return v.styles.Selected.Render("> "+line) + rate
	}
	return v.styles.Normal.Render("  "+line) + rate
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.clampOffset()
}

// Selected returns the highlighted industry.
func (v *View) Selected() (driving.IndustrySummary, bool) {
	if v.selected < 0 || v.selected >= len(v.industries) {
		return driving.IndustrySummary{}, false
	}
	return v.industries[v.selected], true
}

// Industries returns the loaded industries.
func (v *View) Industries() []driving.IndustrySummary {
	return v.industries
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}

// Loading reports whether a load is in flight.
func (v *View) Loading() bool {
	return v.loading
}

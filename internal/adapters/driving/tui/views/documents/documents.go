// Package documents provides the document list view for the TUI.
package documents

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

var errNoService = errors.New("ingest service not available")

// View lists the documents tagged with one industry.
type View struct {
	ctx    context.Context
	styles *styles.Styles
	keys   *keymap.KeyMap
	ingest driving.IngestService

	industry  string
	documents []domain.Document
	selected  int
	offset    int
	width     int
	height    int
	loading   bool
	err       error
}

// NewView creates a new documents view.
func NewView(s *styles.Styles, km *keymap.KeyMap, ingest driving.IngestService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		ctx:    context.Background(),
		styles: s,
		keys:   km,
		ingest: ingest,
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

// SetIndustry sets the industry and loads its documents.
func (v *View) SetIndustry(industry string) tea.Cmd {
	if industry != v.industry {
		v.documents = nil
		v.selected = 0
		v.offset = 0
	}
	v.industry = industry
	v.err = nil
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	industry := v.industry
	return func() tea.Msg {
		if v.ingest == nil {
			return messages.DocumentsLoaded{Industry: industry, Err: errNoService}
		}
		docs, err := v.ingest.List(v.ctx, driving.DocumentFilter{Industry: industry})
		return messages.DocumentsLoaded{Industry: industry, Documents: docs, Err: err}
	}
}

func (v *View) deleteDocument(id string) tea.Cmd {
	return func() tea.Msg {
		if v.ingest == nil {
			return messages.DocumentDeleted{DocumentID: id, Err: errNoService}
		}
		return messages.DocumentDeleted{DocumentID: id, Err: v.ingest.Delete(v.ctx, id)}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		if msg.Industry != v.industry {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil {
			v.documents = msg.Documents
			if v.selected >= len(v.documents) {
				v.selected = max(len(v.documents)-1, 0)
			}
			v.clampOffset()
		}
		return v, nil

	case messages.DocumentDeleted:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.loading = true
		return v, v.load()
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewInsight}
		}
	case key.Matches(msg, v.keys.Up):
		if v.selected > 0 {
			v.selected--
			v.clampOffset()
		}
	case key.Matches(msg, v.keys.Down):
		if v.selected < len(v.documents)-1 {
			v.selected++
			v.clampOffset()
		}
	case key.Matches(msg, v.keys.Select):
		if doc, ok := v.Selected(); ok {
			return v, func() tea.Msg {
				return messages.DocumentSelected{DocumentID: doc.ID}
			}
		}
	case key.Matches(msg, v.keys.Delete):
		if doc, ok := v.Selected(); ok {
			return v, v.deleteDocument(doc.ID)
		}
	case key.Matches(msg, v.keys.Reload):
		v.loading = true
		return v, v.load()
	}
	return v, nil
}

func (v *View) visibleRows() int {
	// title, blank, header, blank, help
	rows := v.height - 5
	if rows < 1 {
		return len(v.documents)
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

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents: %s", v.industry)))
	b.WriteString("\n\n")

	switch {
	case v.loading && len(v.documents) == 0:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
		b.WriteString("\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n")
	case len(v.documents) == 0:
		b.WriteString(v.styles.Muted.Render("No documents in this industry"))
		b.WriteString("\n")
	default:
		b.WriteString(v.styles.Header.Render(fmt.Sprintf("  %-36s %-9s %-8s %5s", "NAME", "STATUS", "OUTCOME", "PAGES")))
		b.WriteString("\n")
		end := min(v.offset+v.visibleRows(), len(v.documents))
		for i := v.offset; i < end; i++ {
			b.WriteString(v.renderRow(i))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[enter] status  [x] delete  [r] reload  [esc] back"))
	return b.String()
}

func (v *View) renderRow(i int) string {
	doc := v.documents[i]
	name := doc.Name
	if name == "" {
		name = doc.ID
	}

	prefix := "  "
	nameStyle := v.styles.Normal
	if i == v.selected {
		prefix = "> "
		nameStyle = v.styles.Selected
	}
	outcome := doc.Outcome
	if outcome == "" {
		outcome = domain.OutcomeUnknown
	}

	return nameStyle.Render(fmt.Sprintf("%s%-36s", prefix, truncate(name, 36))) + " " +
		v.styles.Status(doc.Status).Render(fmt.Sprintf("%-9s", doc.Status)) + " " +
		v.styles.Outcome(outcome).Render(fmt.Sprintf("%-8s", outcome)) + " " +
		v.styles.Muted.Render(fmt.Sprintf("%5d", doc.PageCount))
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

// Selected returns the highlighted document.
func (v *View) Selected() (domain.Document, bool) {
	if v.selected < 0 || v.selected >= len(v.documents) {
		return domain.Document{}, false
	}
	return v.documents[v.selected], true
}

// Industry returns the industry being listed.
func (v *View) Industry() string {
	return v.industry
}

// Documents returns the loaded documents.
func (v *View) Documents() []domain.Document {
	return v.documents
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// Loading reports whether a load is in flight.
func (v *View) Loading() bool {
	return v.loading
}

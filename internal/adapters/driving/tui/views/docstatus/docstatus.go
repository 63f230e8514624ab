// Package docstatus provides the document ingestion status view for the TUI.
package docstatus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
)

// View shows the persisted and live state of one document.
type View struct {
	ctx    context.Context
	styles *styles.Styles
	keys   *keymap.KeyMap
	ingest driving.IngestService

	documentID string
	status     *driving.IngestStatus
	lines      []string
	scroll     int
	width      int
	height     int
	loading    bool
	err        error
}

// NewView creates a new document status view.
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

// SetDocument switches the view to a document and loads its status.
func (v *View) SetDocument(id string) tea.Cmd {
	v.documentID = id
	v.status = nil
	v.lines = nil
	v.scroll = 0
	v.err = nil
	v.loading = true
	return v.load()
}

func (v *View) load() tea.Cmd {
	id := v.documentID
	return func() tea.Msg {
		if v.ingest == nil {
			return messages.DocumentStatusLoaded{DocumentID: id, Err: errors.New("ingest service not available")}
		}
		st, err := v.ingest.Status(v.ctx, id)
		return messages.DocumentStatusLoaded{DocumentID: id, Status: st, Err: err}
	}
}

// Update handles messages for the status view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DocumentStatusLoaded:
		if msg.DocumentID != v.documentID {
			return v, nil
		}
		v.loading = false
		v.err = msg.Err
		if msg.Err == nil && msg.Status != nil {
			v.status = msg.Status
			v.lines = v.buildLines()
			v.scroll = min(v.scroll, v.maxScroll())
		}
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewDocuments}
		}
	case key.Matches(msg, v.keys.Up):
		if v.scroll > 0 {
			v.scroll--
		}
	case key.Matches(msg, v.keys.Down):
		if v.scroll < v.maxScroll() {
			v.scroll++
		}
	case key.Matches(msg, v.keys.Reload):
		if v.documentID != "" {
			v.loading = true
			return v, v.load()
		}
	}
	return v, nil
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
	return max(len(v.lines)-rows, 0)
}

func (v *View) buildLines() []string {
	st := v.status
	doc := st.Document
	var lines []string
	field := func(label, value string) {
		lines = append(lines, v.styles.Muted.Render(fmt.Sprintf("%-12s", label))+" "+value)
	}

	field("ID", doc.ID)
	field("Name", doc.Name)
	field("Industry", doc.Industry)
	field("Outcome", v.styles.Outcome(doc.Outcome).Render(string(doc.Outcome)))
	field("Status", v.styles.Status(doc.Status).Render(string(doc.Status)))
	if doc.Checkpoint != "" && doc.Checkpoint != doc.Status {
		field("Checkpoint", string(doc.Checkpoint))
	}
	if st.Running {
		field("Running", v.styles.Warning.Render(fmt.Sprintf("stage %s", st.Stage)))
	}
	field("Version", fmt.Sprintf("%d", doc.Version))
	field("Pages", fmt.Sprintf("%d stored of %d (%d OCR)", st.Pages, doc.PageCount, st.OCRPages))
	field("Chunks", fmt.Sprintf("%d", st.Chunks))
	field("Embeddings", fmt.Sprintf("%d", st.Embeddings))
	if doc.ContentHash != "" {
		field("SHA-256", doc.ContentHash)
	}
	field("Created", formatTime(doc.CreatedAt))
	field("Updated", formatTime(doc.UpdatedAt))

	if f := doc.Failure; f != nil {
		lines = append(lines, "", v.styles.Error.Render("Failure"))
		field("Stage", string(f.Stage))
		field("Kind", string(f.Kind))
		transient := "no"
		if f.Transient {
			transient = "yes, will be retried by resume"
		}
		field("Transient", transient)
		field("At", formatTime(f.At))
		for _, line := range strings.Split(f.Message, "\n") {
			lines = append(lines, v.styles.Error.Render("  "+line))
		}
	}
	return lines
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// View renders the status view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Document Status"))
	b.WriteString("\n\n")

	switch {
	case v.loading && v.status == nil:
		b.WriteString(v.styles.Muted.Render("Loading status..."))
		b.WriteString("\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n")
	case v.status == nil:
		b.WriteString(v.styles.Muted.Render("No document selected"))
		b.WriteString("\n")
	default:
		end := len(v.lines)
		if rows := v.visibleRows(); rows > 0 {
			end = min(v.scroll+rows, len(v.lines))
		}
		for _, line := range v.lines[v.scroll:end] {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.styles.Help.Render("[↑/↓] scroll  [r] reload  [esc] back"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.scroll = min(v.scroll, v.maxScroll())
}

// DocumentID returns the document being shown.
func (v *View) DocumentID() string {
	return v.documentID
}

// Status returns the loaded status.
func (v *View) Status() *driving.IngestStatus {
	return v.status
}

// Err returns the last load error.
func (v *View) Err() error {
	return v.err
}

// Loading reports whether a load is in flight.
func (v *View) Loading() bool {
	return v.loading
}

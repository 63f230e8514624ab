package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/styles"
)

// printer writes command output, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool

	title   lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w, styled: isTerminal(w)}
	p.title = lipgloss.NewStyle().Bold(true).Foreground(styles.Accent)
	p.label = lipgloss.NewStyle().Bold(true)
	p.muted = lipgloss.NewStyle().Foreground(styles.Dim)
	p.success = lipgloss.NewStyle().Foreground(styles.Good)
	p.warning = lipgloss.NewStyle().Foreground(styles.Caution)
	p.failure = lipgloss.NewStyle().Foreground(styles.Bad)
	return p
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

// Title prints a heading.
func (p *printer) Title(text string) {
	fmt.Fprintln(p.w, p.render(p.title, text))
}

// Field prints an indented "label: value" line.
func (p *printer) Field(label string, value any) {
	fmt.Fprintf(p.w, "  %s %v\n", p.render(p.label, label+":"), value)
}

// Line prints a plain formatted line.
func (p *printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Muted prints a de-emphasised line.
func (p *printer) Muted(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.muted, fmt.Sprintf(format, args...)))
}

// Success prints a confirmation line.
func (p *printer) Success(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.success, fmt.Sprintf(format, args...)))
}

// Warning prints a caution line.
func (p *printer) Warning(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.warning, fmt.Sprintf(format, args...)))
}

// Failure prints an error line.
func (p *printer) Failure(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.failure, fmt.Sprintf(format, args...)))
}

// Status renders a document status in its colour.
func (p *printer) Status(status string) string {
	switch status {
	case "done":
		return p.render(p.success, status)
	case "failed":
		return p.render(p.failure, status)
	case "pending":
		return p.render(p.muted, status)
	}
	return p.render(p.warning, status)
}

// JSON prints v indented.
func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

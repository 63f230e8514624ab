// Package styles holds the colour palette shared by the TUI and the CLI
// printer, and the lipgloss styles the TUI views draw with.
package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// Palette.
var (
	Accent    = lipgloss.Color("#7C3AED")
	AccentAlt = lipgloss.Color("#06B6D4")
	Text      = lipgloss.Color("#CDD6F4")
	Dim       = lipgloss.Color("#6C7086")
	Good      = lipgloss.Color("#A6E3A1")
	Caution   = lipgloss.Color("#F9E2AF")
	Bad       = lipgloss.Color("#F38BA8")
	Bar       = lipgloss.Color("#181825")
)

// Styles are the named styles the views use.
type Styles struct {
	Title, Subtitle, Header lipgloss.Style
	Normal, Muted, Help     lipgloss.Style
	Selected, StatusBar     lipgloss.Style
	Success, Warning, Error lipgloss.Style
}

// DefaultStyles builds the styles from the palette.
func DefaultStyles() *Styles {
	fg := func(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	return &Styles{
		Title:     fg(Accent).Bold(true),
		Subtitle:  fg(AccentAlt).Bold(true),
		Header:    fg(Dim).Bold(true).Underline(true),
		Normal:    fg(Text),
		Muted:     fg(Dim),
		Help:      fg(Dim),
		Selected:  fg(Text).Background(Accent).Bold(true),
		StatusBar: fg(Dim).Background(Bar).Padding(0, 1),
		Success:   fg(Good),
		Warning:   fg(Caution),
		Error:     fg(Bad),
	}
}

// Status colours a document status: done is good, failed is bad,
// pending is dim and anything in flight is a warning.
func (s *Styles) Status(st domain.Status) lipgloss.Style {
	switch st {
	case domain.StatusDone:
		return s.Success
	case domain.StatusFailed:
		return s.Error
	case domain.StatusPending:
		return s.Muted
	}
	return s.Warning
}

// Outcome colours an opportunity outcome.
func (s *Styles) Outcome(o domain.Outcome) lipgloss.Style {
	switch o {
	case domain.OutcomeWon:
		return s.Success
	case domain.OutcomeLost:
		return s.Error
	}
	return s.Muted
}

// WinRate renders rate as a right-aligned percentage coloured by band.
// With no decided documents it renders a dash.
func (s *Styles) WinRate(rate float64, decided int64) string {
	if decided == 0 {
		return s.Muted.Render("  -")
	}
	style := s.Error
	if rate >= 0.5 {
		style = s.Success
	} else if rate >= 0.25 {
		style = s.Warning
	}
	return style.Width(4).Align(lipgloss.Right).Render(fmt.Sprintf("%.0f%%", rate*100))
}

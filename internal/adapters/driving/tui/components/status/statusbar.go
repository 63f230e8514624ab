// Package status is the one-line bar at the bottom of the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/styles"
)

// State is what the bar reports on its left side.
type State string

const (
	StateReady   State = "ready"
	StateLoading State = "loading"
	StateError   State = "error"
	StateHelp    State = "help"
)

// Bar shows the state with an optional message on the left and key
// hints on the right.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	help    help.Model
	state   State
	message string
	hints   []key.Binding
	width   int
}

// NewBar creates a bar. Nil arguments use the defaults.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	h := help.New()
	h.ShortSeparator = " | "
	h.Styles.ShortKey = s.Muted
	h.Styles.ShortDesc = s.Muted
	h.Styles.ShortSeparator = s.Muted

	return &Bar{styles: s, keymap: km, help: h, state: StateReady, width: 80}
}

// View renders the bar at its full width.
func (b *Bar) View() string {
	left, right := b.left(), b.right()
	gap := max(1, b.width-lipgloss.Width(left)-lipgloss.Width(right))
	return b.styles.StatusBar.Width(b.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (b *Bar) left() string {
	msg := b.message
	switch b.state {
	case StateLoading:
		if msg == "" {
			msg = "Loading"
		}
		return b.styles.Muted.Render(msg + "...")
	case StateError:
		if msg == "" {
			return b.styles.Error.Render("Error")
		}
		return b.styles.Error.Render("Error: " + msg)
	case StateHelp:
		return b.styles.Normal.Render("Help")
	}
	if msg == "" {
		return b.styles.Muted.Render("Ready")
	}
	return b.styles.Normal.Render(msg)
}

func (b *Bar) right() string {
	bindings := b.hints
	if len(bindings) == 0 {
		bindings = b.keymap.ShortHelp()
	}
	return b.help.ShortHelpView(bindings)
}

// SetState changes the state and clears the message.
func (b *Bar) SetState(state State) {
	b.state = state
	b.message = ""
}

func (b *Bar) State() State { return b.state }

// SetMessage sets the text shown with the state.
func (b *Bar) SetMessage(msg string) { b.message = msg }

func (b *Bar) Message() string { return b.message }

// SetError shows err, or returns to ready when err is nil.
func (b *Bar) SetError(err error) {
	if err == nil {
		b.SetState(StateReady)
		return
	}
	b.state = StateError
	b.message = err.Error()
}

// SetCount shows "n noun" in the ready state, pluralising noun.
func (b *Bar) SetCount(n int, noun string) {
	b.state = StateReady
	b.message = fmt.Sprintf("%d %s", n, plural(n, noun))
}

// SetHints replaces the key hints. Nil restores the keymap's defaults.
func (b *Bar) SetHints(bindings []key.Binding) { b.hints = bindings }

func (b *Bar) SetWidth(width int) { b.width = width }

func (b *Bar) Width() int { return b.width }

func plural(n int, noun string) string {
	switch {
	case n == 1:
		return noun
	case strings.HasSuffix(noun, "y"):
		return strings.TrimSuffix(noun, "y") + "ies"
	default:
		return noun + "s"
	}
}

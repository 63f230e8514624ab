// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	// Quit exits the application.
	Quit key.Binding

	// Help toggles the help view.
	Help key.Binding

	// Back returns to the previous view.
	Back key.Binding

	// Up navigates up in a list.
	Up key.Binding

	// Down navigates down in a list.
	Down key.Binding

	// Select opens the highlighted item.
	Select key.Binding

	// Reload fetches the current view again.
	Reload key.Binding

	// Documents lists the documents of the selected industry.
	Documents key.Binding

	// Summarise asks the LLM for cluster insights.
	Summarise key.Binding

	// Rebuild recomputes the selected industry's insight.
	Rebuild key.Binding

	// Delete removes the highlighted document.
	Delete key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Documents: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "documents"),
		),
		Summarise: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "summarise"),
		),
		Rebuild: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "rebuild"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "delete"),
		),
	}
}

// ShortHelp returns a short list of keybindings for the help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.Help}
}

// IndustriesHelp returns keybindings for the industry list.
func (k *KeyMap) IndustriesHelp() []key.Binding {
	return []key.Binding{k.Select, k.Reload, k.Help, k.Quit}
}

// InsightHelp returns keybindings for the insight view.
func (k *KeyMap) InsightHelp() []key.Binding {
	return []key.Binding{k.Documents, k.Summarise, k.Rebuild, k.Back}
}

// DocumentsHelp returns keybindings for the document list.
func (k *KeyMap) DocumentsHelp() []key.Binding {
	return []key.Binding{k.Select, k.Delete, k.Reload, k.Back}
}

// StatusHelp returns keybindings for the document status view.
func (k *KeyMap) StatusHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Reload, k.Back}
}

// FullHelp returns the full list of keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back},
		{k.Documents, k.Summarise, k.Rebuild},
		{k.Delete, k.Reload},
		{k.Help, k.Quit},
	}
}

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/views/docstatus"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/views/industries"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/views/insight"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keys   *keymap.KeyMap
	help   help.Model
	bar    *status.Bar

	industriesView *industries.View
	insightView    *insight.View
	documentsView  *documents.View
	docStatusView  *docstatus.View

	// currentView is the active view; previousView is restored when help closes.
	currentView  messages.ViewType
	previousView messages.ViewType

	err    error
	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	a := &App{
		ports:          ports,
		ctx:            context.Background(),
		styles:         s,
		keys:           km,
		help:           help.New(),
		bar:            status.NewBar(s, km),
		industriesView: industries.NewView(s, km, ports.Insights),
		insightView:    insight.NewView(s, km, ports.Insights),
		documentsView:  documents.NewView(s, km, ports.Ingest),
		docStatusView:  docstatus.NewView(s, km, ports.Ingest),
		currentView:    messages.ViewIndustries,
	}
	a.bar.SetHints(km.IndustriesHelp())
	return a, nil
}

// WithContext sets the context for the app and its service calls.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.industriesView.WithContext(ctx)
	a.insightView.WithContext(ctx)
	a.documentsView.WithContext(ctx)
	a.docStatusView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.bar.SetState(status.StateLoading)
	return tea.Batch(
		tea.SetWindowTitle("opptrack - Industry Insights"),
		a.industriesView.Init(),
	)
}

// Update implements tea.Model.
//
//nolint:gocyclo // central message router
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.IndustriesLoaded:
		a.industriesView, cmd = a.industriesView.Update(msg)
		if a.currentView != messages.ViewIndustries {
			return a, cmd
		}
		if msg.Err != nil {
			a.setErr(msg.Err)
		} else {
			a.bar.SetCount(len(msg.Industries), "industry")
		}
		return a, cmd

	case messages.IndustrySelected:
		a.switchTo(messages.ViewInsight)
		a.bar.SetState(status.StateLoading)
		return a, a.insightView.SetIndustry(msg.Industry)

	case messages.InsightLoaded, messages.SummaryLoaded:
		a.insightView, cmd = a.insightView.Update(msg)
		a.syncBar(a.insightView.Err(), a.insightView.Loading())
		return a, cmd

	case messages.InsightRebuilt:
		a.insightView, cmd = a.insightView.Update(msg)
		var reload tea.Cmd
		a.industriesView, reload = a.industriesView.Update(msg)
		a.syncBar(a.insightView.Err(), a.insightView.Loading())
		return a, tea.Batch(cmd, reload)

	case messages.DocumentsRequested:
		a.switchTo(messages.ViewDocuments)
		a.bar.SetState(status.StateLoading)
		return a, a.documentsView.SetIndustry(msg.Industry)

	case messages.DocumentsLoaded, messages.DocumentDeleted:
		a.documentsView, cmd = a.documentsView.Update(msg)
		if err := a.documentsView.Err(); err != nil {
			a.setErr(err)
		} else if !a.documentsView.Loading() {
			a.bar.SetCount(len(a.documentsView.Documents()), "document")
		}
		return a, cmd

	case messages.DocumentSelected:
		a.switchTo(messages.ViewDocStatus)
		a.bar.SetState(status.StateLoading)
		return a, a.docStatusView.SetDocument(msg.DocumentID)

	case messages.DocumentStatusLoaded:
		a.docStatusView, cmd = a.docStatusView.Update(msg)
		a.syncBar(a.docStatusView.Err(), a.docStatusView.Loading())
		return a, cmd

	case messages.ViewChanged:
		a.switchTo(msg.View)
		if msg.View == messages.ViewIndustries {
			a.bar.SetState(status.StateLoading)
			return a, a.industriesView.Init()
		}
		a.bar.SetState(status.StateReady)
		return a, nil

	case messages.ErrorOccurred:
		a.setErr(msg.Err)
		return a, nil

	case messages.Quit:
		return a, tea.Quit
	}

	return a, nil
}

func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return a, tea.Quit
	}

	if a.currentView == messages.ViewHelp {
		if key.Matches(msg, a.keys.Back) || key.Matches(msg, a.keys.Help) {
			a.switchTo(a.previousView)
			a.bar.SetState(status.StateReady)
		}
		return a, nil
	}

	if key.Matches(msg, a.keys.Help) {
		a.previousView = a.currentView
		a.switchTo(messages.ViewHelp)
		a.bar.SetState(status.StateHelp)
		return a, nil
	}

	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewIndustries:
		if key.Matches(msg, a.keys.Quit) {
			return a, tea.Quit
		}
		a.industriesView, cmd = a.industriesView.Update(msg)
		if a.industriesView.Loading() {
			a.bar.SetState(status.StateLoading)
		}
	case messages.ViewInsight:
		a.insightView, cmd = a.insightView.Update(msg)
		a.syncBar(a.insightView.Err(), a.insightView.Loading())
	case messages.ViewDocuments:
		a.documentsView, cmd = a.documentsView.Update(msg)
		if a.documentsView.Loading() {
			a.bar.SetState(status.StateLoading)
		}
	case messages.ViewDocStatus:
		a.docStatusView, cmd = a.docStatusView.Update(msg)
		if a.docStatusView.Loading() {
			a.bar.SetState(status.StateLoading)
		}
	}
	return a, cmd
}

// switchTo activates a view and updates the key hints.
func (a *App) switchTo(view messages.ViewType) {
	a.currentView = view
	switch view {
	case messages.ViewIndustries:
		a.bar.SetHints(a.keys.IndustriesHelp())
	case messages.ViewInsight:
		a.bar.SetHints(a.keys.InsightHelp())
	case messages.ViewDocuments:
		a.bar.SetHints(a.keys.DocumentsHelp())
	case messages.ViewDocStatus:
		a.bar.SetHints(a.keys.StatusHelp())
	case messages.ViewHelp:
		a.bar.SetHints([]key.Binding{a.keys.Back})
	}
}

func (a *App) setErr(err error) {
	a.err = err
	a.bar.SetError(err)
}

func (a *App) syncBar(err error, loading bool) {
	switch {
	case err != nil:
		a.setErr(err)
	case loading:
		a.bar.SetState(status.StateLoading)
	default:
		a.bar.SetState(status.StateReady)
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	var body string
	switch a.currentView {
	case messages.ViewInsight:
		body = a.insightView.View()
	case messages.ViewDocuments:
		body = a.documentsView.View()
	case messages.ViewDocStatus:
		body = a.docStatusView.View()
	case messages.ViewHelp:
		body = a.viewHelp()
	default:
		body = a.industriesView.View()
	}

	// keep the status bar on the last line
	if pad := a.height - 1 - strings.Count(body, "\n") - 1; pad > 0 {
		body += strings.Repeat("\n", pad)
	}
	return body + "\n" + a.bar.View()
}

func (a *App) viewHelp() string {
	var b strings.Builder
	b.WriteString(a.styles.Title.Render("Help"))
	b.WriteString("\n\n")
	b.WriteString(a.help.FullHelpView(a.keys.FullHelp()))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Muted.Render("Industries list every label documents were ingested under. Open one for its\n" +
		"aggregate, clusters and LLM summary; from there list its documents and\n" +
		"inspect each one's ingestion status."))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Help.Render("[esc] back"))
	return b.String()
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has received its dimensions.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sizes every view, leaving the last line for the status bar.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.help.Width = width
	a.bar.SetWidth(width)

	h := max(height-1, 0)
	a.industriesView.SetDimensions(width, h)
	a.insightView.SetDimensions(width, h)
	a.documentsView.SetDimensions(width, h)
	a.docStatusView.SetDimensions(width, h)
}

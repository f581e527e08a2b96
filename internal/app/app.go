package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/orderbell/internal/alert"
	"github.com/nhle/orderbell/internal/keys"
	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/notify"
	"github.com/nhle/orderbell/internal/session"
	"github.com/nhle/orderbell/internal/theme"
	"github.com/nhle/orderbell/internal/ui"
	"github.com/nhle/orderbell/internal/ui/bell"
	"github.com/nhle/orderbell/internal/ui/command"
	helpview "github.com/nhle/orderbell/internal/ui/help"
	"github.com/nhle/orderbell/internal/ui/orderview"
	"github.com/nhle/orderbell/internal/ui/panel"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewPanel ViewState = iota
	ViewOrder
	ViewHelp
	ViewCommand
)

// Session is the live connection feeding the app.
type Session interface {
	Start() tea.Cmd
	WaitForEvent() tea.Cmd
}

// Alerts plays side effects for newly stored notifications.
type Alerts interface {
	Dispatch(ev model.OrderEvent) bool
	Permission() alert.Permission
}

// Options wires the root model.
type Options struct {
	Config  *model.AppConfig
	Store   *notify.Store
	Session Session
	Alerts  Alerts
	Orders  orderview.OrderLoader
}

// Model is the root Bubble Tea model. It owns the notification store for
// the lifetime of the program; the store is only touched from Update, here
// or in the panel.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	cfg          *model.AppConfig

	store   *notify.Store
	session Session
	alerts  Alerts

	panel       panel.Model
	orderView   orderview.Model
	helpView    helpview.Model
	commandView command.Model
	spinner     spinner.Model

	conn       session.State
	rooms      []string
	retryIn    time.Duration
	statusLine string
	ready      bool
}

// New creates the root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	s := opts.Store
	if s == nil {
		s = notify.New()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = &model.AppConfig{}
	}

	return Model{
		currentView: ViewPanel,
		keys:        k,
		cfg:         cfg,
		store:       s,
		session:     opts.Session,
		alerts:      opts.Alerts,
		panel:       panel.New(s, k, 80, 22),
		orderView:   orderview.New(opts.Orders, k, 80, 22),
		helpView:    helpview.New(k, 80, 22),
		commandView: command.New(80, 22),
		spinner:     spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		conn:        session.StateConnecting,
	}
}

// Init starts the session and the connection spinner.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.session != nil {
		cmds = append(cmds, m.session.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.panel.SetSize(w, h)
		m.orderView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case session.Event:
		return m.handleSession(msg)

	case panel.OpenOrderMsg:
		m.previousView = m.currentView
		m.currentView = ViewOrder
		return m, m.orderView.Open(msg.Notification)

	case panel.ChangedMsg:
		return m, nil

	case orderview.LoadedMsg:
		var cmd tea.Cmd
		m.orderView, cmd = m.orderView.Update(msg)
		return m, cmd

	case orderview.BackMsg:
		m.currentView = ViewPanel
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if next, cmd, ok := m.handleGlobalKey(msg); ok {
			return next, cmd
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that are not owned by the active view.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case m.currentView == ViewCommand:
		if key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil, true
		}
		return m, nil, false

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		m.refreshHelp()
		return m, nil, true

	case m.currentView == ViewHelp && key.Matches(msg, m.keys.Back):
		m.currentView = m.previousView
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m, m.commandView.Focus(), true

	case m.currentView == ViewPanel && key.Matches(msg, m.keys.Quit):
		return m, tea.Quit, true

	case m.currentView == ViewPanel && key.Matches(msg, m.keys.Reconnect):
		next, cmd := m.reconnect()
		return next, cmd, true
	}
	return m, nil, false
}

// handleSession applies one session event. The wait command is re-issued
// for every event except those that end the connection loop.
func (m Model) handleSession(ev session.Event) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch ev.Kind {
	case session.EventNotification:
		if m.store.Ingest(ev.Order) {
			if m.alerts != nil {
				m.alerts.Dispatch(ev.Order)
			}
			cmds = append(cmds, m.panel.Refresh())
		}

	case session.EventRejected:
		m.conn = session.StateRejected
		m.rooms = nil
		m.statusLine = "Server rejected the session: " + ev.Reason + ". Run `orderbell login`, then press r."
		return m, nil

	case session.EventStatus:
		m.conn = ev.State
		m.retryIn = ev.RetryIn
		switch ev.State {
		case session.StateLive:
			m.rooms = ev.Rooms
			m.statusLine = ""
		case session.StateReconnecting:
			m.rooms = nil
		case session.StateStopped:
			m.rooms = nil
			if ev.Err != nil {
				m.statusLine = "Disconnected: " + ev.Err.Error() + ". Press r to reconnect."
			}
			return m, nil
		}
	}

	if m.session != nil {
		cmds = append(cmds, m.session.WaitForEvent())
	}
	return m, tea.Batch(cmds...)
}

// reconnect restarts a session that has stopped for good. While the
// session is still running its own loop the key is ignored.
func (m Model) reconnect() (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}
	if m.conn != session.StateStopped && m.conn != session.StateRejected {
		return m, nil
	}
	m.conn = session.StateConnecting
	m.statusLine = ""
	return m, m.session.Start()
}

// executeCommand handles a command from the command palette.
func (m Model) executeCommand(cmd string) (tea.Model, tea.Cmd) {
	switch cmd {
	case command.ReadAll:
		if m.store.UnreadCount() > 0 {
			m.store.MarkAllAsRead()
			return m, m.panel.Refresh()
		}
	case command.ClearAll:
		if m.store.Len() > 0 {
			m.store.ClearAll()
			return m, m.panel.Refresh()
		}
	case command.Reconnect:
		return m.reconnect()
	case command.Help:
		m.previousView = m.currentView
		m.currentView = ViewHelp
		m.refreshHelp()
	case command.Quit:
		return m, tea.Quit
	}
	return m, nil
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewPanel:
		m.panel, cmd = m.panel.Update(msg)
	case ViewOrder:
		m.orderView, cmd = m.orderView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

func (m *Model) refreshHelp() {
	perm := "unknown"
	if m.alerts != nil {
		perm = m.alerts.Permission().String()
	}
	rooms := "none"
	if len(m.rooms) > 0 {
		rooms = strings.Join(m.rooms, ", ")
	}
	m.helpView.SetInfo(
		[2]string{"Server", m.cfg.Server.URL},
		[2]string{"User", m.cfg.Server.User},
		[2]string{"Rooms", rooms},
		[2]string{"Desktop notifications", perm},
	)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(
		"orderbell",
		m.connectionStatus(),
		bell.View(m.store.UnreadCount(), m.cfg.Display.BadgeCap),
	)
	return m.layout.RenderWithFrame(header, m.renderContent(), m.layout.RenderStatusBar(m.keyHints()))
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewPanel:
		return m.panel.View()
	case ViewOrder:
		return m.orderView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// connectionStatus renders the connectivity indicator.
func (m Model) connectionStatus() string {
	style := theme.ConnectionStyle(m.conn.String())
	switch m.conn {
	case session.StateConnecting:
		return style.Render(m.spinner.View() + " connecting")
	case session.StateReconnecting:
		label := m.spinner.View() + " reconnecting"
		if m.retryIn > 0 {
			label += fmt.Sprintf(" (%s)", m.retryIn.Round(time.Second))
		}
		return style.Render(label)
	case session.StateLive:
		return style.Render("● live")
	default:
		return style.Render("✕ " + m.conn.String())
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewOrder:
		return "esc back | j/k scroll"
	}

	if m.statusLine != "" {
		return theme.ErrorStyle.Render(m.statusLine)
	}
	hints := m.panel.Hints()
	if m.conn == session.StateStopped || m.conn == session.StateRejected {
		hints = "r reconnect | " + hints
	}
	return hints
}

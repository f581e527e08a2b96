// Package panel is the notification list shown under the bell.
package panel

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/orderbell/internal/keys"
	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/notify"
	"github.com/nhle/orderbell/internal/theme"
)

// OpenOrderMsg asks the parent to navigate to the order view. The
// notification has already been marked read.
type OpenOrderMsg struct {
	Notification model.Notification
}

// ChangedMsg is emitted after the panel mutated the store.
type ChangedMsg struct{}

// Model is the notification panel. It renders the shared store and applies
// the panel actions to it; ingestion happens in the parent.
type Model struct {
	list   list.Model
	store  *notify.Store
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a panel over s.
func New(s *notify.Store, k *keys.KeyMap, width, height int) Model {
	m := Model{
		store:  s,
		keys:   k,
		width:  width,
		height: height,
	}

	l := list.New([]list.Item{}, ItemDelegate{now: time.Now}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle
	m.list = l
	return m
}

// SetClock replaces the time source used for relative timestamps.
func (m *Model) SetClock(now func() time.Time) {
	m.list.SetDelegate(ItemDelegate{now: now})
}

// Refresh rebuilds the rows from the store, keeping the selected
// notification selected when it still exists.
func (m *Model) Refresh() tea.Cmd {
	var selected string
	if it, ok := m.list.SelectedItem().(Item); ok {
		selected = it.Notification.ID
	}

	entries := m.store.Items()
	items := make([]list.Item, len(entries))
	index := 0
	for i, n := range entries {
		items[i] = Item{Notification: n}
		if n.ID == selected {
			index = i
		}
	}

	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(index)
	}
	m.list.Title = m.title()
	return cmd
}

func (m Model) title() string {
	unread := m.store.UnreadCount()
	if unread == 0 {
		return "Notifications"
	}
	return fmt.Sprintf("Notifications (%d unread)", unread)
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Open):
			return m.open()

		case key.Matches(msg, m.keys.MarkAllRead):
			if !m.CanMarkAllRead() {
				return m, nil
			}
			m.store.MarkAllAsRead()
			return m, tea.Batch(m.Refresh(), changed)

		case key.Matches(msg, m.keys.ClearAll):
			if !m.CanClearAll() {
				return m, nil
			}
			m.store.ClearAll()
			return m, tea.Batch(m.Refresh(), changed)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func changed() tea.Msg { return ChangedMsg{} }

func (m Model) open() (Model, tea.Cmd) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return m, nil
	}
	m.store.MarkAsRead(it.Notification.ID)
	n, _ := m.store.Get(it.Notification.ID)
	refresh := m.Refresh()
	return m, tea.Batch(refresh, func() tea.Msg {
		return OpenOrderMsg{Notification: n}
	})
}

// CanMarkAllRead reports whether "mark all read" is offered.
func (m Model) CanMarkAllRead() bool { return m.store.UnreadCount() > 0 }

// CanClearAll reports whether "clear all" is offered.
func (m Model) CanClearAll() bool { return m.store.Len() > 0 }

// Hints returns the key hints for the actions currently available.
func (m Model) Hints() string {
	var hints []string
	if m.store.Len() > 0 {
		hints = append(hints, "enter open")
	}
	if m.CanMarkAllRead() {
		hints = append(hints, "m mark all read")
	}
	if m.CanClearAll() {
		hints = append(hints, "x clear all")
	}
	hints = append(hints, "? help", "q quit")
	return strings.Join(hints, " | ")
}

// View renders the panel.
func (m Model) View() string {
	if m.store.Len() == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications yet.\n\nNew orders will appear here as they arrive.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}

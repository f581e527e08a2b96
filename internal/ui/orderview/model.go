// Package orderview shows one order, opened from a notification.
package orderview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/orderbell/internal/keys"
	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/theme"
)

const loadTimeout = 10 * time.Second

// OrderLoader fetches the current state of an order.
type OrderLoader interface {
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
}

// BackMsg signals the parent to navigate back to the panel.
type BackMsg struct{}

// LoadedMsg carries the result of fetching an order.
type LoadedMsg struct {
	OrderID int64
	Order   *model.Order
	Err     error
}

// Model renders the notification snapshot immediately and replaces it with
// the live order once loaded.
type Model struct {
	loader   OrderLoader
	keys     *keys.KeyMap
	viewport viewport.Model

	snapshot model.Notification
	order    *model.Order
	err      error
	loading  bool
	open     bool

	width  int
	height int
}

// New creates an order view. loader may be nil, in which case only the
// notification snapshot is shown.
func New(loader OrderLoader, k *keys.KeyMap, width, height int) Model {
	return Model{
		loader:   loader,
		keys:     k,
		viewport: viewport.New(width, height),
		width:    width,
		height:   height,
	}
}

// Open switches the view to n's order and starts loading it.
func (m *Model) Open(n model.Notification) tea.Cmd {
	m.snapshot = n
	m.order = nil
	m.err = nil
	m.open = true
	m.loading = m.loader != nil
	m.render()

	if m.loader == nil {
		return nil
	}
	loader, id := m.loader, n.OrderID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		o, err := loader.GetOrder(ctx, id)
		return LoadedMsg{OrderID: id, Order: o, Err: err}
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the order view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		if !m.open || msg.OrderID != m.snapshot.OrderID {
			return m, nil
		}
		m.loading = false
		m.order, m.err = msg.Order, msg.Err
		m.render()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			m.open = false
			return m, func() tea.Msg { return BackMsg{} }
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the order view.
func (m Model) View() string {
	if !m.open {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No order selected")
	}
	return m.viewport.View()
}

// Loading reports whether the order is still being fetched.
func (m Model) Loading() bool { return m.loading }

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	if m.open {
		m.render()
	}
}

func (m *Model) render() {
	m.viewport.SetContent(m.content())
	m.viewport.GotoTop()
}

func (m Model) content() string {
	label := lipgloss.NewStyle().Foreground(theme.ColorGray)
	value := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(k, v string) string {
		return label.Render(fmt.Sprintf("%-10s", k+":")) + " " + value.Render(v)
	}

	n := m.snapshot
	number, customer, email, total, count := n.OrderNumber, n.CustomerName, n.CustomerEmail, n.Total, n.ItemCount
	if m.order != nil {
		number, customer, email, total, count = m.order.Number, m.order.CustomerName, m.order.CustomerEmail, m.order.Total, m.order.ItemCount
	}

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(fmt.Sprintf("Order #%d", number))
	if m.order != nil {
		title += "  " + theme.OrderStatusStyle(string(m.order.Status)).Render(string(m.order.Status))
	}
	if n.Priority == model.PriorityHigh {
		title += "  " + theme.PriorityStyle(n.Priority).Render("priority")
	}

	sections := []string{title, ""}
	sections = append(sections, row("Customer", customer))
	if email != "" {
		sections = append(sections, row("Email", email))
	}
	sections = append(sections, row("Total", total), row("Items", fmt.Sprintf("%d", count)))

	if m.order != nil {
		if m.order.RiderID != nil {
			sections = append(sections, row("Rider", *m.order.RiderID))
		}
		if !m.order.CreatedAt.IsZero() {
			sections = append(sections, row("Placed", m.order.CreatedAt.Local().Format("2006-01-02 15:04")))
		}
	} else if !n.Timestamp.IsZero() {
		sections = append(sections, row("Notified", n.Timestamp.Local().Format("2006-01-02 15:04")))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorSubtle).Render(strings.Repeat("─", max(min(m.width-4, 60), 10)))
	sections = append(sections, "", sep, "")

	switch {
	case m.loading:
		sections = append(sections, theme.HelpStyle.Render("Loading order..."))
	case m.err != nil:
		sections = append(sections, theme.ErrorStyle.Render(loadError(m.err)))
		if n.Message != "" {
			sections = append(sections, "", n.Message)
		}
	case m.order != nil && len(m.order.Items) > 0:
		sections = append(sections, lipgloss.NewStyle().Bold(true).Render("Items"), "")
		for _, it := range m.order.Items {
			sections = append(sections, fmt.Sprintf("%3d × %-30s %8s", it.Quantity, it.Name, it.UnitPrice))
		}
	case n.Message != "":
		sections = append(sections, n.Message)
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func loadError(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "This order is no longer visible to you. Showing the notification snapshot."
	case errors.Is(err, model.ErrUnauthorized):
		return "Your session has expired. Log in again to load order details."
	default:
		return "Could not load the order; showing the notification snapshot."
	}
}

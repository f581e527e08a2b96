package panel

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/theme"
)

// Item wraps a notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.CustomerName }

// ItemDelegate renders one notification per line. Unread rows get a dot and
// bold text; read rows are dimmed.
type ItemDelegate struct {
	now func() time.Time
}

func (d ItemDelegate) Height() int  { return 2 }
func (d ItemDelegate) Spacing() int { return 0 }

func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, renderRow(it.Notification, index == m.Index(), d.now()))
}

func renderRow(n model.Notification, selected bool, now time.Time) string {
	text := theme.ReadStyle
	marker := " "
	if !n.Read {
		text = theme.UnreadStyle
		marker = theme.UnreadDot
	}

	title := text.Render(fmt.Sprintf("Order #%d", n.OrderNumber))
	if n.Priority == model.PriorityHigh {
		title += " " + theme.PriorityStyle(n.Priority).Render("priority")
	}
	when := lipgloss.NewStyle().Foreground(theme.ColorGray).Render(relativeTime(n.Timestamp, now))

	summary := n.Message
	if summary == "" {
		summary = "New order from " + n.CustomerName
	}
	detail := theme.ReadStyle.Render(fmt.Sprintf("  %s · %s · %s", summary, n.Total, itemCount(n.ItemCount)))

	line := strings.Join([]string{marker + " " + title + "  " + when, detail}, "\n")
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(line)
}

func itemCount(n int) string {
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 02")
	}
}

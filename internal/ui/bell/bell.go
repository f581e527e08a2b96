// Package bell renders the header bell with its unread badge.
package bell

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/orderbell/internal/notify"
	"github.com/nhle/orderbell/internal/theme"
)

const icon = "🔔"

// View renders the bell. The badge is omitted at zero and reads "<limit>+"
// once count exceeds limit.
func View(count, limit int) string {
	label := notify.Badge(count, limit)
	if label == "" {
		return lipgloss.NewStyle().Foreground(theme.ColorGray).Render(icon)
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, icon, " ", theme.BadgeStyle.Render(label))
}

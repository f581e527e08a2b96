package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/orderbell/internal/keys"
	"github.com/nhle/orderbell/internal/theme"
)

// Model is the help overlay view. Besides the key bindings it lists a few
// facts about the session, such as the server and notification permission.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	info   [][2]string
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// SetInfo replaces the label/value pairs shown under the shortcuts.
func (m *Model) SetInfo(pairs ...[2]string) {
	m.info = pairs
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	heading := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{
		heading.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
	}

	if len(m.info) > 0 {
		label := lipgloss.NewStyle().Foreground(theme.ColorGray)
		var lines []string
		for _, kv := range m.info {
			lines = append(lines, label.Render(kv[0]+":")+" "+kv[1])
		}
		sections = append(sections, "", heading.Render("Session"), strings.Join(lines, "\n"))
	}

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

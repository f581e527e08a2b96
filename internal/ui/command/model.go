package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/orderbell/internal/theme"
)

// Commands understood by the palette, in suggestion order.
const (
	ReadAll   = "read all"
	ClearAll  = "clear all"
	Reconnect = "reconnect"
	Help      = "help"
	Quit      = "quit"
)

var aliases = map[string]string{
	"read":     ReadAll,
	"mark all": ReadAll,
	"clear":    ClearAll,
	"connect":  Reconnect,
	"q":        Quit,
	"exit":     Quit,
}

// CommandMsg is emitted when the user executes a known command.
type CommandMsg string

// Normalize maps user input to a known command, or "" if it is not one.
func Normalize(input string) string {
	in := strings.ToLower(strings.Join(strings.Fields(input), " "))
	switch in {
	case ReadAll, ClearAll, Reconnect, Help, Quit:
		return in
	}
	return aliases[in]
}

// Model is the command palette view.
type Model struct {
	input   textinput.Model
	unknown string
	width   int
	height  int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions([]string{ReadAll, ClearAll, Reconnect, Help, Quit})
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.Type == tea.KeyEnter {
		raw := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if raw == "" {
			return m, nil
		}
		cmd := Normalize(raw)
		if cmd == "" {
			m.unknown = raw
			return m, nil
		}
		m.unknown = ""
		return m, func() tea.Msg { return CommandMsg(cmd) }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Command Palette")

	sections := []string{title, m.input.View()}
	if m.unknown != "" {
		sections = append(sections, theme.ErrorStyle.Render("unknown command: "+m.unknown))
	}

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input and clears stale input.
func (m *Model) Focus() tea.Cmd {
	m.input.Reset()
	m.unknown = ""
	return m.input.Focus()
}

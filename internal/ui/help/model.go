package help

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bookingwatch/internal/keys"
	appsync "github.com/nhle/bookingwatch/internal/sync"
	"github.com/nhle/bookingwatch/internal/theme"
)

// Model is the help overlay. Besides the keybindings it lists the state
// of every running poller.
type Model struct {
	keys     *keys.KeyMap
	help     help.Model
	statuses []appsync.SyncStatus
	width    int
	height   int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetStatuses replaces the poller statuses shown below the keybindings.
func (m *Model) SetStatuses(s []appsync.SyncStatus) {
	m.statuses = s
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	m.help.Width = m.width - 4
	m.help.ShowAll = true

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Pollers"),
		m.pollerLines(),
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

func (m Model) pollerLines() string {
	if len(m.statuses) == 0 {
		return theme.HelpStyle.Render("none running")
	}

	lines := make([]string, 0, len(m.statuses))
	for _, s := range m.statuses {
		last := "never"
		if !s.LastSync.IsZero() {
			last = s.LastSync.Format(time.Kitchen)
		}
		line := fmt.Sprintf("%-26s every %-4s %-8s last %s",
			s.Category, s.Interval, s.State, last)
		if s.Error != nil {
			line += "  " + theme.ErrorStyle.Render(s.Error.Error())
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

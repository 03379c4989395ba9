package inbox

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bookingwatch/internal/keys"
	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/theme"
)

// Store is the part of the notification inbox this view drives.
type Store interface {
	List() []model.Notification
	UnreadCount() int
	MarkAsRead(id string)
	MarkAllAsRead()
	Remove(id string)
	ClearAll()
}

// LoadedMsg carries the current inbox contents.
type LoadedMsg struct {
	Notifications []model.Notification
}

// Model is the notification list view.
type Model struct {
	list   list.Model
	store  Store
	keys   *keys.KeyMap
	width  int
	height int
}

// New creates a notification list over s.
func New(s Store, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, Delegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("notification", "notifications")
	l.DisableQuitKeybindings()

	return Model{
		list:   l,
		store:  s,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init loads the current contents.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		return m, m.setItems(msg.Notifications)

	case tea.KeyMsg:
		if cmd, handled := m.handleKeys(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleKeys applies inbox actions. Store mutations are picked up through
// the store's change feed; the reload here keeps the view current when no
// feed is attached.
func (m Model) handleKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.MarkRead):
		if id, ok := m.selectedID(); ok {
			m.store.MarkAsRead(id)
		}
		return m.Load(), true

	case key.Matches(msg, m.keys.MarkAllRead):
		m.store.MarkAllAsRead()
		return m.Load(), true

	case key.Matches(msg, m.keys.Remove):
		if id, ok := m.selectedID(); ok {
			m.store.Remove(id)
		}
		return m.Load(), true

	case key.Matches(msg, m.keys.ClearAll):
		m.store.ClearAll()
		return m.Load(), true
	}
	return nil, false
}

func (m Model) selectedID() (string, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return "", false
	}
	return it.N.ID, true
}

func (m *Model) setItems(ns []model.Notification) tea.Cmd {
	items := make([]list.Item, len(ns))
	for i, n := range ns {
		items[i] = Item{N: n}
	}
	return m.list.SetItems(items)
}

// Load returns a tea.Cmd that reads the inbox.
func (m Model) Load() tea.Cmd {
	s := m.store
	return func() tea.Msg {
		return LoadedMsg{Notifications: s.List()}
	}
}

// Selected returns the focused notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	return it.N, ok
}

// Len returns the number of listed notifications.
func (m Model) Len() int {
	return len(m.list.Items())
}

// View renders the list or an empty-state hint.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications.\n\nNew bookings, status changes and reviews show up here.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}

// SetClock overrides the time used for relative ages.
func (m *Model) SetClock(now func() time.Time) {
	m.list.SetDelegate(Delegate{now: now})
}

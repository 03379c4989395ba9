package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bookingwatch/internal/keys"
	"github.com/nhle/bookingwatch/internal/model"
	appsync "github.com/nhle/bookingwatch/internal/sync"
	"github.com/nhle/bookingwatch/internal/theme"
	"github.com/nhle/bookingwatch/internal/ui"
	"github.com/nhle/bookingwatch/internal/ui/calendar"
	helpview "github.com/nhle/bookingwatch/internal/ui/help"
	"github.com/nhle/bookingwatch/internal/ui/inbox"
)

// inboxChangedMsg is sent when the notification store changes.
type inboxChangedMsg struct{}

// inboxClosedMsg is sent once the notification store is closed.
type inboxClosedMsg struct{}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewHelp
	ViewCalendar
)

// Model is the root Bubble Tea model: the inbox and the availability
// calendar, with a header showing the unread count and a status bar
// showing poller state.
type Model struct {
	app              *App
	currentView      ViewState
	previousView     ViewState
	layout           ui.Layout
	keys             *keys.KeyMap
	inbox            inbox.Model
	calendar         calendar.Model
	helpView         helpview.Model
	changes          <-chan struct{}
	ready            bool
	unreadCount      int
	authErrorMessage string
}

// NewModel creates the root model. Pollers must already be running.
func NewModel(a *App) Model {
	k := keys.DefaultKeyMap()
	return Model{
		app:         a,
		currentView: ViewInbox,
		keys:        k,
		inbox:       inbox.New(a.Inbox, k, 80, 22),
		calendar:    calendar.New(a, k, 80, 22),
		helpView:    helpview.New(k, 80, 22),
		changes:     a.Inbox.Subscribe(),
		unreadCount: a.Inbox.UnreadCount(),
	}
}

// Init loads the inbox and starts listening to the change feed and the
// poll results.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.inbox.Init(),
		m.waitForChange(),
		m.app.Scheduler.WaitForResult(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.inbox.SetSize(msg.Width, m.layout.ContentHeight())
		m.calendar.SetSize(msg.Width, m.layout.ContentHeight())
		m.helpView.SetSize(msg.Width, m.layout.ContentHeight())
		return m, nil

	case inboxChangedMsg:
		m.unreadCount = m.app.Inbox.UnreadCount()
		return m, tea.Batch(m.inbox.Load(), m.waitForChange())

	case inboxClosedMsg:
		return m, nil

	case calendar.SlotsLoadedMsg, calendar.BookedMsg, calendar.CancelledMsg:
		var cmd tea.Cmd
		m.calendar, cmd = m.calendar.Update(msg)
		return m, cmd

	case calendar.CloseMsg:
		m.currentView = ViewInbox
		return m, nil

	case appsync.PollResultMsg:
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authErrorMessage = ""
		}
		return m, m.app.Scheduler.WaitForResult()

	case tea.KeyMsg:
		if m.currentView == ViewCalendar {
			return m.updateCalendar(msg)
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.toggleHelp()
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			m.app.Scheduler.RefreshAll()
			return m, nil
		}
		if m.currentView == ViewHelp {
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
			}
			return m, nil
		}
		if key.Matches(msg, m.keys.Availability) {
			m.currentView = ViewCalendar
			var cmd tea.Cmd
			m.calendar, cmd = m.calendar.Open()
			return m, cmd
		}
	}

	var cmd tea.Cmd
	if m.currentView == ViewCalendar {
		m.calendar, cmd = m.calendar.Update(msg)
	} else {
		m.inbox, cmd = m.inbox.Update(msg)
	}
	return m, cmd
}

// updateCalendar routes keys while the calendar is shown. Text input gets
// every key except ctrl+c.
func (m Model) updateCalendar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if !m.calendar.Typing() {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Back):
			m.currentView = ViewInbox
			return m, nil
		case key.Matches(msg, m.keys.Help):
			m.toggleHelp()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.calendar, cmd = m.calendar.Update(msg)
	return m, cmd
}

func (m *Model) toggleHelp() {
	if m.currentView == ViewHelp {
		m.currentView = m.previousView
		return
	}
	m.helpView.SetStatuses(m.app.Scheduler.Statuses())
	m.previousView = m.currentView
	m.currentView = ViewHelp
}

// View renders the active view inside the header and status bar.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var content string
	switch m.currentView {
	case ViewHelp:
		content = m.helpView.View()
	case ViewCalendar:
		content = m.calendar.View()
	default:
		content = m.inbox.View()
	}

	return m.layout.Compose(
		m.layout.RenderHeader(m.title(), fmt.Sprintf("%d unread", m.unreadCount)),
		content,
		m.layout.RenderStatusBar(m.syncStatus(), m.keyHints()),
	)
}

func (m Model) title() string {
	sess := m.app.Session()
	if sess == nil {
		return "bookingwatch"
	}
	name := sess.FullName
	if name == "" {
		name = sess.Email
	}
	return fmt.Sprintf("bookingwatch · %s (%s)", name, roleLabel(sess.Role))
}

// syncStatus returns a short string describing the combined poller state.
func (m Model) syncStatus() string {
	if m.authErrorMessage != "" {
		return theme.ErrorStyle.Render(m.authErrorMessage)
	}

	statuses := m.app.Scheduler.Statuses()
	if len(statuses) == 0 {
		return "not watching"
	}

	running := 0
	var failing []string
	for _, s := range statuses {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			failing = append(failing, string(s.Category))
		}
	}

	if running > 0 {
		return fmt.Sprintf("polling (%d)", running)
	}
	if len(failing) > 0 {
		return "unreachable: " + strings.Join(failing, ", ")
	}
	return fmt.Sprintf("watching %d", len(statuses))
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCalendar:
		if m.calendar.Typing() {
			return "enter confirm | esc cancel"
		}
		return "b book | c cancel | p provider | r reload | esc inbox"
	}
	return "enter read | a all read | d remove | v availability | r refresh | ? help | q quit"
}

// waitForChange returns a tea.Cmd that blocks until the inbox changes.
func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return inboxClosedMsg{}
		}
		return inboxChangedMsg{}
	}
}

func roleLabel(r model.Role) string {
	switch r {
	case model.RoleProvider:
		return "provider"
	case model.RoleCustomer:
		return "customer"
	case model.RoleAdmin:
		return "admin"
	default:
		return strings.ToLower(string(r))
	}
}

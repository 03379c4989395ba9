// Package calendar is the availability view: one provider's slots, with
// booking and cancellation. It renders from the query cache, so a booking
// shows up as soon as the cache is patched, before any refetch.
package calendar

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bookingwatch/internal/keys"
	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/theme"
)

// Backend reads and changes availability.
type Backend interface {
	// Availability returns cached slots, refetching when they are stale.
	Availability(ctx context.Context, providerID int64) ([]model.AvailabilitySlot, error)

	// CachedSlots returns the cached slots without any network call.
	CachedSlots(providerID int64) ([]model.AvailabilitySlot, bool)

	Book(ctx context.Context, req model.BookingCreateRequest, providerID int64) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID int64, reason string) (*model.Booking, error)
}

// SlotsLoadedMsg carries the result of an availability read.
type SlotsLoadedMsg struct {
	ProviderID int64
	Slots      []model.AvailabilitySlot
	Err        error
}

// BookedMsg is sent when a booking request completes.
type BookedMsg struct {
	AvailabilityID int64
	Booking        *model.Booking
	Err            error
}

// CancelledMsg is sent when a cancellation completes.
type CancelledMsg struct {
	AvailabilityID int64
	Booking        *model.Booking
	Err            error
}

// CloseMsg asks the parent to leave the calendar.
type CloseMsg struct{}

const cancelReason = "Cancelled from bookingwatch"

type mode int

const (
	modeList mode = iota
	modeProviderPrompt
	modeServicePrompt
)

// Model is the availability calendar view.
type Model struct {
	backend Backend
	keys    *keys.KeyMap
	input   textinput.Model
	mode    mode

	providerID int64
	serviceID  int64
	slots      []model.AvailabilitySlot
	cursor     int

	// mine maps slots booked from this view to their booking ids, so
	// they can be cancelled again.
	mine map[int64]int64

	busy   bool
	notice string
	err    error

	width  int
	height int
}

// New creates a calendar over b.
func New(b Backend, k *keys.KeyMap, width, height int) Model {
	ti := textinput.New()
	ti.CharLimit = 12
	ti.Width = 20

	return Model{
		backend: b,
		keys:    k,
		input:   ti,
		mode:    modeProviderPrompt,
		mine:    make(map[int64]int64),
		width:   width,
		height:  height,
	}
}

// Open shows the calendar: the provider prompt on first use, the cached
// slots afterwards.
func (m Model) Open() (Model, tea.Cmd) {
	if m.providerID == 0 {
		cmd := m.prompt(modeProviderPrompt, "provider id", "")
		return m, cmd
	}
	m.mode = modeList
	m.reloadFromCache()
	return m, nil
}

// Typing reports whether the view is reading text input, in which case
// the parent must pass every key through.
func (m Model) Typing() bool {
	return m.mode != modeList
}

// ProviderID returns the provider being shown, or 0.
func (m Model) ProviderID() int64 {
	return m.providerID
}

// Slots returns the slots currently shown.
func (m Model) Slots() []model.AvailabilitySlot {
	return m.slots
}

// Update handles messages for the calendar.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SlotsLoadedMsg:
		if msg.ProviderID != m.providerID {
			return m, nil
		}
		m.busy = false
		m.err = msg.Err
		if msg.Err == nil {
			m.setSlots(msg.Slots)
		}
		return m, nil

	case BookedMsg:
		m.busy = false
		if msg.Err != nil {
			m.err = fmt.Errorf("booking slot %d: %w", msg.AvailabilityID, msg.Err)
			return m, nil
		}
		m.err = nil
		m.mine[msg.AvailabilityID] = msg.Booking.ID
		m.notice = fmt.Sprintf("Booking %d requested (%s).", msg.Booking.ID, msg.Booking.Status)
		m.reloadFromCache()
		return m, nil

	case CancelledMsg:
		m.busy = false
		if msg.Err != nil {
			m.err = fmt.Errorf("cancelling booking: %w", msg.Err)
			return m, nil
		}
		m.err = nil
		delete(m.mine, msg.AvailabilityID)
		m.notice = fmt.Sprintf("Booking %d cancelled.", msg.Booking.ID)
		m.reloadFromCache()
		return m, nil

	case tea.KeyMsg:
		if m.Typing() {
			return m.updatePrompt(msg)
		}
		return m.updateList(msg)
	}

	if m.Typing() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.input.Blur()
		if m.providerID == 0 {
			return m, func() tea.Msg { return CloseMsg{} }
		}
		m.mode = modeList
		return m, nil

	case tea.KeyEnter:
		id, err := strconv.ParseInt(strings.TrimSpace(m.input.Value()), 10, 64)
		if err != nil || id <= 0 {
			m.err = fmt.Errorf("%q is not a valid id", m.input.Value())
			return m, nil
		}
		m.err = nil
		m.input.Blur()

		if m.mode == modeServicePrompt {
			m.serviceID = id
			m.mode = modeList
			slot, ok := m.selected()
			if !ok {
				return m, nil
			}
			return m.book(slot)
		}

		if id != m.providerID {
			m.providerID = id
			m.slots = nil
			m.cursor = 0
			m.mine = make(map[int64]int64)
		}
		m.mode = modeList
		m.busy = true
		return m, m.load()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.slots)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.load()
	case key.Matches(msg, m.keys.ChangeProvider):
		cmd := m.prompt(modeProviderPrompt, "provider id", formatID(m.providerID))
		return m, cmd
	case key.Matches(msg, m.keys.Book):
		slot, ok := m.selected()
		switch {
		case !ok || m.busy:
		case slot.IsBooked:
			m.notice = "That slot is already booked."
		default:
			cmd := m.prompt(modeServicePrompt, "service id", formatID(m.serviceID))
			return m, cmd
		}
	case key.Matches(msg, m.keys.CancelBooking):
		slot, ok := m.selected()
		if !ok || m.busy {
			return m, nil
		}
		bookingID, mine := m.mine[slot.ID]
		if !mine {
			m.notice = "Only bookings made here can be cancelled from this view."
			return m, nil
		}
		return m.cancel(slot.ID, bookingID)
	}
	return m, nil
}

func (m *Model) prompt(md mode, placeholder, value string) tea.Cmd {
	m.mode = md
	m.notice = ""
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m Model) load() tea.Cmd {
	b, providerID := m.backend, m.providerID
	return func() tea.Msg {
		slots, err := b.Availability(context.Background(), providerID)
		return SlotsLoadedMsg{ProviderID: providerID, Slots: slots, Err: err}
	}
}

func (m Model) book(slot model.AvailabilitySlot) (Model, tea.Cmd) {
	m.busy = true
	m.notice = fmt.Sprintf("Booking slot %d...", slot.ID)

	b, providerID, serviceID := m.backend, m.providerID, m.serviceID
	return m, func() tea.Msg {
		booking, err := b.Book(context.Background(), model.BookingCreateRequest{
			ServiceID:         serviceID,
			ScheduledDateTime: slot.StartDateTime,
			AvailabilityID:    slot.ID,
		}, providerID)
		return BookedMsg{AvailabilityID: slot.ID, Booking: booking, Err: err}
	}
}

func (m Model) cancel(availabilityID, bookingID int64) (Model, tea.Cmd) {
	m.busy = true
	m.notice = fmt.Sprintf("Cancelling booking %d...", bookingID)

	b := m.backend
	return m, func() tea.Msg {
		booking, err := b.Cancel(context.Background(), bookingID, cancelReason)
		return CancelledMsg{AvailabilityID: availabilityID, Booking: booking, Err: err}
	}
}

// reloadFromCache re-reads the cached slots, which the cache bridge has
// already patched after a booking change.
func (m *Model) reloadFromCache() {
	if slots, ok := m.backend.CachedSlots(m.providerID); ok {
		m.setSlots(slots)
	}
}

func (m *Model) setSlots(slots []model.AvailabilitySlot) {
	m.slots = slots
	if m.cursor >= len(slots) {
		m.cursor = max(len(slots)-1, 0)
	}
}

func (m Model) selected() (model.AvailabilitySlot, bool) {
	if m.cursor < 0 || m.cursor >= len(m.slots) {
		return model.AvailabilitySlot{}, false
	}
	return m.slots[m.cursor], true
}

// View renders the prompt or the slot list.
func (m Model) View() string {
	var sb strings.Builder

	title := "Availability"
	if m.providerID > 0 {
		title = fmt.Sprintf("Availability · provider %d", m.providerID)
	}
	sb.WriteString(theme.UnreadTitleStyle.Render(title))
	sb.WriteString("\n\n")

	switch m.mode {
	case modeProviderPrompt:
		sb.WriteString("Provider: " + m.input.View())
	case modeServicePrompt:
		sb.WriteString("Service to book: " + m.input.View())
	default:
		sb.WriteString(m.listView())
	}

	if m.err != nil {
		sb.WriteString("\n\n" + theme.ErrorStyle.Render(m.err.Error()))
	} else if m.notice != "" {
		sb.WriteString("\n\n" + theme.DimmedStyle.Render(m.notice))
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Padding(0, 1).
		Render(sb.String())
}

func (m Model) listView() string {
	if len(m.slots) == 0 {
		if m.busy {
			return theme.DimmedStyle.Render("Loading...")
		}
		return theme.DimmedStyle.Render("No availability.")
	}

	lines := make([]string, len(m.slots))
	for i, s := range m.slots {
		line := SlotLine(s)
		if id, ok := m.mine[s.ID]; ok {
			line += theme.DimmedStyle.Render(fmt.Sprintf("  yours, booking %d", id))
		}
		if i == m.cursor {
			lines[i] = theme.SelectedItemStyle.Render("> " + line)
		} else {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}

// SlotLine renders one slot: id, time range and booked state.
func SlotLine(s model.AvailabilitySlot) string {
	state := theme.StatusStyle(model.StatusConfirmed).Render("free")
	if s.IsBooked {
		state = theme.StatusStyle(model.StatusCancelled).Render("booked")
	}
	return fmt.Sprintf("%-6d %s - %s  %s",
		s.ID,
		s.StartDateTime.Local().Format("Mon Jan 2 15:04"),
		s.EndDateTime.Local().Format("15:04"),
		state)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

package calendar

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bookingwatch/internal/cache"
	"github.com/nhle/bookingwatch/internal/keys"
	"github.com/nhle/bookingwatch/internal/model"
)

// fakeBackend serves slots through a real cache and bridge.
type fakeBackend struct {
	cache   *cache.QueryCache
	bridge  *cache.Bridge
	slots   []model.AvailabilitySlot
	fetches int
	bookErr error
}

func newFakeBackend(slots ...model.AvailabilitySlot) *fakeBackend {
	c := cache.New()
	return &fakeBackend{cache: c, bridge: cache.NewBridge(c, nil), slots: slots}
}

func (f *fakeBackend) Availability(ctx context.Context, providerID int64) ([]model.AvailabilitySlot, error) {
	v, err := f.cache.GetOrLoad(ctx, cache.ProviderAvailabilityKey(providerID),
		func(context.Context) (any, error) {
			f.fetches++
			return append([]model.AvailabilitySlot(nil), f.slots...), nil
		})
	if err != nil {
		return nil, err
	}
	return v.([]model.AvailabilitySlot), nil
}

func (f *fakeBackend) CachedSlots(providerID int64) ([]model.AvailabilitySlot, bool) {
	return f.cache.Slots(providerID)
}

func (f *fakeBackend) Book(_ context.Context, req model.BookingCreateRequest, providerID int64) (*model.Booking, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	f.bridge.SyncBookingCreated(providerID, req.AvailabilityID)
	return &model.Booking{ID: 500, Status: model.StatusPending, AvailabilityID: req.AvailabilityID}, nil
}

func (f *fakeBackend) Cancel(_ context.Context, bookingID int64, _ string) (*model.Booking, error) {
	f.bridge.SyncBookingCancelled(3, 21)
	return &model.Booking{ID: bookingID, Status: model.StatusCancelled}, nil
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(m Model, msgs ...tea.KeyMsg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

// openProvider opens the calendar on provider 3 and applies the load.
func openProvider(t *testing.T, b *fakeBackend) Model {
	t.Helper()
	m := New(b, keys.DefaultKeyMap(), 80, 20)
	m, _ = m.Open()
	require.True(t, m.Typing())

	m, cmd := send(m, runes("3"), tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	require.False(t, m.Typing())
	return m
}

func TestCalendar_BookPatchesWithoutRefetch(t *testing.T) {
	b := newFakeBackend(model.AvailabilitySlot{ID: 20}, model.AvailabilitySlot{ID: 21})
	m := openProvider(t, b)
	require.Len(t, m.Slots(), 2)
	assert.Equal(t, 1, b.fetches)

	m, cmd := send(m, runes("j"), runes("b"), runes("7"), tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	assert.True(t, m.Slots()[1].IsBooked)
	assert.False(t, m.Slots()[0].IsBooked)
	assert.Equal(t, 1, b.fetches)
	assert.Contains(t, m.View(), "yours, booking 500")

	m, cmd = send(m, runes("c"))
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.False(t, m.Slots()[1].IsBooked)
	assert.Equal(t, 1, b.fetches)
	assert.Contains(t, m.View(), "Booking 500 cancelled.")
}

func TestCalendar_BookedSlotIsNotOffered(t *testing.T) {
	b := newFakeBackend(model.AvailabilitySlot{ID: 20, IsBooked: true})
	m := openProvider(t, b)

	m, cmd := send(m, runes("b"))
	assert.Nil(t, cmd)
	assert.False(t, m.Typing())
	assert.Contains(t, m.View(), "already booked")

	m, cmd = send(m, runes("c"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), "Only bookings made here")
}

func TestCalendar_BookErrorShown(t *testing.T) {
	b := newFakeBackend(model.AvailabilitySlot{ID: 20})
	b.bookErr = errors.New("slot taken")
	m := openProvider(t, b)

	m, cmd := send(m, runes("b"), runes("7"), tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = m.Update(cmd())

	assert.Contains(t, m.View(), "slot taken")
	assert.False(t, m.Slots()[0].IsBooked)
}

func TestCalendar_PromptValidation(t *testing.T) {
	m := New(newFakeBackend(), keys.DefaultKeyMap(), 80, 20)
	m, _ = m.Open()

	m, cmd := send(m, runes("x"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.True(t, m.Typing())
	assert.Contains(t, m.View(), `"x" is not a valid id`)

	_, cmd = send(m, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CloseMsg{}, cmd())
}

func TestCalendar_IgnoresLoadForOtherProvider(t *testing.T) {
	b := newFakeBackend(model.AvailabilitySlot{ID: 20})
	m := openProvider(t, b)

	m, _ = m.Update(SlotsLoadedMsg{ProviderID: 99, Slots: []model.AvailabilitySlot{{ID: 1}, {ID: 2}}})
	assert.Len(t, m.Slots(), 1)
}

func TestSlotLine(t *testing.T) {
	assert.Contains(t, SlotLine(model.AvailabilitySlot{ID: 4}), "free")
	assert.Contains(t, SlotLine(model.AvailabilitySlot{ID: 4, IsBooked: true}), "booked")
}

package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bookingwatch/internal/model"
)

func input(t model.NotificationType, msg string) model.NotificationInput {
	return model.NotificationInput{Type: t, Message: msg, RelatedID: "1"}
}

func TestAdd_PrependsUnread(t *testing.T) {
	s := NewStore()
	defer s.Close()

	first := s.Add(input(model.NotificationNewBookingRequest, "first"))
	second := s.Add(input(model.NotificationNewCustomerReview, "second"))

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.False(t, list[0].IsRead)
	assert.Equal(t, "New Customer Review", list[0].Title)
	assert.Equal(t, 2, s.UnreadCount())
	assert.NotEqual(t, first.ID, second.ID)

	id, err := uuid.Parse(first.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestAdd_UsesClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return at }))
	defer s.Close()

	n := s.Add(input(model.NotificationNewBookingRequest, "x"))
	assert.Equal(t, at, n.CreatedAt)
}

func TestMarkAsRead(t *testing.T) {
	s := NewStore()
	defer s.Close()

	a := s.Add(input(model.NotificationNewBookingRequest, "a"))
	s.Add(input(model.NotificationNewBookingRequest, "b"))

	s.MarkAsRead(a.ID)
	s.MarkAsRead(a.ID)
	s.MarkAsRead("missing")

	assert.Equal(t, 1, s.UnreadCount())
	list := s.List()
	assert.True(t, list[1].IsRead)
	assert.False(t, list[0].IsRead)

	s.MarkAllAsRead()
	s.MarkAllAsRead()
	assert.Equal(t, 0, s.UnreadCount())
	assert.Len(t, s.List(), 2)
}

func TestRemoveAndClearAll(t *testing.T) {
	s := NewStore()
	defer s.Close()

	a := s.Add(input(model.NotificationNewBookingRequest, "a"))
	s.Add(input(model.NotificationNewBookingRequest, "b"))

	s.Remove(a.ID)
	s.Remove(a.ID)
	assert.Len(t, s.List(), 1)

	s.ClearAll()
	s.ClearAll()
	assert.Empty(t, s.List())
	assert.Equal(t, 0, s.UnreadCount())
}

func TestAutoExpiry(t *testing.T) {
	s := NewStore(WithExpireAfter(20 * time.Millisecond))
	defer s.Close()

	s.Add(input(model.NotificationBookingConfirmation, "confirmed"))
	s.Add(input(model.NotificationProviderResponse, "note"))
	kept := s.Add(input(model.NotificationBookingCancelled, "cancelled"))

	require.Len(t, s.List(), 3)

	assert.Eventually(t, func() bool {
		return len(s.List()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, kept.ID, s.List()[0].ID)
}

func TestAutoExpiry_AfterManualRemove(t *testing.T) {
	s := NewStore(WithExpireAfter(20 * time.Millisecond))
	defer s.Close()

	n := s.Add(input(model.NotificationBookingConfirmation, "confirmed"))
	s.Remove(n.ID)
	other := s.Add(input(model.NotificationNewBookingRequest, "other"))

	time.Sleep(50 * time.Millisecond)
	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)
}

func TestAutoExpires(t *testing.T) {
	assert.True(t, AutoExpires(model.NotificationBookingConfirmation))
	assert.True(t, AutoExpires(model.NotificationProviderResponse))
	assert.False(t, AutoExpires(model.NotificationBookingCancelled))
	assert.False(t, AutoExpires(model.NotificationNewBookingRequest))
}

func TestSubscribe_Coalesces(t *testing.T) {
	s := NewStore()
	ch := s.Subscribe()

	s.Add(input(model.NotificationNewBookingRequest, "a"))
	s.Add(input(model.NotificationNewBookingRequest, "b"))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}
	select {
	case <-ch:
		t.Fatal("changes should coalesce into one signal")
	default:
	}

	s.Close()
	_, ok := <-ch
	assert.False(t, ok)

	// Closed stores hand out closed channels.
	_, ok = <-s.Subscribe()
	assert.False(t, ok)
}

func TestConcurrentAdds(t *testing.T) {
	s := NewStore()
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(input(model.NotificationNewBookingRequest, "x"))
		}()
	}
	wg.Wait()

	list := s.List()
	assert.Len(t, list, 50)
	ids := make(map[string]bool)
	for _, n := range list {
		ids[n.ID] = true
	}
	assert.Len(t, ids, 50)
}

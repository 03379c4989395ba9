// Package dedup persists what the pollers have already observed so that a
// restart does not re-announce old bookings, transitions or reviews.
package dedup

import "github.com/nhle/bookingwatch/internal/model"

// Category names one poller's slice of dedup state. Each category is
// written by exactly one poller.
type Category string

const (
	CategoryProviderNewBookings Category = "provider-new-bookings"
	CategoryProviderStatuses    Category = "provider-status-changes"
	CategoryProviderRatings     Category = "provider-new-ratings"
	CategoryCustomerStatuses    Category = "customer-status-changes"
)

// Categories lists every category in a stable order.
var Categories = []Category{
	CategoryProviderNewBookings,
	CategoryProviderStatuses,
	CategoryProviderRatings,
	CategoryCustomerStatuses,
}

// State is the observed history of one category. Only the collections the
// category uses are populated; the rest stay empty.
type State struct {
	SeenBookings map[int64]struct{}
	LastStatus   map[int64]model.BookingStatus
	SeenRatings  map[int64]struct{}
	LastNotes    map[int64]string
}

// NewState returns a State with all collections allocated.
func NewState() State {
	return State{
		SeenBookings: make(map[int64]struct{}),
		LastStatus:   make(map[int64]model.BookingStatus),
		SeenRatings:  make(map[int64]struct{}),
		LastNotes:    make(map[int64]string),
	}
}

// Clone returns a deep copy, so callers can derive a next state without
// touching the previous one.
func (s State) Clone() State {
	c := NewState()
	for id := range s.SeenBookings {
		c.SeenBookings[id] = struct{}{}
	}
	for id, st := range s.LastStatus {
		c.LastStatus[id] = st
	}
	for id := range s.SeenRatings {
		c.SeenRatings[id] = struct{}{}
	}
	for id, n := range s.LastNotes {
		c.LastNotes[id] = n
	}
	return c
}

// HasBooking reports whether id was already announced as new.
func (s State) HasBooking(id int64) bool {
	_, ok := s.SeenBookings[id]
	return ok
}

// HasRating reports whether id was already announced.
func (s State) HasRating(id int64) bool {
	_, ok := s.SeenRatings[id]
	return ok
}

// Empty reports whether nothing has been observed.
func (s State) Empty() bool {
	return len(s.SeenBookings) == 0 && len(s.LastStatus) == 0 &&
		len(s.SeenRatings) == 0 && len(s.LastNotes) == 0
}

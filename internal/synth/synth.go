// Package synth turns successive snapshots of bookings and ratings into
// one-shot notifications. Every function here is pure: it never mutates
// the previous state and performs no I/O.
package synth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/bookingwatch/internal/dedup"
	"github.com/nhle/bookingwatch/internal/model"
)

// Action URLs of the web client, kept so notifications deep-link the same way.
const (
	providerBookingsURL = "/provider/bookings"
	providerRatingsURL  = "/provider/ratings"
	customerBookingsURL = "/customer/bookings"
)

// notesPreviewLen caps the provider note quoted in PROVIDER_RESPONSE.
const notesPreviewLen = 140

// scheduleLayout renders the booking time in NEW_BOOKING_REQUEST messages.
const scheduleLayout = "Jan 2, 2006 3:04 PM"

// Policy holds the tunable heuristics of synthesis.
type Policy struct {
	// AssumeCustomerWhenUnknown attributes a cancellation without an
	// explicit cancelledBy to the customer. The API does not always say
	// who cancelled, so this is a guess.
	AssumeCustomerWhenUnknown bool

	// Location formats scheduled times; nil means time.Local.
	Location *time.Location
}

// DefaultPolicy matches the web client's behavior.
func DefaultPolicy() Policy {
	return Policy{AssumeCustomerWhenUnknown: true}
}

// Snapshot is one fetched page of the collection a category watches.
type Snapshot struct {
	Bookings []model.Booking
	Ratings  []model.Rating
}

// Synthesize dispatches to the detector for cat. It returns the events to
// announce and the state to carry into the next poll.
func Synthesize(
	cat dedup.Category,
	prev dedup.State,
	snap Snapshot,
	firstRun bool,
	policy Policy,
) ([]model.NotificationInput, dedup.State) {
	switch cat {
	case dedup.CategoryProviderNewBookings:
		return NewBookings(prev, snap.Bookings, firstRun, policy)
	case dedup.CategoryProviderStatuses:
		return ProviderStatuses(prev, snap.Bookings, firstRun, policy)
	case dedup.CategoryProviderRatings:
		return NewRatings(prev, snap.Ratings, firstRun)
	case dedup.CategoryCustomerStatuses:
		return CustomerStatuses(prev, snap.Bookings, firstRun)
	default:
		return nil, prev.Clone()
	}
}

// NewBookings announces pending bookings the provider has not seen yet.
// On the first run every id is recorded silently.
func NewBookings(
	prev dedup.State,
	bookings []model.Booking,
	firstRun bool,
	policy Policy,
) ([]model.NotificationInput, dedup.State) {
	next := prev.Clone()
	var events []model.NotificationInput

	for _, b := range bookings {
		if b.ID <= 0 {
			continue
		}
		if next.HasBooking(b.ID) {
			continue
		}
		next.SeenBookings[b.ID] = struct{}{}
		if firstRun {
			continue
		}

		msg := fmt.Sprintf("%s requested %q",
			b.CustomerName("Customer"), b.ServiceName("a service"))
		if at, ok := b.ScheduledAt(); ok {
			msg += " for " + formatSchedule(at.Time, policy.Location)
		}

		events = append(events, model.NotificationInput{
			Type:      model.NotificationNewBookingRequest,
			Title:     model.NotificationNewBookingRequest.DefaultTitle(),
			Message:   msg,
			ActionURL: providerBookingsURL,
			RelatedID: strconv.FormatInt(b.ID, 10),
		})
	}

	return events, next
}

// ProviderStatuses watches all of the provider's bookings for transitions
// the provider did not make. Only customer cancellations are announced;
// other transitions were authored by the provider and are recorded silently.
func ProviderStatuses(
	prev dedup.State,
	bookings []model.Booking,
	firstRun bool,
	policy Policy,
) ([]model.NotificationInput, dedup.State) {
	next := prev.Clone()
	var events []model.NotificationInput

	for _, b := range bookings {
		if b.ID <= 0 || !b.Status.Valid() {
			continue
		}

		last, known := next.LastStatus[b.ID]
		next.LastStatus[b.ID] = b.Status
		if firstRun || !known || last == b.Status {
			continue
		}

		if b.Status == model.StatusCancelled && cancelledByCustomer(b, policy) {
			events = append(events, model.NotificationInput{
				Type:  model.NotificationBookingCancelled,
				Title: model.NotificationBookingCancelled.DefaultTitle(),
				Message: fmt.Sprintf("%s cancelled their booking for %q",
					b.CustomerName("Customer"), b.ServiceName("a service")),
				ActionURL: providerBookingsURL,
				RelatedID: strconv.FormatInt(b.ID, 10),
			})
		}
	}

	return events, next
}

// NewRatings announces reviews the provider has not seen yet.
func NewRatings(
	prev dedup.State,
	ratings []model.Rating,
	firstRun bool,
) ([]model.NotificationInput, dedup.State) {
	next := prev.Clone()
	var events []model.NotificationInput

	for _, r := range ratings {
		if r.ID <= 0 {
			continue
		}
		if next.HasRating(r.ID) {
			continue
		}
		next.SeenRatings[r.ID] = struct{}{}
		if firstRun {
			continue
		}

		events = append(events, model.NotificationInput{
			Type:  model.NotificationNewCustomerReview,
			Title: model.NotificationNewCustomerReview.DefaultTitle(),
			Message: fmt.Sprintf("%s rated %d★ for %q",
				r.CustomerName(), r.Rating, r.ServiceName()),
			ActionURL: providerRatingsURL,
			RelatedID: strconv.FormatInt(r.ID, 10),
		})
	}

	return events, next
}

// customerStatusTypes maps a new status to the customer-facing type.
// PENDING has no announcement.
var customerStatusTypes = map[model.BookingStatus]model.NotificationType{
	model.StatusConfirmed:  model.NotificationBookingConfirmation,
	model.StatusInProgress: model.NotificationBookingStarted,
	model.StatusCompleted:  model.NotificationBookingCompleted,
	model.StatusCancelled:  model.NotificationBookingCancelled,
}

// CustomerStatusType returns the notification type announced to a customer
// when a booking moves into status, and false when nothing is announced.
func CustomerStatusType(status model.BookingStatus) (model.NotificationType, bool) {
	t, ok := customerStatusTypes[status]
	return t, ok
}

// CustomerStatuses watches the customer's own bookings for status changes
// and for new provider notes.
func CustomerStatuses(
	prev dedup.State,
	bookings []model.Booking,
	firstRun bool,
) ([]model.NotificationInput, dedup.State) {
	next := prev.Clone()
	var events []model.NotificationInput

	for _, b := range bookings {
		if b.ID <= 0 || !b.Status.Valid() {
			continue
		}
		related := strconv.FormatInt(b.ID, 10)
		provider := b.ProviderName("Provider")
		service := b.ServiceName("your service")

		last, known := next.LastStatus[b.ID]
		if firstRun || !known {
			next.LastStatus[b.ID] = b.Status
			next.LastNotes[b.ID] = b.NotesText()
			continue
		}

		if last != b.Status {
			if t, ok := customerStatusTypes[b.Status]; ok {
				events = append(events, model.NotificationInput{
					Type:      t,
					Title:     t.DefaultTitle(),
					Message:   customerStatusMessage(b.Status, provider, service),
					ActionURL: customerBookingsURL,
					RelatedID: related,
				})
			}
			next.LastStatus[b.ID] = b.Status
		}

		notes := b.NotesText()
		lastNotes, notesKnown := next.LastNotes[b.ID]
		if !notesKnown {
			next.LastNotes[b.ID] = notes
			continue
		}
		if notes != lastNotes {
			msg := provider + " updated booking details"
			if preview := previewNotes(notes); preview != "" {
				msg = provider + ": " + preview
			}
			events = append(events, model.NotificationInput{
				Type:      model.NotificationProviderResponse,
				Title:     "Booking Update from Provider",
				Message:   msg,
				ActionURL: customerBookingsURL,
				RelatedID: related,
			})
			next.LastNotes[b.ID] = notes
		}
	}

	return events, next
}

func customerStatusMessage(status model.BookingStatus, provider, service string) string {
	switch status {
	case model.StatusConfirmed:
		return fmt.Sprintf("%s confirmed your booking for %q", provider, service)
	case model.StatusInProgress:
		return fmt.Sprintf("%s has started %q", provider, service)
	case model.StatusCompleted:
		return fmt.Sprintf("%s marked %q as completed", provider, service)
	case model.StatusCancelled:
		return fmt.Sprintf("%s cancelled your booking for %q", provider, service)
	}
	return ""
}

// cancelledByCustomer applies the attribution heuristic.
func cancelledByCustomer(b model.Booking, policy Policy) bool {
	by := strings.ToLower(strings.TrimSpace(b.CancelledBy))
	if by == "" {
		return policy.AssumeCustomerWhenUnknown
	}
	return by == model.CancelledByCustomer
}

func previewNotes(notes string) string {
	p := strings.TrimSpace(notes)
	if r := []rune(p); len(r) > notesPreviewLen {
		p = string(r[:notesPreviewLen])
	}
	return p
}

func formatSchedule(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(scheduleLayout)
}

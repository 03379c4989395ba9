package model

// BookingStatus is the lifecycle state of a booking as reported by the API.
type BookingStatus string

const (
	StatusPending    BookingStatus = "PENDING"
	StatusConfirmed  BookingStatus = "CONFIRMED"
	StatusInProgress BookingStatus = "IN_PROGRESS"
	StatusCompleted  BookingStatus = "COMPLETED"
	StatusCancelled  BookingStatus = "CANCELLED"
)

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Values of Booking.CancelledBy.
const (
	CancelledByCustomer = "customer"
	CancelledByProvider = "provider"
)

// PartyRef is the compact customer reference embedded in bookings.
type PartyRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// ProviderRef is the compact provider reference embedded in bookings,
// ratings and availability slots.
type ProviderRef struct {
	ID           int64  `json:"id"`
	BusinessName string `json:"businessName"`
	ContactName  string `json:"contactName,omitempty"`
}

// ServiceRef is the compact service reference embedded in bookings.
type ServiceRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Booking is a customer's reservation of a provider's service.
type Booking struct {
	ID                 int64         `json:"id"`
	Status             BookingStatus `json:"status"`
	ScheduledDateTime  *LocalTime    `json:"scheduledDateTime,omitempty"`
	Notes              *string       `json:"notes,omitempty"`
	CancelledBy        string        `json:"cancelledBy,omitempty"`
	CancellationReason string        `json:"cancellationReason,omitempty"`
	AvailabilityID     int64         `json:"availabilityId,omitempty"`
	Customer           *PartyRef     `json:"customer,omitempty"`
	ServiceProvider    *ProviderRef  `json:"serviceProvider,omitempty"`
	Service            *ServiceRef   `json:"service,omitempty"`
}

// CustomerName returns the customer's display name or fallback.
func (b Booking) CustomerName(fallback string) string {
	if b.Customer != nil && b.Customer.Name != "" {
		return b.Customer.Name
	}
	return fallback
}

// ProviderName returns the provider's business name or fallback.
func (b Booking) ProviderName(fallback string) string {
	if b.ServiceProvider != nil && b.ServiceProvider.BusinessName != "" {
		return b.ServiceProvider.BusinessName
	}
	return fallback
}

// ServiceName returns the booked service's name or fallback.
func (b Booking) ServiceName(fallback string) string {
	if b.Service != nil && b.Service.Name != "" {
		return b.Service.Name
	}
	return fallback
}

// ScheduledAt returns the scheduled time, if the API sent a usable one.
func (b Booking) ScheduledAt() (LocalTime, bool) {
	if b.ScheduledDateTime == nil || b.ScheduledDateTime.IsZero() {
		return LocalTime{}, false
	}
	return *b.ScheduledDateTime, true
}

// NotesText returns the notes value, treating nil as empty.
func (b Booking) NotesText() string {
	if b.Notes == nil {
		return ""
	}
	return *b.Notes
}

// BookingCreateRequest is the body of POST /bookings.
type BookingCreateRequest struct {
	ServiceID         int64     `json:"serviceId"`
	ScheduledDateTime LocalTime `json:"scheduledDateTime"`
	CustomerAddress   string    `json:"customerAddress,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	AvailabilityID    int64     `json:"availabilityId,omitempty"`
}

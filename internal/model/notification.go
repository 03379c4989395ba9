package model

import "time"

// NotificationType classifies a notification for display and lifecycle rules.
type NotificationType string

const (
	// Provider-facing.
	NotificationNewBookingRequest NotificationType = "NEW_BOOKING_REQUEST"
	NotificationBookingConfirmed  NotificationType = "BOOKING_CONFIRMED"
	NotificationBookingCancelled  NotificationType = "BOOKING_CANCELLED"
	NotificationNewCustomerReview NotificationType = "NEW_CUSTOMER_REVIEW"
	NotificationServiceCreated    NotificationType = "SERVICE_CREATED"
	NotificationServiceUpdated    NotificationType = "SERVICE_UPDATED"

	// Customer-facing and shared.
	NotificationBookingConfirmation NotificationType = "BOOKING_CONFIRMATION"
	NotificationBookingStarted      NotificationType = "BOOKING_STARTED"
	NotificationBookingCompleted    NotificationType = "BOOKING_COMPLETED"
	NotificationProviderResponse    NotificationType = "PROVIDER_RESPONSE"
	NotificationCompletionRequest   NotificationType = "SERVICE_COMPLETION_REQUEST"
	NotificationProfileUpdated      NotificationType = "PROFILE_UPDATED"
)

var defaultTitles = map[NotificationType]string{
	NotificationNewBookingRequest:   "New Booking Request",
	NotificationBookingConfirmed:    "Booking Confirmed",
	NotificationBookingCancelled:    "Booking Cancelled",
	NotificationNewCustomerReview:   "New Customer Review",
	NotificationServiceCreated:      "Service Created",
	NotificationServiceUpdated:      "Service Updated",
	NotificationBookingConfirmation: "Booking Confirmed",
	NotificationBookingStarted:      "Service Started",
	NotificationBookingCompleted:    "Service Completed",
	NotificationProviderResponse:    "Provider Response",
	NotificationCompletionRequest:   "Service Completion",
	NotificationProfileUpdated:      "Profile Updated",
}

// DefaultTitle returns the title shown when a notification carries none.
func (t NotificationType) DefaultTitle() string {
	if title, ok := defaultTitles[t]; ok {
		return title
	}
	return "Notification"
}

// Notification is an alert surfaced to the signed-in user.
type Notification struct {
	// ID is unique and never reused within a process.
	ID string `json:"id"`

	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`

	// IsRead is only ever flipped to true.
	IsRead bool `json:"isRead"`

	CreatedAt time.Time `json:"createdAt"`

	// RelatedID is the booking or rating the notification refers to.
	RelatedID string `json:"relatedId,omitempty"`

	// ActionURL is where the web client would navigate when clicked.
	ActionURL string `json:"actionUrl,omitempty"`
}

// NotificationInput is a notification before the store assigns its
// identity, timestamp and read state.
type NotificationInput struct {
	Type      NotificationType
	Title     string
	Message   string
	RelatedID string
	ActionURL string
}

package model

// RatingCustomer is the customer reference embedded in a rating.
type RatingCustomer struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"fullName,omitempty"`
}

// RatingBooking is the booking reference embedded in a rating.
type RatingBooking struct {
	ID          int64  `json:"id"`
	ServiceName string `json:"serviceName"`
}

// Rating is a customer's review of a completed booking.
type Rating struct {
	ID              int64           `json:"id"`
	Rating          int             `json:"rating"`
	Review          string          `json:"review,omitempty"`
	Customer        *RatingCustomer `json:"customer,omitempty"`
	ServiceProvider *ProviderRef    `json:"serviceProvider,omitempty"`
	Booking         *RatingBooking  `json:"booking,omitempty"`
}

// CustomerName prefers the full name sent by the backend.
func (r Rating) CustomerName() string {
	if r.Customer != nil {
		if r.Customer.FullName != "" {
			return r.Customer.FullName
		}
		if r.Customer.Name != "" {
			return r.Customer.Name
		}
	}
	return "Customer"
}

// ServiceName falls back from the booked service to the provider names.
func (r Rating) ServiceName() string {
	if r.Booking != nil && r.Booking.ServiceName != "" {
		return r.Booking.ServiceName
	}
	if r.ServiceProvider != nil {
		if r.ServiceProvider.BusinessName != "" {
			return r.ServiceProvider.BusinessName
		}
		if r.ServiceProvider.ContactName != "" {
			return r.ServiceProvider.ContactName
		}
	}
	return "your service"
}

package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/bookingwatch/internal/model"
)

// AuthError indicates that authentication has failed or expired.
// It is returned by clients when a 401 response is received.
type AuthError struct {
	Endpoint string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Endpoint, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Scope selects whose side of a collection is fetched.
type Scope string

const (
	ScopeProvider Scope = "provider"
	ScopeCustomer Scope = "customer"
)

// FetchOptions controls pagination and filtering for snapshot reads.
// Page is zero-based, matching the API.
type FetchOptions struct {
	Page     int
	PageSize int

	// Status restricts bookings to one status; empty means all.
	Status model.BookingStatus
}

// Fetcher is the read side of the marketplace API that the pollers consume.
type Fetcher interface {
	// FetchBookings returns one page of bookings seen from scope.
	FetchBookings(
		ctx context.Context,
		scope Scope,
		opts FetchOptions,
	) (*model.Page[model.Booking], error)

	// FetchRatings returns one page of ratings seen from scope.
	FetchRatings(
		ctx context.Context,
		scope Scope,
		opts FetchOptions,
	) (*model.Page[model.Rating], error)
}

// AvailabilityFetcher reads a provider's published slots.
type AvailabilityFetcher interface {
	FetchProviderAvailability(
		ctx context.Context,
		providerID int64,
	) ([]model.AvailabilitySlot, error)
}

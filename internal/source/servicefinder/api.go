package servicefinder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/source"
)

const defaultPageSize = 10

// Compile-time interface checks.
var (
	_ source.Fetcher             = (*Client)(nil)
	_ source.AvailabilityFetcher = (*Client)(nil)
)

func pageQuery(opts source.FetchOptions) url.Values {
	size := opts.PageSize
	if size < 1 {
		size = defaultPageSize
	}
	page := opts.Page
	if page < 0 {
		page = 0
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	return q
}

// FetchBookings retrieves a page of the provider's incoming bookings or the
// customer's own bookings.
func (c *Client) FetchBookings(
	ctx context.Context,
	scope source.Scope,
	opts source.FetchOptions,
) (*model.Page[model.Booking], error) {
	var path string
	switch scope {
	case source.ScopeProvider:
		path = "/bookings/provider-bookings"
	case source.ScopeCustomer:
		path = "/bookings/my-bookings"
	default:
		return nil, fmt.Errorf("fetching bookings: unknown scope %q", scope)
	}

	var page model.Page[model.Booking]
	if err := c.get(ctx, path, pageQuery(opts), &page); err != nil {
		return nil, fmt.Errorf("fetching %s bookings: %w", scope, err)
	}
	return &page, nil
}

// FetchRatings retrieves a page of ratings received by the signed-in
// provider, or written by the signed-in customer.
func (c *Client) FetchRatings(
	ctx context.Context,
	scope source.Scope,
	opts source.FetchOptions,
) (*model.Page[model.Rating], error) {
	var path string
	switch scope {
	case source.ScopeProvider:
		path = "/ratings/provider-ratings"
	case source.ScopeCustomer:
		path = "/ratings/my-ratings"
	default:
		return nil, fmt.Errorf("fetching ratings: unknown scope %q", scope)
	}

	opts.Status = ""
	var page model.Page[model.Rating]
	if err := c.get(ctx, path, pageQuery(opts), &page); err != nil {
		return nil, fmt.Errorf("fetching %s ratings: %w", scope, err)
	}
	return &page, nil
}

// FetchProviderAvailability retrieves the published slots of a provider.
func (c *Client) FetchProviderAvailability(
	ctx context.Context,
	providerID int64,
) ([]model.AvailabilitySlot, error) {
	var raw []json.RawMessage
	path := fmt.Sprintf("/availability/provider/%d", providerID)
	if err := c.get(ctx, path, nil, &raw); err != nil {
		return nil, fmt.Errorf("fetching availability for provider %d: %w", providerID, err)
	}
	slots, _ := model.DecodeEach[model.AvailabilitySlot](raw)
	return slots, nil
}

// Login exchanges credentials for a session and starts using its token.
func (c *Client) Login(
	ctx context.Context,
	email string,
	password string,
) (*model.Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}

	var sess model.Session
	if err := c.post(ctx, "/auth/login", nil, body, &sess); err != nil {
		return nil, fmt.Errorf("logging in as %s: %w", email, err)
	}
	if sess.Token == "" {
		return nil, fmt.Errorf("logging in as %s: response carried no token", email)
	}

	c.SetToken(sess.Token)
	return &sess, nil
}

// CreateBooking submits a booking request.
func (c *Client) CreateBooking(
	ctx context.Context,
	req model.BookingCreateRequest,
) (*model.Booking, error) {
	var b model.Booking
	if err := c.post(ctx, "/bookings", nil, req, &b); err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}
	return &b, nil
}

// CancelBooking cancels a booking with a reason.
func (c *Client) CancelBooking(
	ctx context.Context,
	bookingID int64,
	reason string,
) (*model.Booking, error) {
	q := url.Values{}
	q.Set("reason", reason)

	var b model.Booking
	path := fmt.Sprintf("/bookings/%d/cancel", bookingID)
	if err := c.post(ctx, path, q, nil, &b); err != nil {
		return nil, fmt.Errorf("cancelling booking %d: %w", bookingID, err)
	}
	return &b, nil
}

// GetBooking retrieves a single booking.
func (c *Client) GetBooking(
	ctx context.Context,
	bookingID int64,
) (*model.Booking, error) {
	var b model.Booking
	path := fmt.Sprintf("/bookings/%d", bookingID)
	if err := c.get(ctx, path, nil, &b); err != nil {
		return nil, fmt.Errorf("getting booking %d: %w", bookingID, err)
	}
	return &b, nil
}

// MarkAvailabilityBooked flags a slot as taken.
func (c *Client) MarkAvailabilityBooked(ctx context.Context, availabilityID int64) error {
	path := fmt.Sprintf("/availability/%d/book", availabilityID)
	if err := c.post(ctx, path, nil, nil, nil); err != nil {
		return fmt.Errorf("marking availability %d booked: %w", availabilityID, err)
	}
	return nil
}

// MarkAvailabilityAvailable releases a slot.
func (c *Client) MarkAvailabilityAvailable(ctx context.Context, availabilityID int64) error {
	path := fmt.Sprintf("/availability/%d/unbook", availabilityID)
	if err := c.post(ctx, path, nil, nil, nil); err != nil {
		return fmt.Errorf("marking availability %d available: %w", availabilityID, err)
	}
	return nil
}

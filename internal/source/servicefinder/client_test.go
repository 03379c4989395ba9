package servicefinder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/source"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", "tok", WithBackoffBase(time.Millisecond))
}

func TestFetchBookings_ProviderPendingQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookings/provider-bookings", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		assert.Equal(t, "PENDING", r.URL.Query().Get("status"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(model.Page[model.Booking]{
			Content: []model.Booking{{ID: 7, Status: model.StatusPending}},
		})
	})

	page, err := c.FetchBookings(context.Background(), source.ScopeProvider, source.FetchOptions{
		PageSize: 10,
		Status:   model.StatusPending,
	})
	require.NoError(t, err)
	require.Len(t, page.Content, 1)
	assert.Equal(t, int64(7), page.Content[0].ID)
}

func TestFetchBookings_CustomerPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookings/my-bookings", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("status"))
		_, _ = w.Write([]byte(`{"content":[]}`))
	})

	page, err := c.FetchBookings(context.Background(), source.ScopeCustomer, source.FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Content)
}

func TestFetchRatings_UnauthorizedIsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.FetchRatings(context.Background(), source.ScopeProvider, source.FetchOptions{})
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
}

func TestDo_RetriesOnTooManyRequests(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"content":[{"id":1,"rating":5}]}`))
	})

	page, err := c.FetchRatings(context.Background(), source.ScopeProvider, source.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	require.Len(t, page.Content, 1)
	assert.Equal(t, 5, page.Content[0].Rating)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchRatings(context.Background(), source.ScopeProvider, source.FetchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestDo_APIErrorMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"slot already booked"}`))
	})

	err := c.MarkAvailabilityBooked(context.Background(), 3)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "slot already booked", apiErr.Message)
}

func TestLogin_StoresToken(t *testing.T) {
	var sawToken atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "pro@example.com", body["email"])
			_, _ = w.Write([]byte(`{"token":"fresh","email":"pro@example.com","role":"SERVICE_PROVIDER","userId":42,"fullName":"Pat"}`))
		default:
			sawToken.Store(r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`[]`))
		}
	})

	sess, err := c.Login(context.Background(), "pro@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, model.RoleProvider, sess.Role)
	assert.Equal(t, int64(42), sess.UserID)

	_, err = c.FetchProviderAvailability(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", sawToken.Load())
}

func TestCancelBooking_SendsReason(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/bookings/9/cancel", r.URL.Path)
		assert.Equal(t, "schedule conflict", r.URL.Query().Get("reason"))
		_, _ = w.Write([]byte(`{"id":9,"status":"CANCELLED","cancelledBy":"customer"}`))
	})

	b, err := c.CancelBooking(context.Background(), 9, "schedule conflict")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, b.Status)
	assert.Equal(t, model.CancelledByCustomer, b.CancelledBy)
}

func TestFetchBookings_ZonelessTimestamps(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[
			{"id":1,"status":"PENDING","scheduledDateTime":"2025-01-15T10:00:00"},
			{"id":2,"status":"CONFIRMED","scheduledDateTime":"2025-01-16T09:30:00.123"}
		],"totalElements":2,"totalPages":1,"number":0,"size":10}`))
	})

	page, err := c.FetchBookings(context.Background(), source.ScopeProvider, source.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, 2, page.TotalElements)

	at, ok := page.Content[0].ScheduledAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local), at.Time)
}

func TestFetchBookings_SkipsMalformedEntity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[
			{"id":1,"status":"PENDING","scheduledDateTime":"next tuesday"},
			{"id":"two","status":"PENDING"},
			{"id":3,"status":"PENDING"}
		]}`))
	})

	page, err := c.FetchBookings(context.Background(), source.ScopeProvider, source.FetchOptions{})
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, 1, page.Skipped)
	assert.Equal(t, int64(1), page.Content[0].ID)
	_, ok := page.Content[0].ScheduledAt()
	assert.False(t, ok, "an unreadable date drops the schedule, not the booking")
	assert.Equal(t, int64(3), page.Content[1].ID)
}

func TestFetchProviderAvailability_ZonelessSlots(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/availability/provider/5", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id":11,"startDateTime":"2025-01-15T10:00:00","endDateTime":"2025-01-15T11:00:00","isBooked":false},
			{"id":12,"startDateTime":"2025-01-15T11:00:00","endDateTime":"2025-01-15T12:00:00","isBooked":true},
			{"id":false}
		]`))
	})

	slots, err := c.FetchProviderAvailability(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2025, 1, 15, 11, 0, 0, 0, time.Local), slots[0].EndDateTime.Time)
	assert.True(t, slots[1].IsBooked)
}

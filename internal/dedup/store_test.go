package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/store"
	"github.com/nhle/bookingwatch/tests/testutil"
)

func TestLoad_AbsentIsEmpty(t *testing.T) {
	s := NewStore(testutil.NewTestStore(t), nil)

	for _, cat := range Categories {
		st := s.Load(context.Background(), 1, cat)
		assert.True(t, st.Empty(), "category %s", cat)
		assert.NotNil(t, st.SeenBookings)
		assert.NotNil(t, st.LastStatus)
	}
}

func TestSaveLoad_ProviderCategories(t *testing.T) {
	kv := testutil.NewTestStore(t)
	s := NewStore(kv, nil)
	ctx := context.Background()

	st := NewState()
	st.SeenBookings[3] = struct{}{}
	st.SeenBookings[1] = struct{}{}
	s.Save(ctx, 7, CategoryProviderNewBookings, st)

	raw, err := kv.Get(ctx, "notified-bookings-7")
	require.NoError(t, err)
	assert.Equal(t, "[1,3]", raw)

	st = NewState()
	st.LastStatus[1] = model.StatusPending
	st.LastStatus[2] = model.StatusCancelled
	s.Save(ctx, 7, CategoryProviderStatuses, st)

	raw, err = kv.Get(ctx, "provider-last-statuses-7")
	require.NoError(t, err)
	assert.Equal(t, `[[1,"PENDING"],[2,"CANCELLED"]]`, raw)

	got := s.Load(ctx, 7, CategoryProviderNewBookings)
	assert.True(t, got.HasBooking(1))
	assert.True(t, got.HasBooking(3))
	assert.Empty(t, got.LastStatus, "bookings slice must not pull in statuses")

	got = s.Load(ctx, 7, CategoryProviderStatuses)
	assert.Equal(t, model.StatusCancelled, got.LastStatus[2])
}

func TestSave_CategoriesDoNotClobberEachOther(t *testing.T) {
	kv := testutil.NewTestStore(t)
	s := NewStore(kv, nil)
	ctx := context.Background()

	bookings := NewState()
	bookings.SeenBookings[10] = struct{}{}
	s.Save(ctx, 1, CategoryProviderNewBookings, bookings)

	// A ratings poller holding an unrelated, empty booking set saves later.
	ratings := NewState()
	ratings.SeenRatings[99] = struct{}{}
	s.Save(ctx, 1, CategoryProviderRatings, ratings)

	assert.True(t, s.Load(ctx, 1, CategoryProviderNewBookings).HasBooking(10))
	assert.True(t, s.Load(ctx, 1, CategoryProviderRatings).HasRating(99))
}

func TestSaveLoad_CustomerNotes(t *testing.T) {
	s := NewStore(testutil.NewTestStore(t), nil)
	ctx := context.Background()

	st := NewState()
	st.LastStatus[5] = model.StatusConfirmed
	st.LastNotes[5] = "bring a ladder"
	st.LastNotes[6] = ""
	s.Save(ctx, 2, CategoryCustomerStatuses, st)

	got := s.Load(ctx, 2, CategoryCustomerStatuses)
	assert.Equal(t, model.StatusConfirmed, got.LastStatus[5])
	assert.Equal(t, "bring a ladder", got.LastNotes[5])
	notes, ok := got.LastNotes[6]
	assert.True(t, ok)
	assert.Empty(t, notes)
}

func TestLoad_ScopedPerUser(t *testing.T) {
	s := NewStore(testutil.NewTestStore(t), nil)
	ctx := context.Background()

	st := NewState()
	st.SeenRatings[1] = struct{}{}
	s.Save(ctx, 1, CategoryProviderRatings, st)

	assert.True(t, s.Load(ctx, 2, CategoryProviderRatings).Empty())
}

func TestLoad_CorruptEntries(t *testing.T) {
	kv := testutil.NewTestStore(t)
	s := NewStore(kv, nil)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "notified-bookings-1", "{not json"))
	require.NoError(t, kv.Set(ctx, "provider-notified-ratings-1", `[4,"x",-1,5]`))
	require.NoError(t, kv.Set(ctx, "provider-last-statuses-1", `[[1,"PENDING"],[2],[3,"BOGUS"],"x",[4,"COMPLETED"]]`))
	require.NoError(t, kv.Set(ctx, "customer-last-notes-1", `[[1,null],[2,"hi"],[3,7]]`))

	assert.True(t, s.Load(ctx, 1, CategoryProviderNewBookings).Empty())

	ratings := s.Load(ctx, 1, CategoryProviderRatings)
	assert.Len(t, ratings.SeenRatings, 2)
	assert.True(t, ratings.HasRating(4))
	assert.True(t, ratings.HasRating(5))

	statuses := s.Load(ctx, 1, CategoryProviderStatuses)
	assert.Equal(t, map[int64]model.BookingStatus{
		1: model.StatusPending,
		4: model.StatusCompleted,
	}, statuses.LastStatus)

	customer := s.Load(ctx, 1, CategoryCustomerStatuses)
	assert.Equal(t, map[int64]string{1: "", 2: "hi"}, customer.LastNotes)
}

// failingKV fails every operation.
type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", errors.New("disk gone") }
func (failingKV) Set(context.Context, string, string) error { return errors.New("disk gone") }
func (failingKV) Delete(context.Context, string) error { return errors.New("disk gone") }
func (failingKV) Keys(context.Context, string) ([]string, error) {
	return nil, errors.New("disk gone")
}
func (failingKV) Close() error { return nil }

var _ store.KV = failingKV{}

func TestStore_FailuresAreSwallowed(t *testing.T) {
	s := NewStore(failingKV{}, nil)
	ctx := context.Background()

	st := NewState()
	st.SeenBookings[1] = struct{}{}

	assert.NotPanics(t, func() {
		s.Save(ctx, 1, CategoryProviderNewBookings, st)
		s.Save(ctx, 1, CategoryCustomerStatuses, st)
		s.Clear(ctx, 1)
	})
	assert.True(t, s.Load(ctx, 1, CategoryProviderNewBookings).Empty())
	assert.Empty(t, s.Users(ctx))
}

func TestClearAndUsers(t *testing.T) {
	s := NewStore(testutil.NewTestStore(t), nil)
	ctx := context.Background()

	st := NewState()
	st.SeenBookings[1] = struct{}{}
	st.LastStatus[1] = model.StatusPending
	s.Save(ctx, 3, CategoryProviderNewBookings, st)
	s.Save(ctx, 4, CategoryCustomerStatuses, st)

	assert.ElementsMatch(t, []int64{3, 4}, s.Users(ctx))

	s.Clear(ctx, 3)
	assert.True(t, s.Load(ctx, 3, CategoryProviderNewBookings).Empty())
	assert.Equal(t, []int64{4}, s.Users(ctx))
}

func TestUsers_IgnoresForeignKeys(t *testing.T) {
	kv := testutil.NewTestStore(t)
	s := NewStore(kv, nil)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "notified-bookings-12abc", "[1]"))
	require.NoError(t, kv.Set(ctx, "notified-bookings-", "[1]"))
	require.NoError(t, kv.Set(ctx, "notified-bookings--4", "[1]"))
	require.NoError(t, kv.Set(ctx, "provider-last-statuses-7", "[]"))

	assert.Equal(t, []int64{7}, s.Users(ctx))
}

func TestState_CloneIsDeep(t *testing.T) {
	st := NewState()
	st.SeenBookings[1] = struct{}{}
	st.LastStatus[1] = model.StatusPending

	c := st.Clone()
	c.SeenBookings[2] = struct{}{}
	c.LastStatus[1] = model.StatusConfirmed

	assert.False(t, st.HasBooking(2))
	assert.Equal(t, model.StatusPending, st.LastStatus[1])
}

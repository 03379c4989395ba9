package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bookingwatch/internal/store"
	"github.com/nhle/bookingwatch/tests/testutil"
)

func TestSQLiteStore_SetGetOverwrite(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "notified-bookings-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "notified-bookings-1", "[1,2]"))
	got, err := s.Get(ctx, "notified-bookings-1")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", got)

	require.NoError(t, s.Set(ctx, "notified-bookings-1", "[1,2,3]"))
	got, err = s.Get(ctx, "notified-bookings-1")
	require.NoError(t, err)
	assert.Equal(t, "[1,2,3]", got)
}

func TestSQLiteStore_DeleteIsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Delete(ctx, "k"))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteStore_KeysMatchesPrefixLiterally(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	for _, k := range []string{
		"notified-bookings-1",
		"notified-bookings-12",
		"notified_bookings-x",
		"provider-last-statuses-1",
	} {
		require.NoError(t, s.Set(ctx, k, "[]"))
	}

	keys, err := s.Keys(ctx, "notified-bookings-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"notified-bookings-1", "notified-bookings-12"}, keys)

	keys, err = s.Keys(ctx, "notified_")
	require.NoError(t, err)
	assert.Equal(t, []string{"notified_bookings-x"}, keys)
}

func TestRedisStore_GetMissingIsNotFound(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := store.NewRedisStoreFromClient(db)

	mock.ExpectGet("bookingwatch:seen").RedisNil()

	_, err := s.Get(context.Background(), "seen")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetAndGet(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := store.NewRedisStoreFromClient(db)
	ctx := context.Background()

	mock.ExpectSet("bookingwatch:notified-bookings-5", "[9]", 0).SetVal("OK")
	mock.ExpectGet("bookingwatch:notified-bookings-5").SetVal("[9]")

	require.NoError(t, s.Set(ctx, "notified-bookings-5", "[9]"))
	got, err := s.Get(ctx, "notified-bookings-5")
	require.NoError(t, err)
	assert.Equal(t, "[9]", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SetErrorIsWrapped(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := store.NewRedisStoreFromClient(db)

	mock.ExpectSet("bookingwatch:k", "v", 0).SetErr(errors.New("READONLY"))

	err := s.Set(context.Background(), "k", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
}

func TestRedisStore_KeysStripsNamespace(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := store.NewRedisStoreFromClient(db)

	mock.ExpectScan(0, "bookingwatch:customer-*", 100).SetVal(
		[]string{"bookingwatch:customer-last-statuses-3", "bookingwatch:customer-last-notes-3"},
		0,
	)

	keys, err := s.Keys(context.Background(), "customer-")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer-last-notes-3", "customer-last-statuses-3"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/nhle/bookingwatch/internal/logger"
	"github.com/nhle/bookingwatch/internal/metrics"
	"github.com/nhle/bookingwatch/internal/store"
)

// Persisted key prefixes; the user id is appended.
const (
	keyNotifiedBookings     = "notified-bookings-"
	keyProviderLastStatuses = "provider-last-statuses-"
	keyProviderRatings      = "provider-notified-ratings-"
	keyCustomerLastStatuses = "customer-last-statuses-"
	keyCustomerLastNotes    = "customer-last-notes-"
)

// allPrefixes is used to wipe every slice of a user.
var allPrefixes = []string{
	keyNotifiedBookings,
	keyProviderLastStatuses,
	keyProviderRatings,
	keyCustomerLastStatuses,
	keyCustomerLastNotes,
}

// Key returns the storage key for one collection of a user.
func Key(prefix string, userID int64) string {
	return fmt.Sprintf("%s%d", prefix, userID)
}

// Store loads and saves per-user, per-category dedup state on a KV.
// Every failure is logged and swallowed: notifications are best effort.
type Store struct {
	kv  store.KV
	log *zap.Logger
}

// NewStore creates a dedup store backed by kv.
func NewStore(kv store.KV, log *zap.Logger) *Store {
	return &Store{kv: kv, log: logger.OrNop(log).Named("dedup")}
}

// Load reads the category's collections for userID. Missing or corrupt
// entries yield empty collections.
func (s *Store) Load(ctx context.Context, userID int64, cat Category) State {
	st := NewState()

	switch cat {
	case CategoryProviderNewBookings:
		raw := s.read(ctx, Key(keyNotifiedBookings, userID))
		if raw != "" {
			var skipped int
			st.SeenBookings, skipped = decodeIDSet(raw)
			s.warnSkipped(cat, keyNotifiedBookings, userID, skipped)
		}
	case CategoryProviderStatuses:
		raw := s.read(ctx, Key(keyProviderLastStatuses, userID))
		if raw != "" {
			var skipped int
			st.LastStatus, skipped = decodeStatuses(raw)
			s.warnSkipped(cat, keyProviderLastStatuses, userID, skipped)
		}
	case CategoryProviderRatings:
		raw := s.read(ctx, Key(keyProviderRatings, userID))
		if raw != "" {
			var skipped int
			st.SeenRatings, skipped = decodeIDSet(raw)
			s.warnSkipped(cat, keyProviderRatings, userID, skipped)
		}
	case CategoryCustomerStatuses:
		if raw := s.read(ctx, Key(keyCustomerLastStatuses, userID)); raw != "" {
			var skipped int
			st.LastStatus, skipped = decodeStatuses(raw)
			s.warnSkipped(cat, keyCustomerLastStatuses, userID, skipped)
		}
		if raw := s.read(ctx, Key(keyCustomerLastNotes, userID)); raw != "" {
			var skipped int
			st.LastNotes, skipped = decodePairs(raw)
			s.warnSkipped(cat, keyCustomerLastNotes, userID, skipped)
		}
	default:
		s.log.Warn("load of unknown dedup category", zap.String("category", string(cat)))
	}

	return st
}

// Save writes only the collections owned by cat, so pollers of other
// categories never overwrite each other.
func (s *Store) Save(ctx context.Context, userID int64, cat Category, st State) {
	var err error
	switch cat {
	case CategoryProviderNewBookings:
		err = s.writeIDSet(ctx, Key(keyNotifiedBookings, userID), st.SeenBookings)
	case CategoryProviderStatuses:
		err = s.writePairs(ctx, Key(keyProviderLastStatuses, userID), encodeStatusPairs(st))
	case CategoryProviderRatings:
		err = s.writeIDSet(ctx, Key(keyProviderRatings, userID), st.SeenRatings)
	case CategoryCustomerStatuses:
		err = errors.Join(
			s.writePairs(ctx, Key(keyCustomerLastStatuses, userID), encodeStatusPairs(st)),
			s.writePairs(ctx, Key(keyCustomerLastNotes, userID), func() (string, error) {
				return encodePairs(st.LastNotes)
			}),
		)
	default:
		err = fmt.Errorf("unknown dedup category %q", cat)
	}

	if err != nil {
		metrics.IncrementPersistFailure(string(cat))
		s.log.Warn("persisting dedup state failed",
			zap.String("category", string(cat)),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}

// Clear removes every persisted slice of userID.
func (s *Store) Clear(ctx context.Context, userID int64) {
	for _, prefix := range allPrefixes {
		key := Key(prefix, userID)
		if err := s.kv.Delete(ctx, key); err != nil {
			s.log.Warn("clearing dedup key failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Users lists the user ids that have any persisted state.
func (s *Store) Users(ctx context.Context) []int64 {
	seen := make(map[int64]struct{})
	var users []int64
	for _, prefix := range allPrefixes {
		keys, err := s.kv.Keys(ctx, prefix)
		if err != nil {
			s.log.Warn("listing dedup keys failed", zap.String("prefix", prefix), zap.Error(err))
			continue
		}
		for _, k := range keys {
			id, err := strconv.ParseInt(k[len(prefix):], 10, 64)
			if err != nil || id <= 0 {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			users = append(users, id)
		}
	}
	return users
}

func (s *Store) read(ctx context.Context, key string) string {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return ""
	}
	if err != nil {
		s.log.Warn("reading dedup state failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return raw
}

func (s *Store) writeIDSet(ctx context.Context, key string, set map[int64]struct{}) error {
	return s.writePairs(ctx, key, func() (string, error) {
		return encodeIDSet(set)
	})
}

func (s *Store) writePairs(ctx context.Context, key string, encode func() (string, error)) error {
	raw, err := encode()
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func encodeStatusPairs(st State) func() (string, error) {
	return func() (string, error) {
		return encodePairs(st.LastStatus)
	}
}

func (s *Store) warnSkipped(cat Category, prefix string, userID int64, skipped int) {
	if skipped == 0 {
		return
	}
	s.log.Warn("ignored corrupt dedup entries",
		zap.String("category", string(cat)),
		zap.String("key", Key(prefix, userID)),
		zap.Int("skipped", skipped),
	)
}

package cache

import (
	"go.uber.org/zap"

	"github.com/nhle/bookingwatch/internal/metrics"
	"github.com/nhle/bookingwatch/internal/model"
)

// Patch operations, also used as metric labels.
const (
	OpBooked   = "booked"
	OpUnbooked = "unbooked"
)

// Bridge keeps cached availability and bookings consistent after the user
// books or cancels. It patches what it can in place and marks the rest
// stale so the next read refetches.
type Bridge struct {
	cache *QueryCache
	log   *zap.Logger
}

// NewBridge returns a Bridge over c.
func NewBridge(c *QueryCache, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{cache: c, log: log.Named("cache")}
}

// SyncAvailability marks every query affected by a booking change stale.
// A providerID of 0 means the provider is unknown.
func (b *Bridge) SyncAvailability(providerID int64) {
	b.cache.Invalidate(Key{Resource: ResourceProviderAvailability})
	b.cache.Invalidate(Key{Resource: ResourceAvailabilitySearch})
	if providerID > 0 {
		b.cache.Invalidate(ProviderAvailabilityKey(providerID))
	}
	b.cache.Invalidate(Key{Resource: ResourceCustomerBookings})
	b.cache.Invalidate(Key{Resource: ResourceProviderBookings})
}

// SyncBookingCreated marks the booked slot as taken, then invalidates.
func (b *Bridge) SyncBookingCreated(providerID, availabilityID int64) {
	b.setBooked(providerID, availabilityID, true)
	b.SyncAvailability(providerID)
}

// SyncBookingCancelled frees the slot again, then invalidates.
func (b *Bridge) SyncBookingCancelled(providerID, availabilityID int64) {
	b.setBooked(providerID, availabilityID, false)
	b.SyncAvailability(providerID)
}

func (b *Bridge) setBooked(providerID, availabilityID int64, booked bool) {
	op := OpUnbooked
	if booked {
		op = OpBooked
	}

	hit := false
	b.cache.Update(ProviderAvailabilityKey(providerID), func(old any) any {
		slots, ok := old.([]model.AvailabilitySlot)
		if !ok {
			return old
		}
		patched := make([]model.AvailabilitySlot, len(slots))
		copy(patched, slots)
		for i := range patched {
			if patched[i].ID == availabilityID {
				patched[i].IsBooked = booked
				hit = true
			}
		}
		return patched
	})

	metrics.RecordCachePatch(op, hit)
	b.log.Debug("availability patched",
		zap.String("op", op),
		zap.Int64("provider_id", providerID),
		zap.Int64("availability_id", availabilityID),
		zap.Bool("hit", hit))
}

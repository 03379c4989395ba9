// Package app wires the components together and hosts the root Bubble Tea
// model of the inbox.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/bookingwatch/internal/cache"
	"github.com/nhle/bookingwatch/internal/credential"
	"github.com/nhle/bookingwatch/internal/dedup"
	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/notify"
	"github.com/nhle/bookingwatch/internal/source/servicefinder"
	"github.com/nhle/bookingwatch/internal/store"
	appsync "github.com/nhle/bookingwatch/internal/sync"
)

// ErrNotLoggedIn is returned by operations that need a session.
var ErrNotLoggedIn = errors.New("not logged in: run 'bookingwatch login'")

// App holds the long-lived components of one process.
type App struct {
	Config    *model.AppConfig
	Log       *zap.Logger
	KV        store.KV
	Dedup     *dedup.Store
	Client    *servicefinder.Client
	Inbox     *notify.Store
	Scheduler *appsync.Scheduler
	Cache     *cache.QueryCache
	Bridge    *cache.Bridge
	Vault     *credential.Vault

	session *model.Session
}

type options struct {
	kv            store.KV
	vault         *credential.Vault
	clientOptions []servicefinder.Option
}

// Option customizes New.
type Option func(*options)

// WithKV uses kv instead of opening the configured backend.
func WithKV(kv store.KV) Option {
	return func(o *options) { o.kv = kv }
}

// WithVault uses v instead of the system keyring.
func WithVault(v *credential.Vault) Option {
	return func(o *options) { o.vault = v }
}

// WithClientOptions passes options to the API client.
func WithClientOptions(opts ...servicefinder.Option) Option {
	return func(o *options) { o.clientOptions = append(o.clientOptions, opts...) }
}

// New builds an App from cfg. The returned App has no session until
// Resume or Login succeeds.
func New(ctx context.Context, cfg *model.AppConfig, log *zap.Logger, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if log == nil {
		log = zap.NewNop()
	}

	kv := o.kv
	if kv == nil {
		var err error
		kv, err = OpenKV(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
	}

	vault := o.vault
	if vault == nil {
		var err error
		vault, err = credential.Open()
		if err != nil {
			kv.Close()
			return nil, err
		}
	}

	clientOpts := []servicefinder.Option{}
	if cfg.API.TimeoutSec > 0 {
		clientOpts = append(clientOpts, servicefinder.WithTimeout(time.Duration(cfg.API.TimeoutSec)*time.Second))
	}
	clientOpts = append(clientOpts, o.clientOptions...)
	client := servicefinder.NewClient(cfg.API.BaseURL, "", clientOpts...)

	expire := time.Duration(cfg.Notifications.AutoExpireSec) * time.Second
	inbox := notify.NewStore(notify.WithExpireAfter(expire), notify.WithLogger(log))

	d := dedup.NewStore(kv, log)
	qc := cache.New()

	return &App{
		Config:    cfg,
		Log:       log,
		KV:        kv,
		Dedup:     d,
		Client:    client,
		Inbox:     inbox,
		Scheduler: appsync.NewScheduler(client, d, inbox, appsync.ConfigFrom(cfg), log),
		Cache:     qc,
		Bridge:    cache.NewBridge(qc, log),
		Vault:     vault,
	}, nil
}

// OpenKV opens the configured dedup state backend.
func OpenKV(ctx context.Context, cfg model.StorageConfig) (store.KV, error) {
	switch cfg.Backend {
	case "redis":
		kv, err := store.NewRedisStore(ctx, cfg.RedisAddr, os.Getenv("BOOKINGWATCH_REDIS_PASSWORD"), cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return kv, nil
	case "", "sqlite":
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, fmt.Errorf("creating state directory: %w", err)
			}
		}
		kv, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Session returns the current session, or nil.
func (a *App) Session() *model.Session {
	return a.session
}

// Resume restores the session saved by a previous login.
func (a *App) Resume() (*model.Session, error) {
	sess, err := a.Vault.LoadSession()
	if errors.Is(err, credential.ErrNoSession) {
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, err
	}
	a.setSession(sess)
	return sess, nil
}

// Login authenticates and stores the session.
func (a *App) Login(ctx context.Context, email, password string) (*model.Session, error) {
	sess, err := a.Client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := a.Vault.SaveSession(sess); err != nil {
		return nil, err
	}
	a.setSession(sess)
	a.Log.Info("logged in",
		zap.Int64("user_id", sess.UserID),
		zap.String("role", string(sess.Role)))
	return sess, nil
}

// Logout stops polling, empties the inbox and forgets the session.
// Persisted dedup state is kept so the next login does not re-announce.
func (a *App) Logout(ctx context.Context) error {
	a.Scheduler.SetSession(ctx, nil)
	a.Inbox.ClearAll()
	a.Client.SetToken("")
	a.session = nil
	return a.Vault.ClearSession()
}

// Watch starts the pollers for the current session.
func (a *App) Watch(ctx context.Context) error {
	if a.session == nil {
		return ErrNotLoggedIn
	}
	a.Scheduler.SetSession(ctx, a.session)
	return nil
}

// Availability returns a provider's slots, served from cache until a
// booking change marks them stale.
func (a *App) Availability(ctx context.Context, providerID int64) ([]model.AvailabilitySlot, error) {
	v, err := a.Cache.GetOrLoad(ctx, cache.ProviderAvailabilityKey(providerID),
		func(ctx context.Context) (any, error) {
			return a.Client.FetchProviderAvailability(ctx, providerID)
		})
	if err != nil {
		return nil, err
	}
	slots, _ := v.([]model.AvailabilitySlot)
	return slots, nil
}

// CachedSlots returns a provider's cached slots, including patches from
// bookings made in this process, without a network call.
func (a *App) CachedSlots(providerID int64) ([]model.AvailabilitySlot, bool) {
	return a.Cache.Slots(providerID)
}

// Book creates a booking and synchronizes cached availability. providerID
// is used when the response does not name the provider.
func (a *App) Book(ctx context.Context, req model.BookingCreateRequest, providerID int64) (*model.Booking, error) {
	if a.session == nil {
		return nil, ErrNotLoggedIn
	}

	b, err := a.Client.CreateBooking(ctx, req)
	if err != nil {
		return nil, err
	}

	if b.ServiceProvider != nil && b.ServiceProvider.ID > 0 {
		providerID = b.ServiceProvider.ID
	}
	if req.AvailabilityID > 0 {
		// Best effort: the booking already exists.
		if err := a.Client.MarkAvailabilityBooked(ctx, req.AvailabilityID); err != nil {
			a.Log.Warn("marking slot booked failed",
				zap.Int64("availability_id", req.AvailabilityID),
				zap.Error(err))
		}
		a.Bridge.SyncBookingCreated(providerID, req.AvailabilityID)
	} else {
		a.Bridge.SyncAvailability(providerID)
	}

	a.recordLocal(ctx, *b)
	a.Log.Info("booking created",
		zap.Int64("booking_id", b.ID),
		zap.Int64("provider_id", providerID),
		zap.Int64("availability_id", req.AvailabilityID))
	return b, nil
}

// Cancel cancels a booking, frees its slot in the cache and records the
// change so the signed-in user is not notified of their own action.
func (a *App) Cancel(ctx context.Context, bookingID int64, reason string) (*model.Booking, error) {
	if a.session == nil {
		return nil, ErrNotLoggedIn
	}

	b, err := a.Client.CancelBooking(ctx, bookingID, reason)
	if err != nil {
		return nil, err
	}

	providerID, availabilityID := a.slotOf(ctx, b)
	if availabilityID > 0 {
		if err := a.Client.MarkAvailabilityAvailable(ctx, availabilityID); err != nil {
			a.Log.Warn("releasing slot failed",
				zap.Int64("availability_id", availabilityID),
				zap.Error(err))
		}
		a.Bridge.SyncBookingCancelled(providerID, availabilityID)
	} else {
		a.Bridge.SyncAvailability(providerID)
	}

	a.recordLocal(ctx, *b)
	a.Log.Info("booking cancelled", zap.Int64("booking_id", b.ID))
	return b, nil
}

// slotOf returns the provider and slot of b. When the mutation response
// leaves either out, the booking is read back once.
func (a *App) slotOf(ctx context.Context, b *model.Booking) (providerID, availabilityID int64) {
	if b.ServiceProvider != nil {
		providerID = b.ServiceProvider.ID
	}
	availabilityID = b.AvailabilityID
	if providerID > 0 && availabilityID > 0 {
		return providerID, availabilityID
	}

	full, err := a.Client.GetBooking(ctx, b.ID)
	if err != nil {
		a.Log.Debug("reading booking back failed", zap.Int64("booking_id", b.ID), zap.Error(err))
		return providerID, availabilityID
	}
	if providerID == 0 && full.ServiceProvider != nil {
		providerID = full.ServiceProvider.ID
	}
	if availabilityID == 0 {
		availabilityID = full.AvailabilityID
	}
	return providerID, availabilityID
}

func (a *App) recordLocal(ctx context.Context, b model.Booking) {
	if a.Scheduler.Running() {
		a.Scheduler.MarkBookingKnown(ctx, b)
		return
	}
	appsync.RecordLocalBooking(ctx, a.Dedup, a.session, b)
}

// Close stops background work and releases storage.
func (a *App) Close() error {
	a.Scheduler.Stop()
	a.Inbox.Close()
	return a.KV.Close()
}

func (a *App) setSession(sess *model.Session) {
	a.session = sess
	a.Client.SetToken(sess.Token)
}

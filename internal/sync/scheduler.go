// Package sync runs the background pollers that turn API snapshots into
// notifications for the signed-in user.
package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/bookingwatch/internal/dedup"
	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/source"
	"github.com/nhle/bookingwatch/internal/synth"
)

// Default poll intervals.
const (
	DefaultBookingsInterval = 10 * time.Second
	DefaultRatingsInterval  = 15 * time.Second
	defaultPageSize         = 10
)

// Config tunes the scheduler.
type Config struct {
	BookingsInterval time.Duration
	RatingsInterval  time.Duration
	PageSize         int
	Policy           synth.Policy
}

// ConfigFrom builds a Config from the application configuration.
func ConfigFrom(cfg *model.AppConfig) Config {
	return Config{
		BookingsInterval: time.Duration(cfg.Polling.BookingsIntervalSec) * time.Second,
		RatingsInterval:  time.Duration(cfg.Polling.RatingsIntervalSec) * time.Second,
		PageSize:         cfg.API.PageSize,
		Policy: synth.Policy{
			AssumeCustomerWhenUnknown: cfg.Cancellation.AssumeCustomerWhenUnknown,
		},
	}
}

func (c Config) withDefaults() Config {
	if c.BookingsInterval <= 0 {
		c.BookingsInterval = DefaultBookingsInterval
	}
	if c.RatingsInterval <= 0 {
		c.RatingsInterval = DefaultRatingsInterval
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	return c
}

// CategoriesFor returns the categories watched for a role. Admins and
// signed-out users get none.
func CategoriesFor(role model.Role) []dedup.Category {
	switch role {
	case model.RoleProvider:
		return []dedup.Category{
			dedup.CategoryProviderNewBookings,
			dedup.CategoryProviderStatuses,
			dedup.CategoryProviderRatings,
		}
	case model.RoleCustomer:
		return []dedup.Category{dedup.CategoryCustomerStatuses}
	default:
		return nil
	}
}

// Scheduler starts and stops pollers to match the current session.
type Scheduler struct {
	fetcher  source.Fetcher
	dedup    *dedup.Store
	sink     Sink
	cfg      Config
	log      *zap.Logger
	resultCh chan PollResultMsg

	mu      gosync.Mutex
	session *model.Session
	pollers []*Poller
}

// NewScheduler creates a Scheduler with no active session.
func NewScheduler(f source.Fetcher, d *dedup.Store, sink Sink, cfg Config, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		fetcher:  f,
		dedup:    d,
		sink:     sink,
		cfg:      cfg.withDefaults(),
		log:      log.Named("sync"),
		resultCh: make(chan PollResultMsg, 16),
	}
}

// SetSession reconciles the running pollers with sess. Pollers for a
// different user or role are stopped and the ones the new role needs are
// started. A nil session stops everything.
func (s *Scheduler) SetSession(ctx context.Context, sess *model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sameIdentity(s.session, sess) {
		s.session = sess
		return
	}

	s.stopLocked()
	s.session = sess
	if sess == nil {
		s.log.Info("session cleared, pollers stopped")
		return
	}

	for _, cat := range CategoriesFor(sess.Role) {
		p := s.newPoller(cat, sess.UserID)
		p.Start(ctx)
		s.pollers = append(s.pollers, p)
	}
	s.log.Info("pollers started",
		zap.Int64("user_id", sess.UserID),
		zap.String("role", string(sess.Role)),
		zap.Int("pollers", len(s.pollers)))
}

// Stop halts all pollers and forgets the session.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.session = nil
}

func (s *Scheduler) stopLocked() {
	for _, p := range s.pollers {
		p.Stop()
	}
	s.pollers = nil
}

// RefreshAll triggers an immediate poll on every running poller.
func (s *Scheduler) RefreshAll() {
	for _, p := range s.snapshot() {
		p.Refresh()
	}
}

// Statuses returns the status of every running poller.
func (s *Scheduler) Statuses() []SyncStatus {
	pollers := s.snapshot()
	out := make([]SyncStatus, 0, len(pollers))
	for _, p := range pollers {
		out = append(out, p.Status())
	}
	return out
}

// MarkBookingKnown records a booking the signed-in user just created or
// changed, so pollers treat it as already observed. Without this a
// customer's own cancellation would be announced back to them.
func (s *Scheduler) MarkBookingKnown(ctx context.Context, b model.Booking) {
	for _, p := range s.snapshot() {
		if p.recordLocal(b) {
			p.persist(ctx)
		}
	}
}

// RecordLocalBooking persists b as observed for a user whose pollers run
// in another process or are not running. Running pollers keep their own
// in-memory view until restarted.
func RecordLocalBooking(ctx context.Context, d *dedup.Store, sess *model.Session, b model.Booking) {
	if sess == nil {
		return
	}
	for _, cat := range CategoriesFor(sess.Role) {
		st := d.Load(ctx, sess.UserID, cat)
		if next, changed := applyLocal(cat, st, b); changed {
			d.Save(ctx, sess.UserID, cat, next)
		}
	}
}

// Running reports whether any poller is active.
func (s *Scheduler) Running() bool {
	return len(s.snapshot()) > 0
}

// WaitForResult returns a tea.Cmd that waits for the next poll result.
// Call it again after handling each PollResultMsg to keep listening.
func (s *Scheduler) WaitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-s.resultCh
	}
}

func (s *Scheduler) snapshot() []*Poller {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Poller, len(s.pollers))
	copy(out, s.pollers)
	return out
}

// sendResult delivers msg without blocking the poller.
func (s *Scheduler) sendResult(msg PollResultMsg) {
	select {
	case s.resultCh <- msg:
	default:
	}
}

func (s *Scheduler) newPoller(cat dedup.Category, userID int64) *Poller {
	interval := s.cfg.BookingsInterval
	if cat == dedup.CategoryProviderRatings {
		interval = s.cfg.RatingsInterval
	}

	return &Poller{
		cat:      cat,
		userID:   userID,
		interval: interval,
		fetch:    s.fetchFor(cat),
		dedup:    s.dedup,
		sink:     s.sink,
		policy:   s.cfg.Policy,
		log:      s.log.With(zap.String("poller", string(cat)), zap.Int64("user_id", userID)),
		report:   s.sendResult,
	}
}

// fetchFor returns the snapshot query of a category: the first page,
// newest first as the API orders it.
func (s *Scheduler) fetchFor(cat dedup.Category) fetchFunc {
	size := s.cfg.PageSize

	bookings := func(scope source.Scope, status model.BookingStatus) fetchFunc {
		return func(ctx context.Context) (synth.Snapshot, error) {
			page, err := s.fetcher.FetchBookings(ctx, scope, source.FetchOptions{
				PageSize: size,
				Status:   status,
			})
			if err != nil || page == nil {
				return synth.Snapshot{}, err
			}
			s.warnSkipped(cat, page.Skipped)
			return synth.Snapshot{Bookings: page.Content}, nil
		}
	}

	switch cat {
	case dedup.CategoryProviderNewBookings:
		return bookings(source.ScopeProvider, model.StatusPending)
	case dedup.CategoryProviderStatuses:
		return bookings(source.ScopeProvider, "")
	case dedup.CategoryCustomerStatuses:
		return bookings(source.ScopeCustomer, "")
	case dedup.CategoryProviderRatings:
		return func(ctx context.Context) (synth.Snapshot, error) {
			page, err := s.fetcher.FetchRatings(ctx, source.ScopeProvider, source.FetchOptions{
				PageSize: size,
			})
			if err != nil || page == nil {
				return synth.Snapshot{}, err
			}
			s.warnSkipped(cat, page.Skipped)
			return synth.Snapshot{Ratings: page.Content}, nil
		}
	}
	return func(context.Context) (synth.Snapshot, error) { return synth.Snapshot{}, nil }
}

func (s *Scheduler) warnSkipped(cat dedup.Category, skipped int) {
	if skipped > 0 {
		s.log.Warn("skipped malformed entities in snapshot",
			zap.String("poller", string(cat)),
			zap.Int("skipped", skipped))
	}
}

func sameIdentity(a, b *model.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID && a.Role == b.Role
}

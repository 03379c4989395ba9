// Package notify holds the in-memory notification inbox of the signed-in
// user. Entries are kept newest first and live only as long as the process.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/bookingwatch/internal/metrics"
	"github.com/nhle/bookingwatch/internal/model"
)

// DefaultExpireAfter is how long an auto-expiring notification stays.
const DefaultExpireAfter = 10 * time.Second

// autoExpiring lists the types that remove themselves after a delay.
var autoExpiring = map[model.NotificationType]bool{
	model.NotificationBookingConfirmation: true,
	model.NotificationProviderResponse:    true,
}

// AutoExpires reports whether notifications of type t remove themselves.
func AutoExpires(t model.NotificationType) bool {
	return autoExpiring[t]
}

// Option configures a Store.
type Option func(*Store)

// WithExpireAfter overrides the auto-expiry delay.
func WithExpireAfter(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.expireAfter = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l.Named("notify")
		}
	}
}

// WithClock overrides time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a thread-safe notification inbox.
type Store struct {
	mu          sync.Mutex
	items       []model.Notification
	timers      map[string]*time.Timer
	subs        []chan struct{}
	closed      bool
	expireAfter time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// NewStore returns an empty inbox.
func NewStore(opts ...Option) *Store {
	s := &Store{
		timers:      make(map[string]*time.Timer),
		expireAfter: DefaultExpireAfter,
		now:         time.Now,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores a new unread notification at the head of the list and returns
// it. An empty title falls back to the type's default.
func (s *Store) Add(in model.NotificationInput) model.Notification {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	title := in.Title
	if title == "" {
		title = in.Type.DefaultTitle()
	}

	n := model.Notification{
		ID:        id.String(),
		Type:      in.Type,
		Title:     title,
		Message:   in.Message,
		CreatedAt: s.now(),
		RelatedID: in.RelatedID,
		ActionURL: in.ActionURL,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return n
	}
	s.items = append([]model.Notification{n}, s.items...)
	if autoExpiring[n.Type] {
		s.timers[n.ID] = time.AfterFunc(s.expireAfter, func() { s.expire(n.ID) })
	}
	s.mu.Unlock()

	metrics.IncrementEvent(string(n.Type))
	s.log.Debug("notification added",
		zap.String("id", n.ID),
		zap.String("type", string(n.Type)),
		zap.String("related_id", n.RelatedID))
	s.notify()
	return n
}

// AddAll adds every input in order, so the last one ends up first.
func (s *Store) AddAll(ins []model.NotificationInput) {
	for _, in := range ins {
		s.Add(in)
	}
}

func (s *Store) expire(id string) {
	s.mu.Lock()
	delete(s.timers, id)
	removed := s.removeLocked(id)
	s.mu.Unlock()

	if removed {
		s.log.Debug("notification expired", zap.String("id", id))
		s.notify()
	}
}

// MarkAsRead flags one notification as read. Unknown ids are ignored.
func (s *Store) MarkAsRead(id string) {
	changed := false
	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == id && !s.items[i].IsRead {
			s.items[i].IsRead = true
			changed = true
			break
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// MarkAllAsRead flags every notification as read.
func (s *Store) MarkAllAsRead() {
	changed := false
	s.mu.Lock()
	for i := range s.items {
		if !s.items[i].IsRead {
			s.items[i].IsRead = true
			changed = true
		}
	}
	s.mu.Unlock()

	if changed {
		s.notify()
	}
}

// Remove deletes one notification. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	s.stopTimerLocked(id)
	removed := s.removeLocked(id)
	s.mu.Unlock()

	if removed {
		s.notify()
	}
}

// ClearAll deletes every notification.
func (s *Store) ClearAll() {
	s.mu.Lock()
	for id := range s.timers {
		s.stopTimerLocked(id)
	}
	hadItems := len(s.items) > 0
	s.items = nil
	s.mu.Unlock()

	if hadItems {
		s.notify()
	}
}

// List returns a copy of the notifications, newest first.
func (s *Store) List() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, item := range s.items {
		if !item.IsRead {
			n++
		}
	}
	return n
}

// Subscribe returns a channel that receives a value after each change.
// Bursts of changes coalesce into one signal; readers call List for the
// current contents. The channel is closed by Close.
func (s *Store) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Close stops pending expiry timers and closes all subscriptions. The
// store keeps its contents but accepts no new notifications.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id := range s.timers {
		s.stopTimerLocked(id)
	}
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (s *Store) removeLocked(id string) bool {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) stopTimerLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
}

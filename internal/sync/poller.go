package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/bookingwatch/internal/dedup"
	"github.com/nhle/bookingwatch/internal/metrics"
	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/source"
	"github.com/nhle/bookingwatch/internal/synth"
)

// SyncState represents the current state of a poller.
type SyncState int

const (
	SyncStopped SyncState = iota
	SyncIdle
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "polling"
	case SyncError:
		return "error"
	default:
		return "stopped"
	}
}

// SyncStatus holds the state of a single poller.
type SyncStatus struct {
	Category dedup.Category
	UserID   int64
	Interval time.Duration
	State    SyncState
	LastSync time.Time
	Error    error
}

// PollResultMsg is a tea.Msg sent after every completed poll.
type PollResultMsg struct {
	Category  dedup.Category
	Events    int
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the API rejects the session token.
type AuthErrorMsg struct {
	Category dedup.Category
	Message  string
}

// Sink receives synthesized notifications.
type Sink interface {
	AddAll(events []model.NotificationInput)
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// fetchFunc returns the snapshot a category diffs against.
type fetchFunc func(ctx context.Context) (synth.Snapshot, error)

// Poller periodically fetches one category's snapshot, turns differences
// into notifications and persists what it has seen. A poll always finishes
// before the next delay starts, so polls never overlap.
type Poller struct {
	cat      dedup.Category
	userID   int64
	interval time.Duration
	fetch    fetchFunc
	dedup    *dedup.Store
	sink     Sink
	policy   synth.Policy
	log      *zap.Logger
	report   func(PollResultMsg)

	// persistMu orders saves so the last write carries the newest state.
	persistMu gosync.Mutex

	mu       gosync.Mutex
	state    dedup.State
	firstRun bool
	running  bool
	status   SyncStatus
	cancel   context.CancelFunc
	trigger  chan struct{}
	done     chan struct{}
}

// Start loads persisted state and launches the polling goroutine. The
// first poll runs immediately and only seeds state.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	st := p.dedup.Load(ctx, p.userID, p.cat)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	p.mu.Lock()
	p.state = st
	p.firstRun = true
	p.running = true
	p.cancel = cancel
	p.trigger = make(chan struct{}, 1)
	p.done = make(chan struct{})
	p.status = SyncStatus{
		Category: p.cat,
		UserID:   p.userID,
		Interval: p.interval,
		State:    SyncIdle,
	}
	done := p.done
	p.mu.Unlock()

	p.log.Debug("poller started", zap.Duration("interval", p.interval))
	go p.run(runCtx, done)
}

// Stop halts the polling goroutine and waits for it to exit. A fetch still
// in flight is cancelled and its result discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.status.State = SyncStopped
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	p.log.Debug("poller stopped")
}

// Refresh triggers an immediate poll. It is a no-op when a refresh is
// already pending or the poller is stopped.
func (p *Poller) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Status returns a snapshot of the poller's status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Category returns the category this poller watches.
func (p *Poller) Category() dedup.Category {
	return p.cat
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.tick(ctx)

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-p.trigger:
			timer.Stop()
		}

		p.tick(ctx)
		timer.Reset(p.interval)
	}
}

// tick performs one fetch, synthesize, notify and persist cycle. A failed
// fetch leaves state untouched and the next tick retries.
func (p *Poller) tick(ctx context.Context) {
	start := time.Now()
	p.setState(SyncRunning, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	snap, err := p.fetch(fetchCtx)
	cancel()

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		metrics.RecordPoll(string(p.cat), metrics.ResultDiscarded, time.Since(start))
		p.log.Debug("discarding poll result after stop")
		return
	}

	if err != nil {
		p.status.State = SyncError
		p.status.Error = err
		p.mu.Unlock()
		p.fail(err, start)
		return
	}

	events, next := synth.Synthesize(p.cat, p.state, snap, p.firstRun, p.policy)
	seeded := p.firstRun
	p.state = next
	p.firstRun = false
	p.status.State = SyncIdle
	p.status.Error = nil
	p.status.LastSync = time.Now()
	p.mu.Unlock()

	if len(events) > 0 {
		p.sink.AddAll(events)
	}
	p.persist(context.WithoutCancel(ctx))

	metrics.RecordPoll(string(p.cat), metrics.ResultOK, time.Since(start))
	p.log.Debug("poll complete",
		zap.Int("events", len(events)),
		zap.Bool("seeded", seeded),
		zap.Duration("took", time.Since(start)))
	p.send(PollResultMsg{Category: p.cat, Events: len(events)})
}

func (p *Poller) fail(err error, start time.Time) {
	if source.IsAuthError(err) {
		metrics.RecordPoll(string(p.cat), metrics.ResultAuthError, time.Since(start))
		p.log.Warn("poll rejected, session expired", zap.Error(err))
		p.send(PollResultMsg{
			Category: p.cat,
			Error:    err,
			AuthError: &AuthErrorMsg{
				Category: p.cat,
				Message:  fmt.Sprintf("%s: session expired. Run 'bookingwatch login'.", p.cat),
			},
		})
		return
	}

	metrics.RecordPoll(string(p.cat), metrics.ResultError, time.Since(start))
	p.log.Debug("poll failed, retrying next tick", zap.Error(err))
	p.send(PollResultMsg{Category: p.cat, Error: err})
}

func (p *Poller) setState(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.status.State = state
	p.status.Error = err
}

func (p *Poller) send(msg PollResultMsg) {
	if p.report != nil {
		p.report(msg)
	}
}

// persist saves the in-memory state as it is when the save begins.
func (p *Poller) persist(ctx context.Context) {
	p.persistMu.Lock()
	defer p.persistMu.Unlock()

	p.mu.Lock()
	st := p.state
	p.mu.Unlock()

	p.dedup.Save(ctx, p.userID, p.cat, st)
}

// recordLocal applies the effect of a mutation made by this user so the
// next poll does not announce it. It reports whether state changed.
func (p *Poller) recordLocal(b model.Booking) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return false
	}
	next, changed := applyLocal(p.cat, p.state, b)
	if changed {
		p.state = next
	}
	return changed
}

// applyLocal returns st with b recorded as already observed by cat.
// st itself is never modified.
func applyLocal(cat dedup.Category, st dedup.State, b model.Booking) (dedup.State, bool) {
	if b.ID <= 0 {
		return st, false
	}

	next := st.Clone()
	switch cat {
	case dedup.CategoryProviderNewBookings:
		next.SeenBookings[b.ID] = struct{}{}
	case dedup.CategoryProviderStatuses:
		if !b.Status.Valid() {
			return st, false
		}
		next.LastStatus[b.ID] = b.Status
	case dedup.CategoryCustomerStatuses:
		if !b.Status.Valid() {
			return st, false
		}
		next.LastStatus[b.ID] = b.Status
		next.LastNotes[b.ID] = b.NotesText()
	default:
		return st, false
	}
	return next, true
}

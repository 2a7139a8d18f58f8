package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"waitlist-system/internal/status"
	"waitlist-system/models"
	"waitlist-system/monitoring"
	"waitlist-system/store"
)

// EntryService is the single authority over the entry lifecycle. Every
// transition, merchant or customer initiated, passes through here and
// is validated against the state machine before any side effect runs.
// Operations on one entry are serialized by a per-entry mutex; position
// recomputation is serialized per queue.
type EntryService struct {
	repo       store.Repository
	tracker    *PositionTracker
	dispatcher *Dispatcher
	codes      *CodeIssuer
	monitor    *monitoring.Monitor
	logger     *zap.Logger

	defaultInterval time.Duration
	defaultBudget   int

	entryLocks sync.Map
	queueLocks sync.Map
}

func NewEntryService(repo store.Repository, tracker *PositionTracker, dispatcher *Dispatcher, codes *CodeIssuer, monitor *monitoring.Monitor, logger *zap.Logger, defaultInterval time.Duration, defaultBudget int) *EntryService {
	return &EntryService{
		repo:            repo,
		tracker:         tracker,
		dispatcher:      dispatcher,
		codes:           codes,
		monitor:         monitor,
		logger:          logger,
		defaultInterval: defaultInterval,
		defaultBudget:   defaultBudget,
	}
}

func (s *EntryService) lockEntry(entryID string) func() {
	v, _ := s.entryLocks.LoadOrStore(entryID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// LockQueue serializes fn against other position recomputation for the
// same queue.
func (s *EntryService) LockQueue(queueID string, fn func()) {
	v, _ := s.queueLocks.LoadOrStore(queueID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	fn()
}

// Join creates a waiting entry for the queue and assigns its position.
func (s *EntryService) Join(ctx context.Context, queueID string, info models.CustomerInfo) (*models.QueueEntry, error) {
	queue, err := s.repo.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if !queue.Active || !queue.Accepting {
		s.monitor.TrackTransition(queueID, "join", "rejected")
		return nil, status.ErrCapacityExceeded
	}

	var entry *models.QueueEntry
	var joinErr error

	s.LockQueue(queueID, func() {
		active, err := s.repo.ListActiveEntries(ctx, queueID)
		if err != nil {
			joinErr = err
			return
		}
		if queue.MaxCapacity > 0 && len(active) >= queue.MaxCapacity {
			joinErr = status.ErrCapacityExceeded
			return
		}

		created, err := s.repo.CreateEntry(ctx, queueID, info)
		if err != nil {
			joinErr = err
			return
		}

		entries, err := s.tracker.Recompute(ctx, queue)
		if err != nil {
			joinErr = err
			return
		}
		for _, e := range entries {
			if e.ID == created.ID {
				created = e
				break
			}
		}
		entry = created
	})
	if joinErr != nil {
		s.monitor.TrackTransition(queueID, "join", "error")
		return nil, joinErr
	}

	s.monitor.TrackTransition(queueID, "join", "success")
	s.logger.Info("customer joined queue",
		zap.String("queue_id", queueID), zap.String("entry_id", entry.ID), zap.Int("position", entry.Position))
	return entry, nil
}

// Call transitions a waiting entry to called: fresh verification code,
// notification count bumped, first notification dispatched, repeat
// timer armed. The first dispatch is synchronous so no later repeat can
// outrun it and win the duplicate-suppression watermark; delivery
// failures are absorbed, so Call never fails on transport errors.
func (s *EntryService) Call(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	unlock := s.lockEntry(entryID)
	defer unlock()

	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	queue, err := s.repo.GetQueue(ctx, entry.QueueID)
	if err != nil {
		return nil, err
	}
	if !queue.Active || entry.Status != models.StatusWaiting {
		s.monitor.TrackTransition(entry.QueueID, "call", "invalid")
		return nil, status.ErrInvalidTransition
	}

	code, err := s.codes.Issue(ctx, entry.QueueID, entryID, entry.VerificationCode)
	if err != nil {
		return nil, err
	}

	count := entry.NotificationCount + 1
	budget := queue.RepeatBudget(s.defaultBudget)
	exhausted := !queue.AutoNotify || count >= budget
	now := time.Now()

	updated, err := s.repo.UpdateEntry(ctx, entryID, store.EntryPatch{
		ExpectStatus:      models.StatusWaiting,
		Status:            statusOf(models.StatusCalled),
		VerificationCode:  store.StrPtr(code),
		NotificationCount: store.IntPtr(count),
		RepeatExhausted:   store.BoolPtr(exhausted),
		CalledAt:          store.TimePtr(now),
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(ctx, queue, updated)
	if queue.AutoNotify && count < budget {
		s.dispatcher.ScheduleRepeat(entryID, queue.RepeatInterval(s.defaultInterval), func() {
			s.repeat(entryID)
		})
	}

	s.monitor.TrackTransition(entry.QueueID, "call", "success")
	s.logger.Info("entry called",
		zap.String("queue_id", entry.QueueID), zap.String("entry_id", entryID), zap.Int("attempt", count))
	return updated, nil
}

// CallNext calls the queue's frontmost waiting entry.
func (s *EntryService) CallNext(ctx context.Context, queueID string) (*models.QueueEntry, error) {
	entries, err := s.repo.ListActiveEntries(ctx, queueID)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.Status == models.StatusWaiting {
			return s.Call(ctx, entry.ID)
		}
	}
	return nil, status.ErrNotFound
}

// repeat is the timer callback for one re-notification cycle. The timer
// is cancelled on acknowledgment and on every terminal transition, but
// a fire can still race those; the status check under the entry lock
// makes the race harmless.
func (s *EntryService) repeat(entryID string) {
	ctx := context.Background()

	unlock := s.lockEntry(entryID)
	defer unlock()

	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil || entry.Status != models.StatusCalled {
		return
	}
	queue, err := s.repo.GetQueue(ctx, entry.QueueID)
	if err != nil {
		s.logger.Warn("repeat skipped", zap.String("entry_id", entryID), zap.Error(err))
		return
	}

	budget := queue.RepeatBudget(s.defaultBudget)
	if entry.NotificationCount >= budget {
		if _, err := s.repo.UpdateEntry(ctx, entryID, store.EntryPatch{
			ExpectStatus:    models.StatusCalled,
			RepeatExhausted: store.BoolPtr(true),
		}); err != nil {
			s.logger.Warn("exhaustion flag failed", zap.String("entry_id", entryID), zap.Error(err))
		}
		return
	}

	count := entry.NotificationCount + 1
	exhausted := count >= budget

	updated, err := s.repo.UpdateEntry(ctx, entryID, store.EntryPatch{
		ExpectStatus:      models.StatusCalled,
		NotificationCount: store.IntPtr(count),
		RepeatExhausted:   store.BoolPtr(exhausted),
	})
	if err != nil {
		s.logger.Warn("repeat update failed", zap.String("entry_id", entryID), zap.Error(err))
		return
	}

	s.dispatcher.Notify(ctx, queue, updated)
	if !exhausted {
		s.dispatcher.ScheduleRepeat(entryID, queue.RepeatInterval(s.defaultInterval), func() {
			s.repeat(entryID)
		})
	}

	s.monitor.TrackTransition(entry.QueueID, "repeat", "success")
}

// Acknowledge records the customer's confirmation of a call. Valid only
// from called; acknowledging an entry already past called is an
// idempotent success so flaky clients can retry safely.
func (s *EntryService) Acknowledge(ctx context.Context, entryID string, etaMinutes int, etaNote string) (*models.QueueEntry, error) {
	unlock := s.lockEntry(entryID)
	defer unlock()

	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	if entry.Status == models.StatusAcknowledged || entry.Status.Terminal() {
		return entry, nil
	}
	if entry.Status != models.StatusCalled {
		s.monitor.TrackTransition(entry.QueueID, "acknowledge", "invalid")
		return nil, status.ErrInvalidTransition
	}

	s.dispatcher.CancelRepeat(entryID)

	now := time.Now()
	updated, err := s.repo.UpdateEntry(ctx, entryID, store.EntryPatch{
		ExpectStatus:   models.StatusCalled,
		Status:         statusOf(models.StatusAcknowledged),
		AcknowledgedAt: store.TimePtr(now),
		EtaMinutes:     store.IntPtr(etaMinutes),
		EtaNote:        store.StrPtr(etaNote),
	})
	if err != nil {
		return nil, err
	}

	queue, err := s.repo.GetQueue(ctx, entry.QueueID)
	if err == nil {
		s.dispatcher.NotifyAck(ctx, queue, updated)
	} else {
		s.logger.Warn("ack mirror skipped",
			zap.String("entry_id", entryID), zap.Error(err))
	}
	if entry.CalledAt != nil {
		s.monitor.TrackAckLatency(entry.QueueID, now.Sub(*entry.CalledAt))
	}

	s.monitor.TrackTransition(entry.QueueID, "acknowledge", "success")
	return updated, nil
}

// Seat marks a called or acknowledged entry as seated.
func (s *EntryService) Seat(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	return s.finish(ctx, entryID, "seat", models.StatusSeated, models.StatusCalled, models.StatusAcknowledged)
}

// Complete marks a called or acknowledged entry's service as done, for
// merchants that track completion instead of seating.
func (s *EntryService) Complete(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	return s.finish(ctx, entryID, "complete", models.StatusCompleted, models.StatusCalled, models.StatusAcknowledged)
}

// NoShow marks a called or acknowledged entry as a no-show.
func (s *EntryService) NoShow(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	return s.finish(ctx, entryID, "no_show", models.StatusNoShow, models.StatusCalled, models.StatusAcknowledged)
}

// Withdraw is the customer-initiated exit, allowed while waiting or
// called.
func (s *EntryService) Withdraw(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	return s.finish(ctx, entryID, "withdraw", models.StatusWithdrawn, models.StatusWaiting, models.StatusCalled)
}

// Cancel removes a waiting entry before any call.
func (s *EntryService) Cancel(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	return s.finish(ctx, entryID, "cancel", models.StatusCancelled, models.StatusWaiting)
}

// finish applies a terminal transition: timer cancelled in the same
// step, dispatch state dropped, remaining positions compacted.
func (s *EntryService) finish(ctx context.Context, entryID, event string, next models.EntryStatus, allowed ...models.EntryStatus) (*models.QueueEntry, error) {
	unlock := s.lockEntry(entryID)
	defer unlock()

	entry, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	ok := false
	for _, from := range allowed {
		if entry.Status == from {
			ok = true
			break
		}
	}
	if !ok {
		s.monitor.TrackTransition(entry.QueueID, event, "invalid")
		return nil, status.ErrInvalidTransition
	}

	s.dispatcher.Forget(entryID)

	now := time.Now()
	updated, err := s.repo.UpdateEntry(ctx, entryID, store.EntryPatch{
		ExpectStatus: entry.Status,
		Status:       statusOf(next),
		CompletedAt:  store.TimePtr(now),
	})
	if err != nil {
		return nil, err
	}

	queue, err := s.repo.GetQueue(ctx, entry.QueueID)
	if err == nil {
		s.LockQueue(queue.ID, func() {
			if _, err := s.tracker.Recompute(ctx, queue); err != nil {
				s.logger.Warn("position recompute failed", zap.String("queue_id", queue.ID), zap.Error(err))
			}
		})
		s.dispatcher.NotifyStatus(ctx, queue, updated)
	}

	s.monitor.TrackTransition(entry.QueueID, event, "success")
	s.logger.Info("entry finished",
		zap.String("queue_id", entry.QueueID), zap.String("entry_id", entryID), zap.String("status", string(next)))
	return updated, nil
}

// GetEntry returns an entry by ID.
func (s *EntryService) GetEntry(ctx context.Context, entryID string) (*models.QueueEntry, error) {
	return s.repo.GetEntry(ctx, entryID)
}

// Dashboard returns the queue's active entries for the merchant view.
func (s *EntryService) Dashboard(ctx context.Context, queueID string) ([]*models.QueueEntry, error) {
	if _, err := s.repo.GetQueue(ctx, queueID); err != nil {
		return nil, err
	}
	return s.repo.ListActiveEntries(ctx, queueID)
}

// RestoreTimers re-arms repeat timers for entries that were mid-call
// when the process restarted.
func (s *EntryService) RestoreTimers(ctx context.Context) {
	for _, queueID := range s.tracker.ActiveQueueIDs(ctx) {
		queue, err := s.repo.GetQueue(ctx, queueID)
		if err != nil {
			continue
		}
		entries, err := s.repo.ListActiveEntries(ctx, queueID)
		if err != nil {
			continue
		}

		budget := queue.RepeatBudget(s.defaultBudget)
		restored := 0
		for _, entry := range entries {
			if entry.Status != models.StatusCalled || entry.RepeatExhausted {
				continue
			}
			if !queue.AutoNotify || entry.NotificationCount >= budget {
				continue
			}
			entryID := entry.ID
			s.dispatcher.ScheduleRepeat(entryID, queue.RepeatInterval(s.defaultInterval), func() {
				s.repeat(entryID)
			})
			restored++
		}
		if restored > 0 {
			s.logger.Info("repeat timers restored",
				zap.String("queue_id", queueID), zap.Int("count", restored))
		}
	}
}

func statusOf(s models.EntryStatus) *models.EntryStatus { return &s }

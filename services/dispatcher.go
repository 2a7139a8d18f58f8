package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"waitlist-system/models"
	"waitlist-system/monitoring"
	"waitlist-system/realtime"
	"waitlist-system/utils"
)

// Dispatcher owns "your turn" delivery: one logical notification per
// call or repeat, fanned out to the entry's customer rooms and mirrored
// to the merchant's queue room for dashboards. Dispatch is idempotent
// per notification count, so a retried call transition can never
// double-chime a customer. Repeat timers live in a registry keyed by
// entry ID and are cancellable in O(1).
type Dispatcher struct {
	transport realtime.Transport
	router    *RoomRouter
	breaker   *utils.CircuitBreaker
	monitor   *monitoring.Monitor
	logger    *zap.Logger

	mu       sync.Mutex
	lastSent map[string]int // entryID -> highest dispatched notification count
	timers   map[string]*time.Timer
}

func NewDispatcher(transport realtime.Transport, router *RoomRouter, monitor *monitoring.Monitor, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		router:    router,
		breaker:   utils.NewCircuitBreaker("realtime-broadcast"),
		monitor:   monitor,
		logger:    logger,
		lastSent:  make(map[string]int),
		timers:    make(map[string]*time.Timer),
	}
}

// Notify broadcasts the call notification for the entry's current
// notification count. A second invocation for the same count is a
// no-op. Delivery failures are logged and absorbed; the repeat cycle
// re-sends, so a missed chime self-heals.
func (d *Dispatcher) Notify(ctx context.Context, queue *models.Queue, entry *models.QueueEntry) {
	d.mu.Lock()
	if last, ok := d.lastSent[entry.ID]; ok && last >= entry.NotificationCount {
		d.mu.Unlock()
		d.logger.Debug("duplicate notification suppressed",
			zap.String("entry_id", entry.ID), zap.Int("attempt", entry.NotificationCount))
		return
	}
	d.lastSent[entry.ID] = entry.NotificationCount
	d.mu.Unlock()

	event := models.NotificationEvent{
		EntryID:          entry.ID,
		QueueID:          entry.QueueID,
		VerificationCode: entry.VerificationCode,
		Position:         entry.Position,
		Message:          callMessage(entry),
		Attempt:          entry.NotificationCount,
		Intensity:        entry.NotificationCount,
	}

	failed := false
	for _, room := range d.router.TargetRooms(entry) {
		err := d.breaker.Execute(func() error {
			return d.transport.Broadcast(ctx, room, models.EventCustomerCalled, event)
		})
		if err != nil {
			failed = true
			d.logger.Warn("call broadcast failed",
				zap.String("entry_id", entry.ID), zap.String("room", room),
				zap.Int("attempt", entry.NotificationCount), zap.Error(err))
		}
	}

	// Dashboard mirror so the merchant sees the attempt without polling.
	if err := d.transport.Broadcast(ctx, MerchantRoom(queue.MerchantID), models.EventEntryUpdate, event); err != nil {
		d.logger.Warn("merchant mirror failed", zap.String("entry_id", entry.ID), zap.Error(err))
	}

	result := "success"
	if failed {
		result = "delivery_failure"
	}
	d.monitor.TrackNotification(entry.QueueID, result)
}

// NotifyAck mirrors a customer acknowledgment to the merchant room.
func (d *Dispatcher) NotifyAck(ctx context.Context, queue *models.Queue, entry *models.QueueEntry) {
	ack := models.AckEvent{
		EntryID:    entry.ID,
		QueueID:    entry.QueueID,
		EtaMinutes: entry.EtaMinutes,
		EtaNote:    entry.EtaNote,
	}
	if err := d.transport.Broadcast(ctx, MerchantRoom(queue.MerchantID), models.EventCustomerAcknowledged, ack); err != nil {
		d.logger.Warn("ack mirror failed", zap.String("entry_id", entry.ID), zap.Error(err))
	}
}

// NotifyStatus broadcasts a status change to the entry's customer rooms
// and the merchant room.
func (d *Dispatcher) NotifyStatus(ctx context.Context, queue *models.Queue, entry *models.QueueEntry) {
	payload := map[string]any{
		"entry_id": entry.ID,
		"queue_id": entry.QueueID,
		"status":   string(entry.Status),
	}

	rooms := append(d.router.TargetRooms(entry), MerchantRoom(queue.MerchantID))
	for _, room := range rooms {
		if err := d.transport.Broadcast(ctx, room, models.EventEntryUpdate, payload); err != nil {
			d.logger.Warn("status broadcast failed",
				zap.String("entry_id", entry.ID), zap.String("room", room), zap.Error(err))
		}
	}
}

// ScheduleRepeat arms (or re-arms) the entry's repeat timer.
func (d *Dispatcher) ScheduleRepeat(entryID string, delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[entryID]; ok {
		timer.Stop()
	}
	d.timers[entryID] = time.AfterFunc(delay, func() {
		d.mu.Lock()
		delete(d.timers, entryID)
		d.mu.Unlock()
		fn()
	})
}

// CancelRepeat stops the entry's pending repeat timer, if any.
func (d *Dispatcher) CancelRepeat(entryID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.timers[entryID]; ok {
		timer.Stop()
		delete(d.timers, entryID)
	}
}

// PendingRepeat reports whether the entry has a repeat timer armed.
func (d *Dispatcher) PendingRepeat(entryID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.timers[entryID]
	return ok
}

// Forget drops all dispatch state for a terminal entry: its pending
// timer and its duplicate-suppression watermark.
func (d *Dispatcher) Forget(entryID string) {
	d.CancelRepeat(entryID)

	d.mu.Lock()
	delete(d.lastSent, entryID)
	d.mu.Unlock()
}

func callMessage(entry *models.QueueEntry) string {
	name := entry.CustomerName
	if name == "" {
		name = "your party"
	}
	if entry.NotificationCount <= 1 {
		return fmt.Sprintf("It's your turn, %s! Show code %s at the counter.", name, entry.VerificationCode)
	}
	return fmt.Sprintf("Reminder %d: %s, your table is ready. Code %s.", entry.NotificationCount, name, entry.VerificationCode)
}

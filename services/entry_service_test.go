package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"waitlist-system/internal/status"
	"waitlist-system/models"
	"waitlist-system/monitoring"
	"waitlist-system/realtime"
	"waitlist-system/store"
)

func newTestStack(t *testing.T, queue *models.Queue) (*EntryService, *Dispatcher, *store.MemoryRepository, *realtime.MemoryTransport) {
	t.Helper()

	repo := store.NewMemoryRepository()
	transport := realtime.NewMemoryTransport()
	logger := zap.NewNop()
	monitor := monitoring.NewMonitor()
	router := NewRoomRouter(transport, logger)
	dispatcher := NewDispatcher(transport, router, monitor, logger)
	codes := NewCodeIssuer(repo, 4)
	tracker := NewPositionTracker(repo, nil, transport, monitor, logger, time.Second)
	svc := NewEntryService(repo, tracker, dispatcher, codes, monitor, logger, 30*time.Millisecond, 5)

	require.NoError(t, repo.SaveQueue(context.Background(), queue))

	return svc, dispatcher, repo, transport
}

func testQueue() *models.Queue {
	return &models.Queue{
		ID:                 "queue-1",
		MerchantID:         "merchant-1",
		Name:               "Main Floor",
		Active:             true,
		Accepting:          true,
		AverageServiceTime: 10,
	}
}

func join(t *testing.T, svc *EntryService, queueID, name string) *models.QueueEntry {
	t.Helper()

	entry, err := svc.Join(context.Background(), queueID, models.CustomerInfo{
		CustomerID: "customer-" + name,
		SessionID:  "session-" + name,
		Name:       name,
		PartySize:  2,
		Platform:   "web",
	})
	require.NoError(t, err)
	return entry
}

func TestJoin_AssignsDensePositions(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	a := join(t, svc, queue.ID, "alice")
	b := join(t, svc, queue.ID, "bob")
	c := join(t, svc, queue.ID, "carol")

	assert.Equal(t, 1, a.Position)
	assert.Equal(t, 2, b.Position)
	assert.Equal(t, 3, c.Position)
	assert.Equal(t, models.StatusWaiting, a.Status)

	// Estimated wait scales with position and average service time.
	assert.Equal(t, 10, a.EstimatedWait)
	assert.Equal(t, 20, b.EstimatedWait)
	assert.Equal(t, 30, c.EstimatedWait)
}

func TestJoin_RejectedWhenNotAccepting(t *testing.T) {
	queue := testQueue()
	queue.Accepting = false
	svc, _, _, _ := newTestStack(t, queue)

	_, err := svc.Join(context.Background(), queue.ID, models.CustomerInfo{Name: "alice"})
	assert.ErrorIs(t, err, status.ErrCapacityExceeded)
}

func TestJoin_RejectedAtCapacity(t *testing.T) {
	queue := testQueue()
	queue.MaxCapacity = 2
	svc, _, _, _ := newTestStack(t, queue)

	join(t, svc, queue.ID, "alice")
	join(t, svc, queue.ID, "bob")

	_, err := svc.Join(context.Background(), queue.ID, models.CustomerInfo{Name: "carol"})
	assert.ErrorIs(t, err, status.ErrCapacityExceeded)
}

func TestJoin_UnknownQueue(t *testing.T) {
	svc, _, _, _ := newTestStack(t, testQueue())

	_, err := svc.Join(context.Background(), "missing", models.CustomerInfo{Name: "alice"})
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestCall_TransitionsAndNotifies(t *testing.T) {
	queue := testQueue()
	svc, _, _, transport := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")

	called, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCalled, called.Status)
	assert.Len(t, called.VerificationCode, 4)
	assert.Regexp(t, "^[0-9]+$", called.VerificationCode)
	assert.Equal(t, 1, called.NotificationCount)
	require.NotNil(t, called.CalledAt)

	deliveries := transport.DeliveriesTo(CustomerRoom(called.CustomerID))
	require.Len(t, deliveries, 1)
	assert.Equal(t, models.EventCustomerCalled, deliveries[0].Event)

	event := deliveries[0].Payload.(models.NotificationEvent)
	assert.Equal(t, called.VerificationCode, event.VerificationCode)
	assert.Equal(t, 1, event.Attempt)
}

func TestCall_InvalidFromCalled(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)

	_, err = svc.Call(context.Background(), entry.ID)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestCall_InactiveQueue(t *testing.T) {
	queue := testQueue()
	svc, _, repo, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")

	queue.Active = false
	require.NoError(t, repo.SaveQueue(context.Background(), queue))

	_, err := svc.Call(context.Background(), entry.ID)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestCallNext_FrontOfQueue(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	a := join(t, svc, queue.ID, "alice")
	b := join(t, svc, queue.ID, "bob")

	first, err := svc.CallNext(context.Background(), queue.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, first.ID)

	second, err := svc.CallNext(context.Background(), queue.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, second.ID)

	_, err = svc.CallNext(context.Background(), queue.ID)
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestAcknowledge_RecordsEtaAndStopsRepeats(t *testing.T) {
	queue := testQueue()
	queue.AutoNotify = true
	queue.NotificationInterval = 60 // no repeat can fire during the test
	svc, dispatcher, _, transport := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	called, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)
	require.True(t, dispatcher.PendingRepeat(called.ID))

	acked, err := svc.Acknowledge(context.Background(), called.ID, 5, "parking the car")
	require.NoError(t, err)

	assert.Equal(t, models.StatusAcknowledged, acked.Status)
	assert.Equal(t, 5, acked.EtaMinutes)
	assert.Equal(t, "parking the car", acked.EtaNote)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.False(t, dispatcher.PendingRepeat(called.ID))

	// Merchant sees the acknowledgment.
	deliveries := transport.DeliveriesTo(MerchantRoom(queue.MerchantID))
	found := false
	for _, d := range deliveries {
		if d.Event == models.EventCustomerAcknowledged {
			found = true
			ack := d.Payload.(models.AckEvent)
			assert.Equal(t, 5, ack.EtaMinutes)
		}
	}
	assert.True(t, found)
}

func TestAcknowledge_Idempotent(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)

	first, err := svc.Acknowledge(context.Background(), entry.ID, 0, "")
	require.NoError(t, err)
	require.NotNil(t, first.AcknowledgedAt)

	second, err := svc.Acknowledge(context.Background(), entry.ID, 9, "ignored retry")
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	require.NotNil(t, second.AcknowledgedAt)
	assert.Equal(t, *first.AcknowledgedAt, *second.AcknowledgedAt)
	assert.Zero(t, second.EtaMinutes)
}

func TestAcknowledge_NoOpAfterSeated(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)
	_, err = svc.Seat(context.Background(), entry.ID)
	require.NoError(t, err)

	// A late acknowledgment from a flaky client succeeds without
	// touching the entry.
	acked, err := svc.Acknowledge(context.Background(), entry.ID, 5, "late")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeated, acked.Status)
	assert.Nil(t, acked.AcknowledgedAt)
	assert.Zero(t, acked.EtaMinutes)
}

func TestAcknowledge_NoOpAfterWithdrawn(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)
	_, err = svc.Withdraw(context.Background(), entry.ID)
	require.NoError(t, err)

	acked, err := svc.Acknowledge(context.Background(), entry.ID, 0, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, acked.Status)
	assert.Nil(t, acked.AcknowledgedAt)
}

func TestAcknowledge_InvalidFromWaiting(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")

	_, err := svc.Acknowledge(context.Background(), entry.ID, 0, "")
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestSeat_CompactsRemainingPositions(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	a := join(t, svc, queue.ID, "alice")
	b := join(t, svc, queue.ID, "bob")
	c := join(t, svc, queue.ID, "carol")

	_, err := svc.Call(context.Background(), a.ID)
	require.NoError(t, err)

	seated, err := svc.Seat(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeated, seated.Status)
	require.NotNil(t, seated.CompletedAt)

	ctx := context.Background()
	bAfter, err := svc.GetEntry(ctx, b.ID)
	require.NoError(t, err)
	cAfter, err := svc.GetEntry(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, bAfter.Position)
	assert.Equal(t, 2, cAfter.Position)
}

func TestSeat_FromAcknowledged(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)
	_, err = svc.Acknowledge(context.Background(), entry.ID, 0, "")
	require.NoError(t, err)

	seated, err := svc.Seat(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSeated, seated.Status)
}

func TestSeat_InvalidFromWaiting(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")

	_, err := svc.Seat(context.Background(), entry.ID)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestComplete_FromCalled(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)

	done, err := svc.Complete(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
}

func TestNoShow_FromCalled(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)

	gone, err := svc.NoShow(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoShow, gone.Status)
}

func TestWithdraw_FromWaitingAndCalled(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	a := join(t, svc, queue.ID, "alice")
	b := join(t, svc, queue.ID, "bob")

	left, err := svc.Withdraw(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, left.Status)

	_, err = svc.Call(context.Background(), b.ID)
	require.NoError(t, err)
	left, err = svc.Withdraw(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusWithdrawn, left.Status)
}

func TestWithdraw_InvalidFromSeated(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)
	_, err = svc.Seat(context.Background(), entry.ID)
	require.NoError(t, err)

	_, err = svc.Withdraw(context.Background(), entry.ID)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestCancel_OnlyFromWaiting(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	a := join(t, svc, queue.ID, "alice")
	b := join(t, svc, queue.ID, "bob")

	cancelled, err := svc.Cancel(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	_, err = svc.Call(context.Background(), b.ID)
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), b.ID)
	assert.ErrorIs(t, err, status.ErrInvalidTransition)
}

func TestRepeat_StopsAtBudget(t *testing.T) {
	queue := testQueue()
	queue.AutoNotify = true
	queue.MaxRepeats = 3
	svc, dispatcher, _, transport := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	called, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, called.NotificationCount)
	assert.False(t, called.RepeatExhausted)

	// The default 30ms interval drives the repeat cycle until the budget
	// of three notifications is spent.
	require.Eventually(t, func() bool {
		current, err := svc.GetEntry(context.Background(), entry.ID)
		return err == nil && current.NotificationCount == 3 && current.RepeatExhausted
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, dispatcher.PendingRepeat(entry.ID))

	assert.Eventually(t, func() bool {
		return len(transport.DeliveriesTo(CustomerRoom(entry.CustomerID))) == 3
	}, time.Second, 10*time.Millisecond)

	// No further notifications after exhaustion.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, transport.DeliveriesTo(CustomerRoom(entry.CustomerID)), 3)
}

func TestRepeat_EscalatesAttemptNumber(t *testing.T) {
	queue := testQueue()
	queue.AutoNotify = true
	queue.MaxRepeats = 2
	svc, _, _, transport := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(transport.DeliveriesTo(CustomerRoom(entry.CustomerID))) == 2
	}, 2*time.Second, 10*time.Millisecond)

	deliveries := transport.DeliveriesTo(CustomerRoom(entry.CustomerID))
	first := deliveries[0].Payload.(models.NotificationEvent)
	second := deliveries[1].Payload.(models.NotificationEvent)
	assert.Equal(t, 1, first.Attempt)
	assert.Equal(t, 2, second.Attempt)
	assert.Greater(t, second.Intensity, first.Intensity)
}

func TestRepeat_HaltedByAcknowledge(t *testing.T) {
	queue := testQueue()
	queue.AutoNotify = true
	queue.NotificationInterval = 60 // repeats only fire if the ack fails to cancel
	svc, _, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)

	_, err = svc.Acknowledge(context.Background(), entry.ID, 0, "")
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	current, err := svc.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.NotificationCount)
}

func TestCall_FirstNotificationDeliveredBeforeReturn(t *testing.T) {
	queue := testQueue()
	queue.AutoNotify = true
	queue.MaxRepeats = 2
	svc, _, _, transport := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	_, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)

	// The first attempt is already out when Call returns, so no repeat
	// can overtake it and swallow it at the suppression watermark.
	deliveries := transport.DeliveriesTo(CustomerRoom(entry.CustomerID))
	require.Len(t, deliveries, 1)
	assert.Equal(t, 1, deliveries[0].Payload.(models.NotificationEvent).Attempt)

	require.Eventually(t, func() bool {
		return len(transport.DeliveriesTo(CustomerRoom(entry.CustomerID))) == 2
	}, 2*time.Second, 10*time.Millisecond)

	deliveries = transport.DeliveriesTo(CustomerRoom(entry.CustomerID))
	assert.Equal(t, 1, deliveries[0].Payload.(models.NotificationEvent).Attempt)
	assert.Equal(t, 2, deliveries[1].Payload.(models.NotificationEvent).Attempt)
}

func TestCall_ManualQueueGetsNoRepeats(t *testing.T) {
	queue := testQueue()
	queue.AutoNotify = false
	svc, dispatcher, _, _ := newTestStack(t, queue)

	entry := join(t, svc, queue.ID, "alice")
	called, err := svc.Call(context.Background(), entry.ID)
	require.NoError(t, err)

	assert.True(t, called.RepeatExhausted)
	assert.False(t, dispatcher.PendingRepeat(entry.ID))
}

func TestDashboard_ListsActiveEntries(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	a := join(t, svc, queue.ID, "alice")
	join(t, svc, queue.ID, "bob")

	_, err := svc.Call(context.Background(), a.ID)
	require.NoError(t, err)

	entries, err := svc.Dashboard(context.Background(), queue.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, models.StatusCalled, entries[0].Status)

	_, err = svc.Dashboard(context.Background(), "missing")
	assert.ErrorIs(t, err, status.ErrNotFound)
}

func TestVerificationCodes_DistinctAmongCalled(t *testing.T) {
	queue := testQueue()
	svc, _, _, _ := newTestStack(t, queue)

	a := join(t, svc, queue.ID, "alice")
	b := join(t, svc, queue.ID, "bob")

	calledA, err := svc.Call(context.Background(), a.ID)
	require.NoError(t, err)
	calledB, err := svc.Call(context.Background(), b.ID)
	require.NoError(t, err)

	assert.NotEqual(t, calledA.VerificationCode, calledB.VerificationCode)
}

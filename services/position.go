package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"waitlist-system/models"
	"waitlist-system/monitoring"
	"waitlist-system/realtime"
	"waitlist-system/store"
)

const activeQueuesKey = "active_queues"

// PositionTracker assigns dense 1-based positions to a queue's active
// entries and derives estimated waits. Positions are a pure function of
// the active set; the tracker holds no state of its own. Redis carries
// best-effort position snapshots and a metrics hash for fast reads;
// the store remains authoritative.
type PositionTracker struct {
	repo        store.Repository
	redis       *redis.Client // optional, nil disables snapshots
	transport   realtime.Transport
	monitor     *monitoring.Monitor
	logger      *zap.Logger
	snapshotTTL time.Duration
}

func NewPositionTracker(repo store.Repository, redisClient *redis.Client, transport realtime.Transport, monitor *monitoring.Monitor, logger *zap.Logger, snapshotTTL time.Duration) *PositionTracker {
	return &PositionTracker{
		repo:        repo,
		redis:       redisClient,
		transport:   transport,
		monitor:     monitor,
		logger:      logger,
		snapshotTTL: snapshotTTL,
	}
}

// Recompute reranks the queue's active entries and persists any changed
// position. Callers serialize invocations per queue; the tracker itself
// does not lock. Every changed position is broadcast to the queue room
// so clients converge on the authoritative numbering.
func (t *PositionTracker) Recompute(ctx context.Context, queue *models.Queue) ([]*models.QueueEntry, error) {
	entries, err := t.repo.ListActiveEntries(ctx, queue.ID)
	if err != nil {
		return nil, err
	}

	waiting, called := 0, 0
	for i, entry := range entries {
		position := i + 1
		estimated := position * queue.AverageServiceTime
		if estimated < 0 {
			estimated = 0
		}

		switch entry.Status {
		case models.StatusWaiting:
			waiting++
		case models.StatusCalled:
			called++
		}

		if entry.Position == position && entry.EstimatedWait == estimated {
			t.snapshotPosition(ctx, queue.ID, entry.ID, position)
			continue
		}

		updated, err := t.repo.UpdateEntry(ctx, entry.ID, store.EntryPatch{
			Position:      store.IntPtr(position),
			EstimatedWait: store.IntPtr(estimated),
		})
		if err != nil {
			return nil, err
		}
		entries[i] = updated

		t.snapshotPosition(ctx, queue.ID, entry.ID, position)
		t.broadcastPosition(ctx, queue.ID, updated)
	}

	t.monitor.SetQueueDepth(queue.ID, waiting, called)
	t.updateQueueMetrics(ctx, queue.ID, entries)

	return entries, nil
}

func (t *PositionTracker) broadcastPosition(ctx context.Context, queueID string, entry *models.QueueEntry) {
	update := models.PositionUpdate{
		EntryID:       entry.ID,
		QueueID:       queueID,
		Position:      entry.Position,
		EstimatedWait: entry.EstimatedWait,
	}
	if err := t.transport.Broadcast(ctx, QueueRoom(queueID), models.EventQueuePosition, update); err != nil {
		t.logger.Warn("position broadcast failed",
			zap.String("queue_id", queueID), zap.String("entry_id", entry.ID), zap.Error(err))
	}
}

func (t *PositionTracker) snapshotPosition(ctx context.Context, queueID, entryID string, position int) {
	if t.redis == nil {
		return
	}
	key := fmt.Sprintf("queue:position:%s:%s", queueID, entryID)
	if err := t.redis.Set(ctx, key, position, t.snapshotTTL).Err(); err != nil {
		t.logger.Warn("position snapshot failed", zap.String("key", key), zap.Error(err))
	}
}

func (t *PositionTracker) updateQueueMetrics(ctx context.Context, queueID string, entries []*models.QueueEntry) {
	if t.redis == nil {
		return
	}

	if len(entries) == 0 {
		t.redis.SRem(ctx, activeQueuesKey, queueID)
		t.redis.Del(ctx, fmt.Sprintf("queue:metrics:%s", queueID))
		return
	}

	var totalWait float64
	waiting := 0
	for _, entry := range entries {
		if entry.Status == models.StatusWaiting {
			totalWait += time.Since(entry.JoinedAt).Minutes()
			waiting++
		}
	}
	avgWait := 0.0
	if waiting > 0 {
		avgWait = totalWait / float64(waiting)
	}

	t.redis.SAdd(ctx, activeQueuesKey, queueID)
	t.redis.HSet(ctx, fmt.Sprintf("queue:metrics:%s", queueID), map[string]any{
		"total_active": len(entries),
		"waiting":      waiting,
		"avg_wait_min": avgWait,
		"last_updated": time.Now().Unix(),
	})
}

// SnapshotPosition returns the cached position for an entry, or 0 when
// no snapshot exists. Handlers use it to answer position polls without
// hitting the store.
func (t *PositionTracker) SnapshotPosition(ctx context.Context, queueID, entryID string) int {
	if t.redis == nil {
		return 0
	}
	position, err := t.redis.Get(ctx, fmt.Sprintf("queue:position:%s:%s", queueID, entryID)).Int()
	if err != nil {
		return 0
	}
	return position
}

// ActiveQueueIDs lists queues known to have active entries, used by the
// reconciliation loop and startup restore.
func (t *PositionTracker) ActiveQueueIDs(ctx context.Context) []string {
	if t.redis == nil {
		return nil
	}
	ids, err := t.redis.SMembers(ctx, activeQueuesKey).Result()
	if err != nil {
		t.logger.Warn("active queue listing failed", zap.Error(err))
		return nil
	}
	return ids
}

// ReconcileLoop periodically reranks every active queue so clients that
// joined mid-update converge. Runs until ctx is cancelled.
func (t *PositionTracker) ReconcileLoop(ctx context.Context, interval time.Duration, lock func(queueID string, fn func())) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, queueID := range t.ActiveQueueIDs(ctx) {
				queue, err := t.repo.GetQueue(ctx, queueID)
				if err != nil {
					t.logger.Warn("reconcile skipped", zap.String("queue_id", queueID), zap.Error(err))
					continue
				}
				lock(queueID, func() {
					if _, err := t.Recompute(ctx, queue); err != nil {
						t.logger.Warn("reconcile failed", zap.String("queue_id", queueID), zap.Error(err))
					}
				})
			}
		case <-ctx.Done():
			return
		}
	}
}

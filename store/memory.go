package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"waitlist-system/internal/status"
	"waitlist-system/models"
)

// MemoryRepository is an in-memory Repository used by unit tests and
// local development without a database.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*models.QueueEntry
	queues  map[string]*models.Queue
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]*models.QueueEntry),
		queues:  make(map[string]*models.Queue),
	}
}

func (r *MemoryRepository) CreateEntry(_ context.Context, queueID string, info models.CustomerInfo) (*models.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.queues[queueID]; !ok {
		return nil, status.ErrNotFound
	}

	entry := &models.QueueEntry{
		ID:              uuid.NewString(),
		QueueID:         queueID,
		CustomerID:      info.CustomerID,
		SessionID:       info.SessionID,
		CustomerName:    info.Name,
		ContactHandle:   info.ContactHandle,
		PartySize:       info.PartySize,
		SpecialRequests: info.SpecialRequests,
		Platform:        info.Platform,
		Status:          models.StatusWaiting,
		JoinedAt:        time.Now(),
	}
	r.entries[entry.ID] = entry

	clone := *entry
	return &clone, nil
}

func (r *MemoryRepository) GetEntry(_ context.Context, entryID string) (*models.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[entryID]
	if !ok {
		return nil, status.ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (r *MemoryRepository) UpdateEntry(_ context.Context, entryID string, patch EntryPatch) (*models.QueueEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[entryID]
	if !ok {
		return nil, status.ErrNotFound
	}
	if patch.ExpectStatus != "" && entry.Status != patch.ExpectStatus {
		return nil, status.ErrConflict
	}

	applyPatch(entry, patch)

	clone := *entry
	return &clone, nil
}

func applyPatch(entry *models.QueueEntry, patch EntryPatch) {
	if patch.Status != nil {
		entry.Status = *patch.Status
	}
	if patch.Position != nil {
		entry.Position = *patch.Position
	}
	if patch.EstimatedWait != nil {
		entry.EstimatedWait = *patch.EstimatedWait
	}
	if patch.VerificationCode != nil {
		entry.VerificationCode = *patch.VerificationCode
	}
	if patch.NotificationCount != nil {
		entry.NotificationCount = *patch.NotificationCount
	}
	if patch.RepeatExhausted != nil {
		entry.RepeatExhausted = *patch.RepeatExhausted
	}
	if patch.EtaMinutes != nil {
		entry.EtaMinutes = *patch.EtaMinutes
	}
	if patch.EtaNote != nil {
		entry.EtaNote = *patch.EtaNote
	}
	if patch.CalledAt != nil {
		entry.CalledAt = patch.CalledAt
	}
	if patch.AcknowledgedAt != nil {
		entry.AcknowledgedAt = patch.AcknowledgedAt
	}
	if patch.CompletedAt != nil {
		entry.CompletedAt = patch.CompletedAt
	}
}

func (r *MemoryRepository) ListActiveEntries(_ context.Context, queueID string) ([]*models.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var active []*models.QueueEntry
	for _, entry := range r.entries {
		if entry.QueueID == queueID && entry.Status.Active() {
			clone := *entry
			active = append(active, &clone)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].JoinedAt.Equal(active[j].JoinedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].JoinedAt.Before(active[j].JoinedAt)
	})

	return active, nil
}

func (r *MemoryRepository) GetQueue(_ context.Context, queueID string) (*models.Queue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	queue, ok := r.queues[queueID]
	if !ok {
		return nil, status.ErrNotFound
	}
	clone := *queue
	return &clone, nil
}

func (r *MemoryRepository) SaveQueue(_ context.Context, queue *models.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if queue.ID == "" {
		queue.ID = uuid.NewString()
	}
	clone := *queue
	r.queues[queue.ID] = &clone
	return nil
}

// Package store persists queues and queue entries. The core services
// only see the Repository interface; PocketBase backs it in production
// and a mutex-guarded map backs it in tests.
package store

import (
	"context"
	"time"

	"waitlist-system/models"
)

// EntryPatch is a partial update for a queue entry. Nil fields are left
// untouched. ExpectStatus, when set, is an optimistic-concurrency
// precondition: the update fails with status.ErrConflict if the stored
// status differs.
type EntryPatch struct {
	ExpectStatus models.EntryStatus

	Status            *models.EntryStatus
	Position          *int
	EstimatedWait     *int
	VerificationCode  *string
	NotificationCount *int
	RepeatExhausted   *bool
	EtaMinutes        *int
	EtaNote           *string

	CalledAt       *time.Time
	AcknowledgedAt *time.Time
	CompletedAt    *time.Time
}

type Repository interface {
	// CreateEntry persists a new waiting entry for the queue and returns
	// it with its assigned ID and join timestamp.
	CreateEntry(ctx context.Context, queueID string, info models.CustomerInfo) (*models.QueueEntry, error)

	// GetEntry returns the entry or status.ErrNotFound.
	GetEntry(ctx context.Context, entryID string) (*models.QueueEntry, error)

	// UpdateEntry applies the patch and returns the updated entry.
	// Fails with status.ErrNotFound or status.ErrConflict.
	UpdateEntry(ctx context.Context, entryID string, patch EntryPatch) (*models.QueueEntry, error)

	// ListActiveEntries returns the queue's waiting/called/acknowledged
	// entries ordered by joinedAt ascending, ties broken by entry ID.
	ListActiveEntries(ctx context.Context, queueID string) ([]*models.QueueEntry, error)

	// GetQueue returns the queue configuration or status.ErrNotFound.
	GetQueue(ctx context.Context, queueID string) (*models.Queue, error)

	// SaveQueue creates or replaces a queue configuration.
	SaveQueue(ctx context.Context, queue *models.Queue) error
}

func statusPtr(s models.EntryStatus) *models.EntryStatus { return &s }

// Helpers for building patches without patch-literal noise at call sites.

func StatusPatch(expect, next models.EntryStatus) EntryPatch {
	return EntryPatch{ExpectStatus: expect, Status: statusPtr(next)}
}

func IntPtr(v int) *int              { return &v }
func StrPtr(v string) *string        { return &v }
func BoolPtr(v bool) *bool           { return &v }
func TimePtr(t time.Time) *time.Time { return &t }

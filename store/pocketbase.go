package store

import (
	"context"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"waitlist-system/internal/status"
	"waitlist-system/models"
)

const (
	collectionEntries = "queue_entries"
	collectionQueues  = "queues"
)

// PocketBaseRepository stores queues and entries as PocketBase records.
type PocketBaseRepository struct {
	app core.App
}

func NewPocketBaseRepository(app core.App) *PocketBaseRepository {
	return &PocketBaseRepository{app: app}
}

func (r *PocketBaseRepository) CreateEntry(_ context.Context, queueID string, info models.CustomerInfo) (*models.QueueEntry, error) {
	if _, err := r.app.FindRecordById(collectionQueues, queueID); err != nil {
		return nil, status.ErrNotFound
	}

	collection, err := r.app.FindCollectionByNameOrId(collectionEntries)
	if err != nil {
		return nil, err
	}

	record := core.NewRecord(collection)
	record.Set("queue_id", queueID)
	record.Set("customer_id", info.CustomerID)
	record.Set("session_id", info.SessionID)
	record.Set("customer_name", info.Name)
	record.Set("contact_handle", info.ContactHandle)
	record.Set("party_size", info.PartySize)
	record.Set("special_requests", info.SpecialRequests)
	record.Set("platform", info.Platform)
	record.Set("status", string(models.StatusWaiting))
	record.Set("joined_at", time.Now())

	if err := r.app.Save(record); err != nil {
		return nil, err
	}

	return recordToEntry(record), nil
}

func (r *PocketBaseRepository) GetEntry(_ context.Context, entryID string) (*models.QueueEntry, error) {
	record, err := r.app.FindRecordById(collectionEntries, entryID)
	if err != nil {
		return nil, status.ErrNotFound
	}
	return recordToEntry(record), nil
}

func (r *PocketBaseRepository) UpdateEntry(_ context.Context, entryID string, patch EntryPatch) (*models.QueueEntry, error) {
	var updated *models.QueueEntry

	err := r.app.RunInTransaction(func(txApp core.App) error {
		record, err := txApp.FindRecordById(collectionEntries, entryID)
		if err != nil {
			return status.ErrNotFound
		}

		if patch.ExpectStatus != "" && record.GetString("status") != string(patch.ExpectStatus) {
			return status.ErrConflict
		}

		if patch.Status != nil {
			record.Set("status", string(*patch.Status))
		}
		if patch.Position != nil {
			record.Set("position", *patch.Position)
		}
		if patch.EstimatedWait != nil {
			record.Set("estimated_wait", *patch.EstimatedWait)
		}
		if patch.VerificationCode != nil {
			record.Set("verification_code", *patch.VerificationCode)
		}
		if patch.NotificationCount != nil {
			record.Set("notification_count", *patch.NotificationCount)
		}
		if patch.RepeatExhausted != nil {
			record.Set("repeat_exhausted", *patch.RepeatExhausted)
		}
		if patch.EtaMinutes != nil {
			record.Set("eta_minutes", *patch.EtaMinutes)
		}
		if patch.EtaNote != nil {
			record.Set("eta_note", *patch.EtaNote)
		}
		if patch.CalledAt != nil {
			record.Set("called_at", *patch.CalledAt)
		}
		if patch.AcknowledgedAt != nil {
			record.Set("acknowledged_at", *patch.AcknowledgedAt)
		}
		if patch.CompletedAt != nil {
			record.Set("completed_at", *patch.CompletedAt)
		}

		if err := txApp.Save(record); err != nil {
			return err
		}

		updated = recordToEntry(record)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *PocketBaseRepository) ListActiveEntries(_ context.Context, queueID string) ([]*models.QueueEntry, error) {
	records := []*core.Record{}
	err := r.app.RecordQuery(collectionEntries).
		AndWhere(dbx.HashExp{"queue_id": queueID}).
		AndWhere(dbx.In("status",
			string(models.StatusWaiting),
			string(models.StatusCalled),
			string(models.StatusAcknowledged),
		)).
		OrderBy("joined_at ASC", "id ASC").
		All(&records)
	if err != nil {
		return nil, err
	}

	entries := make([]*models.QueueEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, recordToEntry(record))
	}
	return entries, nil
}

func (r *PocketBaseRepository) GetQueue(_ context.Context, queueID string) (*models.Queue, error) {
	record, err := r.app.FindRecordById(collectionQueues, queueID)
	if err != nil {
		return nil, status.ErrNotFound
	}

	return &models.Queue{
		ID:                   record.Id,
		MerchantID:           record.GetString("merchant_id"),
		Name:                 record.GetString("name"),
		Active:               record.GetBool("active"),
		Accepting:            record.GetBool("accepting"),
		MaxCapacity:          record.GetInt("max_capacity"),
		AverageServiceTime:   record.GetInt("average_service_time"),
		AutoNotify:           record.GetBool("auto_notify"),
		NotificationInterval: record.GetInt("notification_interval"),
		MaxRepeats:           record.GetInt("max_repeats"),
	}, nil
}

func (r *PocketBaseRepository) SaveQueue(_ context.Context, queue *models.Queue) error {
	var record *core.Record

	if queue.ID != "" {
		found, err := r.app.FindRecordById(collectionQueues, queue.ID)
		if err == nil {
			record = found
		}
	}

	if record == nil {
		collection, err := r.app.FindCollectionByNameOrId(collectionQueues)
		if err != nil {
			return err
		}
		record = core.NewRecord(collection)
	}

	record.Set("merchant_id", queue.MerchantID)
	record.Set("name", queue.Name)
	record.Set("active", queue.Active)
	record.Set("accepting", queue.Accepting)
	record.Set("max_capacity", queue.MaxCapacity)
	record.Set("average_service_time", queue.AverageServiceTime)
	record.Set("auto_notify", queue.AutoNotify)
	record.Set("notification_interval", queue.NotificationInterval)
	record.Set("max_repeats", queue.MaxRepeats)

	if err := r.app.Save(record); err != nil {
		return err
	}

	queue.ID = record.Id
	return nil
}

func recordToEntry(record *core.Record) *models.QueueEntry {
	entry := &models.QueueEntry{
		ID:                record.Id,
		QueueID:           record.GetString("queue_id"),
		CustomerID:        record.GetString("customer_id"),
		SessionID:         record.GetString("session_id"),
		CustomerName:      record.GetString("customer_name"),
		ContactHandle:     record.GetString("contact_handle"),
		PartySize:         record.GetInt("party_size"),
		SpecialRequests:   record.GetString("special_requests"),
		Platform:          record.GetString("platform"),
		Position:          record.GetInt("position"),
		EstimatedWait:     record.GetInt("estimated_wait"),
		Status:            models.EntryStatus(record.GetString("status")),
		VerificationCode:  record.GetString("verification_code"),
		NotificationCount: record.GetInt("notification_count"),
		RepeatExhausted:   record.GetBool("repeat_exhausted"),
		EtaMinutes:        record.GetInt("eta_minutes"),
		EtaNote:           record.GetString("eta_note"),
		JoinedAt:          record.GetDateTime("joined_at").Time(),
	}

	if t := record.GetDateTime("called_at").Time(); !t.IsZero() {
		entry.CalledAt = &t
	}
	if t := record.GetDateTime("acknowledged_at").Time(); !t.IsZero() {
		entry.AcknowledgedAt = &t
	}
	if t := record.GetDateTime("completed_at").Time(); !t.IsZero() {
		entry.CompletedAt = &t
	}

	return entry
}

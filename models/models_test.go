package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryStatus_Terminal(t *testing.T) {
	terminal := []EntryStatus{StatusSeated, StatusCompleted, StatusNoShow, StatusWithdrawn, StatusCancelled}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "expected %s to be terminal", s)
	}

	live := []EntryStatus{StatusWaiting, StatusCalled, StatusAcknowledged}
	for _, s := range live {
		assert.False(t, s.Terminal(), "expected %s to be non-terminal", s)
	}
}

func TestEntryStatus_Active(t *testing.T) {
	active := []EntryStatus{StatusWaiting, StatusCalled, StatusAcknowledged}
	for _, s := range active {
		assert.True(t, s.Active(), "expected %s to be active", s)
	}

	inactive := []EntryStatus{StatusSeated, StatusCompleted, StatusNoShow, StatusWithdrawn, StatusCancelled}
	for _, s := range inactive {
		assert.False(t, s.Active(), "expected %s to be inactive", s)
	}
}

func TestQueue_RepeatInterval(t *testing.T) {
	fallback := 3 * time.Minute

	q := Queue{NotificationInterval: 5}
	assert.Equal(t, 5*time.Minute, q.RepeatInterval(fallback))

	q = Queue{}
	assert.Equal(t, fallback, q.RepeatInterval(fallback))
}

func TestQueue_RepeatBudget(t *testing.T) {
	q := Queue{MaxRepeats: 3}
	assert.Equal(t, 3, q.RepeatBudget(5))

	q = Queue{}
	assert.Equal(t, 5, q.RepeatBudget(5))
}

func TestQueueEntry_JSONSerialization(t *testing.T) {
	joinedAt := time.Now()
	calledAt := joinedAt.Add(10 * time.Minute)

	entry := QueueEntry{
		ID:                "entry-123",
		QueueID:           "queue-456",
		CustomerID:        "customer-789",
		SessionID:         "session-abc",
		CustomerName:      "Somchai",
		PartySize:         4,
		Platform:          "web",
		Position:          2,
		EstimatedWait:     20,
		Status:            StatusCalled,
		VerificationCode:  "4821",
		NotificationCount: 1,
		JoinedAt:          joinedAt,
		CalledAt:          &calledAt,
	}

	jsonData, err := json.Marshal(entry)
	require.NoError(t, err)

	var unmarshaled QueueEntry
	err = json.Unmarshal(jsonData, &unmarshaled)
	require.NoError(t, err)

	assert.Equal(t, entry.ID, unmarshaled.ID)
	assert.Equal(t, entry.QueueID, unmarshaled.QueueID)
	assert.Equal(t, entry.CustomerName, unmarshaled.CustomerName)
	assert.Equal(t, entry.PartySize, unmarshaled.PartySize)
	assert.Equal(t, entry.Position, unmarshaled.Position)
	assert.Equal(t, entry.Status, unmarshaled.Status)
	assert.Equal(t, entry.VerificationCode, unmarshaled.VerificationCode)
	assert.WithinDuration(t, entry.JoinedAt, unmarshaled.JoinedAt, time.Second)
	require.NotNil(t, unmarshaled.CalledAt)
	assert.WithinDuration(t, *entry.CalledAt, *unmarshaled.CalledAt, time.Second)
}

func TestQueueEntry_OmitsUnsetTimestamps(t *testing.T) {
	entry := QueueEntry{
		ID:       "entry-123",
		QueueID:  "queue-456",
		Status:   StatusWaiting,
		JoinedAt: time.Now(),
	}

	jsonData, err := json.Marshal(entry)
	require.NoError(t, err)

	assert.NotContains(t, string(jsonData), "called_at")
	assert.NotContains(t, string(jsonData), "acknowledged_at")
	assert.NotContains(t, string(jsonData), "completed_at")
	assert.NotContains(t, string(jsonData), "verification_code")

	var unmarshaled QueueEntry
	err = json.Unmarshal(jsonData, &unmarshaled)
	require.NoError(t, err)
	assert.Nil(t, unmarshaled.CalledAt)
	assert.Nil(t, unmarshaled.AcknowledgedAt)
	assert.Nil(t, unmarshaled.CompletedAt)
}

func TestNotificationEvent_JSONSerialization(t *testing.T) {
	event := NotificationEvent{
		EntryID:          "entry-123",
		QueueID:          "queue-456",
		VerificationCode: "7314",
		Position:         1,
		Message:          "It's your turn!",
		Attempt:          2,
		Intensity:        2,
	}

	jsonData, err := json.Marshal(event)
	require.NoError(t, err)

	var unmarshaled NotificationEvent
	err = json.Unmarshal(jsonData, &unmarshaled)
	require.NoError(t, err)

	assert.Equal(t, event, unmarshaled)
}

func TestAckRequest_JSONSerialization(t *testing.T) {
	raw := `{"entry_id":"entry-123","eta_minutes":5,"eta_note":"parking"}`

	var req AckRequest
	err := json.Unmarshal([]byte(raw), &req)
	require.NoError(t, err)

	assert.Equal(t, "entry-123", req.EntryID)
	assert.Equal(t, 5, req.EtaMinutes)
	assert.Equal(t, "parking", req.EtaNote)
}

package models

// Real-time event names shared between the dispatcher, the inbound
// listener and the browser clients.
const (
	EventCustomerCalled       = "customer_called"
	EventQueuePosition        = "queue_position"
	EventCustomerAcknowledged = "customer_acknowledged"
	EventEntryUpdate          = "entry_update"
	EventAcknowledge          = "acknowledge" // inbound, client -> server
)

// NotificationEvent is one dispatch attempt for a called entry. It is
// transient; nothing here is persisted.
type NotificationEvent struct {
	EntryID          string `json:"entry_id"`
	QueueID          string `json:"queue_id"`
	VerificationCode string `json:"verification_code"`
	Position         int    `json:"position"`
	Message          string `json:"message"`
	Attempt          int    `json:"attempt"`
	Intensity        int    `json:"intensity"`
}

// PositionUpdate is broadcast to the queue room so every waiting client
// converges to its authoritative position.
type PositionUpdate struct {
	EntryID       string `json:"entry_id"`
	QueueID       string `json:"queue_id"`
	Position      int    `json:"position"`
	EstimatedWait int    `json:"estimated_wait"`
}

// AckEvent mirrors a customer's acknowledgment to the merchant room.
type AckEvent struct {
	EntryID    string `json:"entry_id"`
	QueueID    string `json:"queue_id"`
	EtaMinutes int    `json:"eta_minutes,omitempty"`
	EtaNote    string `json:"eta_note,omitempty"`
}

// AckRequest is the inbound acknowledgment payload received over the
// realtime channel or the REST endpoint.
type AckRequest struct {
	EntryID    string `json:"entry_id"`
	EtaMinutes int    `json:"eta_minutes,omitempty"`
	EtaNote    string `json:"eta_note,omitempty"`
}

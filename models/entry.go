package models

import (
	"time"
)

type EntryStatus string

const (
	StatusWaiting      EntryStatus = "waiting"
	StatusCalled       EntryStatus = "called"
	StatusAcknowledged EntryStatus = "acknowledged"
	StatusSeated       EntryStatus = "seated"
	StatusCompleted    EntryStatus = "completed"
	StatusNoShow       EntryStatus = "no_show"
	StatusWithdrawn    EntryStatus = "withdrawn"
	StatusCancelled    EntryStatus = "cancelled"
)

// Terminal reports whether no further transition can leave this status.
func (s EntryStatus) Terminal() bool {
	switch s {
	case StatusSeated, StatusCompleted, StatusNoShow, StatusWithdrawn, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the entry still counts toward queue capacity
// and position numbering. Acknowledged entries stay in the pool on
// purpose: the customer is on their way, so the entries behind them
// keep their numbers until the slot is actually freed.
func (s EntryStatus) Active() bool {
	return s == StatusWaiting || s == StatusCalled || s == StatusAcknowledged
}

// QueueEntry is one customer's occupancy of one queue slot.
type QueueEntry struct {
	ID              string      `json:"id"`
	QueueID         string      `json:"queue_id"`
	CustomerID      string      `json:"customer_id"`
	SessionID       string      `json:"session_id"`
	CustomerName    string      `json:"customer_name"`
	ContactHandle   string      `json:"contact_handle,omitempty"`
	PartySize       int         `json:"party_size"`
	SpecialRequests string      `json:"special_requests,omitempty"`
	Platform        string      `json:"platform"`
	Position        int         `json:"position"`
	EstimatedWait   int         `json:"estimated_wait"` // minutes
	Status          EntryStatus `json:"status"`

	VerificationCode  string `json:"verification_code,omitempty"`
	NotificationCount int    `json:"notification_count"`
	RepeatExhausted   bool   `json:"repeat_exhausted"`
	EtaMinutes        int    `json:"eta_minutes,omitempty"`
	EtaNote           string `json:"eta_note,omitempty"`

	JoinedAt       time.Time  `json:"joined_at"`
	CalledAt       *time.Time `json:"called_at,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// CustomerInfo is the join-request payload used to create an entry.
type CustomerInfo struct {
	CustomerID      string `json:"customer_id"`
	SessionID       string `json:"session_id"`
	Name            string `json:"name"`
	ContactHandle   string `json:"contact_handle,omitempty"`
	PartySize       int    `json:"party_size"`
	SpecialRequests string `json:"special_requests,omitempty"`
	Platform        string `json:"platform"`
}

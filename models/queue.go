package models

import (
	"time"
)

// Queue is a named FIFO of entries belonging to one merchant.
type Queue struct {
	ID         string `json:"id"`
	MerchantID string `json:"merchant_id"`
	Name       string `json:"name"`

	Active    bool `json:"active"`
	Accepting bool `json:"accepting"`

	MaxCapacity        int `json:"max_capacity"`
	AverageServiceTime int `json:"average_service_time"` // minutes

	AutoNotify           bool `json:"auto_notify"`
	NotificationInterval int  `json:"notification_interval"` // minutes, 0 means process default
	MaxRepeats           int  `json:"max_repeats"`           // 0 means process default
}

// RepeatInterval resolves the per-queue notification interval,
// falling back to the given process default.
func (q *Queue) RepeatInterval(fallback time.Duration) time.Duration {
	if q.NotificationInterval > 0 {
		return time.Duration(q.NotificationInterval) * time.Minute
	}
	return fallback
}

// RepeatBudget resolves the per-queue repeat cap, falling back to the
// given process default.
func (q *Queue) RepeatBudget(fallback int) int {
	if q.MaxRepeats > 0 {
		return q.MaxRepeats
	}
	return fallback
}

type QueueMetrics struct {
	QueueID      string    `json:"queue_id"`
	WaitingCount int       `json:"waiting_count"`
	CalledCount  int       `json:"called_count"`
	AvgWaitTime  float64   `json:"avg_wait_time"`
	LastUpdated  time.Time `json:"last_updated"`
}

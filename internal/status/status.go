package status

import "errors"

var (
	ErrInvalidTransition = errors.New("entry: transition not allowed from current status")
	ErrNotFound          = errors.New("store: record not found")
	ErrConflict          = errors.New("store: stored status does not match expected status")
	ErrCapacityExceeded  = errors.New("queue: queue is full or not accepting new customers")
	ErrDeliveryFailure   = errors.New("realtime: broadcast delivery failed")
)

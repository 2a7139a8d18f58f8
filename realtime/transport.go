// Package realtime carries events between the queue core and connected
// browsers. Rooms are named broadcast channels; a connection receives an
// event when any of its joined rooms is the broadcast target.
package realtime

import (
	"context"
)

// Envelope is the wire shape of every broadcast and inbound message.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type Transport interface {
	// JoinRoom and LeaveRoom are idempotent bookkeeping; joining a room
	// twice is a no-op.
	JoinRoom(connectionID, roomID string) error
	LeaveRoom(connectionID, roomID string) error

	// Broadcast emits one event to every connection in the room.
	Broadcast(ctx context.Context, roomID, eventName string, payload any) error
}

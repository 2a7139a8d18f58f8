package realtime

import (
	"context"
	"sync"
)

// Delivery is one recorded broadcast, kept by MemoryTransport for
// assertions in tests.
type Delivery struct {
	RoomID  string
	Event   string
	Payload any
}

// MemoryTransport is an in-process Transport used by tests. It records
// every broadcast and tracks room membership per connection.
type MemoryTransport struct {
	mu         sync.Mutex
	rooms      map[string]map[string]bool // connectionID -> roomID set
	deliveries []Delivery

	// FailBroadcast, when set, makes Broadcast return its error. Used to
	// exercise delivery-failure handling.
	FailBroadcast error
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{rooms: make(map[string]map[string]bool)}
}

func (t *MemoryTransport) JoinRoom(connectionID, roomID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rooms[connectionID] == nil {
		t.rooms[connectionID] = make(map[string]bool)
	}
	t.rooms[connectionID][roomID] = true
	return nil
}

func (t *MemoryTransport) LeaveRoom(connectionID, roomID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.rooms[connectionID], roomID)
	return nil
}

func (t *MemoryTransport) Broadcast(_ context.Context, roomID, eventName string, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.FailBroadcast != nil {
		return t.FailBroadcast
	}

	t.deliveries = append(t.deliveries, Delivery{RoomID: roomID, Event: eventName, Payload: payload})
	return nil
}

// Deliveries returns a copy of all recorded broadcasts.
func (t *MemoryTransport) Deliveries() []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Delivery, len(t.deliveries))
	copy(out, t.deliveries)
	return out
}

// DeliveriesTo returns recorded broadcasts for one room.
func (t *MemoryTransport) DeliveriesTo(roomID string) []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Delivery
	for _, d := range t.deliveries {
		if d.RoomID == roomID {
			out = append(out, d)
		}
	}
	return out
}

// Joined reports whether the connection is currently in the room.
func (t *MemoryTransport) Joined(connectionID, roomID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rooms[connectionID][roomID]
}

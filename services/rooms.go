package services

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"waitlist-system/models"
	"waitlist-system/realtime"
)

// Room naming is the only place channel identifiers are built, so the
// dispatcher, the position tracker and the clients agree on targets.

func CustomerRoom(customerID string) string { return fmt.Sprintf("customer-%s", customerID) }
func SessionRoom(sessionID string) string   { return fmt.Sprintf("session-%s", sessionID) }
func QueueRoom(queueID string) string       { return fmt.Sprintf("queue-%s", queueID) }
func MerchantRoom(merchantID string) string { return fmt.Sprintf("merchant-%s", merchantID) }

// RoomRouter maps entries to the rooms their connections must join and
// keeps per-connection membership so joins and leaves stay idempotent
// across reconnect storms. Membership is transient; a reconnecting
// client re-announces itself and is rebuilt from scratch.
type RoomRouter struct {
	transport realtime.Transport
	logger    *zap.Logger

	mu          sync.Mutex
	memberships map[string]map[string]bool // connectionID -> joined rooms
}

func NewRoomRouter(transport realtime.Transport, logger *zap.Logger) *RoomRouter {
	return &RoomRouter{
		transport:   transport,
		logger:      logger,
		memberships: make(map[string]map[string]bool),
	}
}

// CustomerRooms returns the canonical room set a customer connection
// joins for one entry: its customer room, its session room, and the
// queue-wide room for untargeted broadcasts.
func (r *RoomRouter) CustomerRooms(entry *models.QueueEntry) []string {
	rooms := []string{CustomerRoom(entry.CustomerID)}
	if entry.SessionID != "" {
		rooms = append(rooms, SessionRoom(entry.SessionID))
	}
	rooms = append(rooms, QueueRoom(entry.QueueID))
	return rooms
}

// TargetRooms returns the rooms a "you're called" event is sent to.
// The queue room is excluded: call events are customer-targeted.
func (r *RoomRouter) TargetRooms(entry *models.QueueEntry) []string {
	rooms := []string{CustomerRoom(entry.CustomerID)}
	if entry.SessionID != "" {
		rooms = append(rooms, SessionRoom(entry.SessionID))
	}
	return rooms
}

// Connect joins the connection to each room, skipping rooms it already
// joined. Safe to call any number of times in any order.
func (r *RoomRouter) Connect(connectionID string, rooms []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.memberships[connectionID]
	if joined == nil {
		joined = make(map[string]bool)
		r.memberships[connectionID] = joined
	}

	for _, room := range rooms {
		if joined[room] {
			continue
		}
		if err := r.transport.JoinRoom(connectionID, room); err != nil {
			return err
		}
		joined[room] = true
	}

	return nil
}

// Disconnect leaves every room the connection had joined and drops its
// membership record. Unknown connections are a no-op.
func (r *RoomRouter) Disconnect(connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.memberships[connectionID] {
		if err := r.transport.LeaveRoom(connectionID, room); err != nil {
			r.logger.Warn("room leave failed",
				zap.String("connection_id", connectionID), zap.String("room", room), zap.Error(err))
		}
	}
	delete(r.memberships, connectionID)

	return nil
}

// Rooms returns the rooms the connection currently has joined.
func (r *RoomRouter) Rooms(connectionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rooms []string
	for room := range r.memberships[connectionID] {
		rooms = append(rooms, room)
	}
	return rooms
}

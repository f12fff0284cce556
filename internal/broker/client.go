package broker

import (
	"sync"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/signaling"
)

// Sender abstracts the single-writer-per-connection send path so Broker
// doesn't depend on a concrete transport (gorilla/websocket in
// production, a channel in tests).
type Sender interface {
	Send(msg signaling.Message) error
	Close() error
}

// ClientRecord is the client side of the client/room relationship.
// RoomIDs/RolePerRoom store ids and values only, never *RoomRecord
// back-pointers.
type ClientRecord struct {
	ConnectionID string
	UserID       uint
	Sender       Sender

	mu          sync.Mutex
	RoomIDs     map[string]struct{}
	RolePerRoom map[string]signaling.Role
}

func newClientRecord(connectionID string, userID uint, sender Sender) *ClientRecord {
	return &ClientRecord{
		ConnectionID: connectionID,
		UserID:       userID,
		Sender:       sender,
		RoomIDs:      make(map[string]struct{}),
		RolePerRoom:  make(map[string]signaling.Role),
	}
}

func (c *ClientRecord) addRoom(roomID string, role signaling.Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RoomIDs[roomID] = struct{}{}
	c.RolePerRoom[roomID] = role
}

func (c *ClientRecord) removeRoom(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.RoomIDs, roomID)
	delete(c.RolePerRoom, roomID)
}

func (c *ClientRecord) roomIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.RoomIDs))
	for id := range c.RoomIDs {
		ids = append(ids, id)
	}
	return ids
}

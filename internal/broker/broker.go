package broker

import (
	"sync"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/errs"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/signaling"
)

// Broker holds the clients and rooms tables and serializes every
// membership change behind one mutex so joins/leaves are atomic.
type Broker struct {
	mu         sync.Mutex
	clients    map[string]*ClientRecord
	rooms      map[string]*RoomRecord
	presenceFn ViewerPresenceFunc
}

func New() *Broker {
	return &Broker{
		clients: make(map[string]*ClientRecord),
		rooms:   make(map[string]*RoomRecord),
	}
}

// Register creates a client entry for a freshly connected transport.
// connectionID must be unique; two clients sharing a userID are
// independent entities.
func (b *Broker) Register(connectionID string, userID uint, sender Sender) *ClientRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := newClientRecord(connectionID, userID, sender)
	b.clients[connectionID] = c
	return c
}

// Join adds connectionID to roomID with the given role, enforcing the
// single-broadcaster invariant, and returns the current room
// membership on success.
func (b *Broker) Join(connectionID, roomID string, role signaling.Role) ([]signaling.ClientInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	client, ok := b.clients[connectionID]
	if !ok {
		return nil, errs.NotFound("unknown client", nil)
	}

	room, ok := b.rooms[roomID]
	if !ok {
		room = newRoomRecord(roomID)
		b.rooms[roomID] = room
	}

	if role == signaling.RoleBroadcaster && len(room.Broadcasters) > 0 {
		if _, already := room.Broadcasters[connectionID]; !already {
			return nil, errs.Validation("room already has a broadcaster", nil)
		}
	}

	wasEmpty := len(room.Viewers) == 0
	room.ClientIDs[connectionID] = struct{}{}
	if role == signaling.RoleBroadcaster {
		room.Broadcasters[connectionID] = struct{}{}
	} else {
		room.Viewers[connectionID] = struct{}{}
	}
	client.addRoom(roomID, role)

	info := b.roomInfoLocked(room)
	b.broadcastLocked(room, signaling.ClientJoined(roomID, connectionID, role), connectionID)

	if role == signaling.RoleViewer && wasEmpty {
		b.notifyViewerPresenceLocked(room, true)
	}

	return info, nil
}

// Leave removes connectionID from roomID, destroying the room if it
// becomes empty.
func (b *Broker) Leave(connectionID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leaveLocked(connectionID, roomID)
}

// LeaveAll removes connectionID from every room it belongs to and
// deregisters it, used on disconnect.
func (b *Broker) LeaveAll(connectionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	client, ok := b.clients[connectionID]
	if !ok {
		return
	}
	for _, roomID := range client.roomIDs() {
		b.leaveLocked(connectionID, roomID)
	}
	delete(b.clients, connectionID)
}

func (b *Broker) leaveLocked(connectionID, roomID string) {
	room, ok := b.rooms[roomID]
	if !ok {
		return
	}
	wasBroadcaster := false
	if _, isB := room.Broadcasters[connectionID]; isB {
		wasBroadcaster = true
	}
	delete(room.ClientIDs, connectionID)
	delete(room.Broadcasters, connectionID)
	delete(room.Viewers, connectionID)
	if client, ok := b.clients[connectionID]; ok {
		client.removeRoom(roomID)
	}

	if room.empty() {
		delete(b.rooms, roomID)
		return
	}

	b.broadcastLocked(room, signaling.ClientLeft(roomID, connectionID), "")

	if !wasBroadcaster && len(room.Viewers) == 0 {
		b.notifyViewerPresenceLocked(room, false)
	}
}

// ResolveTarget resolves a relay target name to a connection id:
// TargetBroadcaster is resolved to the room's sole broadcaster,
// everything else is used verbatim as a connection id.
func (b *Broker) ResolveTarget(roomID, target string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if target != signaling.TargetBroadcaster {
		return target, nil
	}
	room, ok := b.rooms[roomID]
	if !ok {
		return "", errs.NotFound("unknown room", nil)
	}
	id, ok := room.soleBroadcaster()
	if !ok {
		return "", errs.Validation("room has no single broadcaster", nil)
	}
	return id, nil
}

// Relay forwards msg (offer/answer/ice-candidate) verbatim to
// targetConnID, stamping the sender's connection id.
func (b *Broker) Relay(senderConnID, targetConnID string, msg signaling.Message) error {
	b.mu.Lock()
	target, ok := b.clients[targetConnID]
	b.mu.Unlock()
	if !ok {
		return errs.NotFound("unknown target client", nil)
	}
	return target.Sender.Send(signaling.Forward(msg, senderConnID))
}

// RoomInfo returns the current membership of roomID.
func (b *Broker) RoomInfo(roomID string) ([]signaling.ClientInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room, ok := b.rooms[roomID]
	if !ok {
		return nil, errs.NotFound("unknown room", nil)
	}
	return b.roomInfoLocked(room), nil
}

func (b *Broker) roomInfoLocked(room *RoomRecord) []signaling.ClientInfo {
	info := make([]signaling.ClientInfo, 0, len(room.ClientIDs))
	for id := range room.Broadcasters {
		info = append(info, signaling.ClientInfo{ClientID: id, Role: signaling.RoleBroadcaster})
	}
	for id := range room.Viewers {
		info = append(info, signaling.ClientInfo{ClientID: id, Role: signaling.RoleViewer})
	}
	return info
}

func (b *Broker) broadcastLocked(room *RoomRecord, msg signaling.Message, exceptConnID string) {
	for id := range room.ClientIDs {
		if id == exceptConnID {
			continue
		}
		client, ok := b.clients[id]
		if !ok {
			continue
		}
		_ = client.Sender.Send(msg)
	}
}

// ViewerPresenceFunc is invoked on the hub when a room's viewer count
// transitions across zero while the room has a single broadcaster.
// present is true on 0→≥1, false on ≥1→0. It is not delivered to the
// device, which tracks viewers from the client-joined/client-left
// notifications on its own broadcaster session.
type ViewerPresenceFunc func(roomID, broadcasterConnID string, present bool)

func (b *Broker) notifyViewerPresenceLocked(room *RoomRecord, present bool) {
	bcastID, ok := room.soleBroadcaster()
	if !ok || b.presenceFn == nil {
		return
	}
	b.presenceFn(room.RoomID, bcastID, present)
}

// SetPresenceHandler registers the callback fired on viewer-presence
// transitions.
func (b *Broker) SetPresenceHandler(fn ViewerPresenceFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presenceFn = fn
}

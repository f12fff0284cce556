// Package signaling defines the broker's wire format: JSON objects
// discriminated by "type", with SDP carried as a plain string and ICE
// candidates using pion's ICECandidateInit field layout.
package signaling

import "github.com/pion/webrtc/v4"

type MessageType string

const (
	TypeRegistered    MessageType = "registered"
	TypeJoin          MessageType = "join"
	TypeJoined        MessageType = "joined"
	TypeLeave         MessageType = "leave"
	TypeLeft          MessageType = "left"
	TypeOffer         MessageType = "offer"
	TypeAnswer        MessageType = "answer"
	TypeICECandidate  MessageType = "ice-candidate"
	TypeClientJoined  MessageType = "client-joined"
	TypeClientLeft    MessageType = "client-left"
	TypeGetRoomInfo   MessageType = "get-room-info"
	TypeRoomInfo      MessageType = "room-info"
	TypeError         MessageType = "error"
)

type Role string

const (
	RoleBroadcaster Role = "broadcaster"
	RoleViewer      Role = "viewer"
)

// TargetBroadcaster is the special target value resolved by the broker
// to whichever single client holds RoleBroadcaster in the room.
const TargetBroadcaster = "broadcaster"

// ClientInfo describes one room member in a "joined"/"room-info" reply.
type ClientInfo struct {
	ClientID string `json:"clientId"`
	Role     Role   `json:"role"`
}

// Message is the single flat struct carrying every signaling message
// type; unused fields are omitted on the wire.
type Message struct {
	Type MessageType `json:"type"`

	RoomID   string `json:"roomId,omitempty"`
	Role     Role   `json:"role,omitempty"`
	ClientID string `json:"clientId,omitempty"`
	Target   string `json:"target,omitempty"`

	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`

	Clients []ClientInfo `json:"clients,omitempty"`
	Message string       `json:"message,omitempty"`
}

func Joined(roomID string, clients []ClientInfo) Message {
	return Message{Type: TypeJoined, RoomID: roomID, Clients: clients}
}

func Error(message string) Message {
	return Message{Type: TypeError, Message: message}
}

func ClientJoined(roomID, clientID string, role Role) Message {
	return Message{Type: TypeClientJoined, RoomID: roomID, ClientID: clientID, Role: role}
}

func ClientLeft(roomID, clientID string) Message {
	return Message{Type: TypeClientLeft, RoomID: roomID, ClientID: clientID}
}

func RoomInfo(roomID string, clients []ClientInfo) Message {
	return Message{Type: TypeRoomInfo, RoomID: roomID, Clients: clients}
}

// Forward stamps the sender's clientId onto a relayed offer/answer/
// ice-candidate message; everything else passes through verbatim.
func Forward(msg Message, senderClientID string) Message {
	msg.ClientID = senderClientID
	return msg
}

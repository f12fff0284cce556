package broker

import (
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/errs"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/signaling"
)

// Handle dispatches one inbound signaling.Message from connectionID.
// The bool result reports whether a reply should be sent back to the
// sender (relay messages are forwarded to the target only, with no
// direct reply).
func (b *Broker) Handle(connectionID string, msg signaling.Message) (signaling.Message, bool) {
	switch msg.Type {
	case signaling.TypeJoin:
		clients, err := b.Join(connectionID, msg.RoomID, msg.Role)
		if err != nil {
			return signaling.Error(err.Error()), true
		}
		return signaling.Joined(msg.RoomID, clients), true

	case signaling.TypeLeave:
		b.Leave(connectionID, msg.RoomID)
		return signaling.Message{Type: signaling.TypeLeft, RoomID: msg.RoomID, ClientID: connectionID}, true

	case signaling.TypeOffer, signaling.TypeAnswer, signaling.TypeICECandidate:
		targetConnID, err := b.ResolveTarget(msg.RoomID, msg.Target)
		if err != nil {
			return signaling.Error(err.Error()), true
		}
		if err := b.Relay(connectionID, targetConnID, msg); err != nil {
			return signaling.Error(err.Error()), true
		}
		return signaling.Message{}, false

	case signaling.TypeGetRoomInfo:
		clients, err := b.RoomInfo(msg.RoomID)
		if err != nil {
			return signaling.Error(err.Error()), true
		}
		return signaling.RoomInfo(msg.RoomID, clients), true

	default:
		return signaling.Error(errs.Validation("unknown signaling message type", nil).Error()), true
	}
}

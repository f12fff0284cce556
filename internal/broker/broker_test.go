package broker

import (
	"testing"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/signaling"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []signaling.Message
}

func (f *fakeSender) Send(msg signaling.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeSender) Close() error { return nil }

func newClient(b *Broker, id string) (*ClientRecord, *fakeSender) {
	s := &fakeSender{}
	return b.Register(id, 1, s), s
}

func TestBrokerRejectsSecondBroadcaster(t *testing.T) {
	b := New()
	newClient(b, "b1")
	newClient(b, "b2")

	_, err := b.Join("b1", "R", signaling.RoleBroadcaster)
	require.NoError(t, err)

	_, err = b.Join("b2", "R", signaling.RoleBroadcaster)
	require.Error(t, err)

	info, err := b.RoomInfo("R")
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.Equal(t, "b1", info[0].ClientID)
}

func TestJoinThenLeaveRestoresEmptyRoom(t *testing.T) {
	b := New()
	newClient(b, "b1")

	_, err := b.Join("b1", "R", signaling.RoleBroadcaster)
	require.NoError(t, err)

	b.Leave("b1", "R")

	_, err = b.RoomInfo("R")
	assert.Error(t, err, "room should be destroyed once empty")
}

func TestViewerJoinFiresPresenceTransition(t *testing.T) {
	b := New()
	newClient(b, "b1")
	newClient(b, "v1")

	var events []bool
	b.SetPresenceHandler(func(roomID, broadcasterConnID string, present bool) {
		events = append(events, present)
	})

	_, err := b.Join("b1", "R", signaling.RoleBroadcaster)
	require.NoError(t, err)
	_, err = b.Join("v1", "R", signaling.RoleViewer)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.True(t, events[0])

	b.Leave("v1", "R")
	require.Len(t, events, 2)
	assert.False(t, events[1])
}

func TestResolveTargetBroadcaster(t *testing.T) {
	b := New()
	newClient(b, "b1")
	newClient(b, "v1")
	_, err := b.Join("b1", "R", signaling.RoleBroadcaster)
	require.NoError(t, err)
	_, err = b.Join("v1", "R", signaling.RoleViewer)
	require.NoError(t, err)

	target, err := b.ResolveTarget("R", signaling.TargetBroadcaster)
	require.NoError(t, err)
	assert.Equal(t, "b1", target)
}

func TestRelayForwardsOfferWithSenderStamped(t *testing.T) {
	b := New()
	_, bSender := newClient(b, "b1")
	newClient(b, "v1")
	_, err := b.Join("b1", "R", signaling.RoleBroadcaster)
	require.NoError(t, err)
	_, err = b.Join("v1", "R", signaling.RoleViewer)
	require.NoError(t, err)

	offer := signaling.Message{Type: signaling.TypeOffer, RoomID: "R", Target: "b1", SDP: "v=0..."}
	require.NoError(t, b.Relay("v1", "b1", offer))

	require.NotEmpty(t, bSender.sent)
	got := bSender.sent[len(bSender.sent)-1]
	assert.Equal(t, "v1", got.ClientID)
	assert.Equal(t, "v=0...", got.SDP)
}

func TestHandleDispatchesJoinAndRelay(t *testing.T) {
	b := New()
	newClient(b, "b1")
	newClient(b, "v1")

	reply, ok := b.Handle("b1", signaling.Message{Type: signaling.TypeJoin, RoomID: "R", Role: signaling.RoleBroadcaster})
	require.True(t, ok)
	assert.Equal(t, signaling.TypeJoined, reply.Type)

	_, ok = b.Handle("v1", signaling.Message{Type: signaling.TypeJoin, RoomID: "R", Role: signaling.RoleViewer})
	require.True(t, ok)

	_, ok = b.Handle("v1", signaling.Message{
		Type: signaling.TypeICECandidate, RoomID: "R", Target: signaling.TargetBroadcaster,
	})
	assert.False(t, ok, "relay messages produce no direct reply")
}

package presence

import (
	"testing"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/signaling"
	"github.com/stretchr/testify/require"
)

func newTestClient(onViewer ViewerFunc) *Client {
	return NewClient("ws://unused", "room-1", 0, onViewer)
}

func TestViewerJoinAndLeaveAreCounted(t *testing.T) {
	var transitions []bool
	c := newTestClient(func(present bool) { transitions = append(transitions, present) })

	c.handle(signaling.ClientJoined("room-1", "v1", signaling.RoleViewer))
	c.handle(signaling.ClientJoined("room-1", "v2", signaling.RoleViewer))
	c.handle(signaling.ClientLeft("room-1", "v1"))
	c.handle(signaling.ClientLeft("room-1", "v2"))

	require.Equal(t, []bool{true, true, false, false}, transitions)
}

func TestOtherRoomsAndRolesAreIgnored(t *testing.T) {
	var transitions []bool
	c := newTestClient(func(present bool) { transitions = append(transitions, present) })

	c.handle(signaling.ClientJoined("other-room", "v1", signaling.RoleViewer))
	c.handle(signaling.ClientJoined("room-1", "b1", signaling.RoleBroadcaster))
	require.Empty(t, transitions)
}

func TestDuplicateJoinFiresOnce(t *testing.T) {
	var transitions []bool
	c := newTestClient(func(present bool) { transitions = append(transitions, present) })

	c.handle(signaling.ClientJoined("room-1", "v1", signaling.RoleViewer))
	c.handle(signaling.ClientJoined("room-1", "v1", signaling.RoleViewer))
	require.Equal(t, []bool{true}, transitions)
}

func TestJoinedSnapshotSeedsExistingViewers(t *testing.T) {
	var transitions []bool
	c := newTestClient(func(present bool) { transitions = append(transitions, present) })

	c.handle(signaling.Joined("room-1", []signaling.ClientInfo{
		{ClientID: "v1", Role: signaling.RoleViewer},
		{ClientID: "b1", Role: signaling.RoleBroadcaster},
	}))
	require.Equal(t, []bool{true}, transitions)
}

func TestSessionDropCountsViewersOut(t *testing.T) {
	var transitions []bool
	c := newTestClient(func(present bool) { transitions = append(transitions, present) })

	c.handle(signaling.ClientJoined("room-1", "v1", signaling.RoleViewer))
	c.handle(signaling.ClientJoined("room-1", "v2", signaling.RoleViewer))
	c.dropAllViewers()

	require.Equal(t, []bool{true, true, false, false}, transitions)
}

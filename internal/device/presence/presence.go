// Package presence is the device's signaling-side eye: it joins the
// configured room as broadcaster and watches client-joined/client-left
// notifications, feeding viewer arrivals and departures into the
// controller so streaming can preempt recording and the cooldown can
// arm when the last viewer leaves.
package presence

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/signaling"
	"github.com/gorilla/websocket"
)

// ViewerFunc receives one call per viewer transition: true when a
// viewer joined the room, false when one left or the session dropped.
type ViewerFunc func(present bool)

// Client maintains a reconnecting broadcaster session against the
// signaling server.
type Client struct {
	url      string
	roomID   string
	backoff  time.Duration
	onViewer ViewerFunc

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
	viewers map[string]struct{}
}

func NewClient(signalingURL, roomID string, backoff time.Duration, onViewer ViewerFunc) *Client {
	return &Client{
		url:      signalingURL,
		roomID:   roomID,
		backoff:  backoff,
		onViewer: onViewer,
		viewers:  make(map[string]struct{}),
	}
}

// Run dials, joins as broadcaster, and consumes presence notifications
// until ctx is cancelled, reconnecting with backoff on every drop.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.runOnce(ctx); err != nil {
			log.Printf("[presence] session lost, retrying in %s: %v", c.backoff, err)
		}
		c.dropAllViewers()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	join := signaling.Message{Type: signaling.TypeJoin, RoomID: c.roomID, Role: signaling.RoleBroadcaster}
	if err := c.send(join); err != nil {
		return err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg signaling.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("[presence] malformed signaling frame: %v", err)
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg signaling.Message) {
	switch msg.Type {
	case signaling.TypeJoined:
		// seed from the membership snapshot in case viewers beat us
		// into the room
		for _, ci := range msg.Clients {
			if ci.Role == signaling.RoleViewer {
				c.addViewer(ci.ClientID)
			}
		}

	case signaling.TypeClientJoined:
		if msg.RoomID == c.roomID && msg.Role == signaling.RoleViewer {
			c.addViewer(msg.ClientID)
		}

	case signaling.TypeClientLeft:
		if msg.RoomID == c.roomID {
			c.removeViewer(msg.ClientID)
		}

	case signaling.TypeError:
		log.Printf("[presence] signaling error: %s", msg.Message)
	}
}

func (c *Client) addViewer(clientID string) {
	c.mu.Lock()
	_, known := c.viewers[clientID]
	if !known {
		c.viewers[clientID] = struct{}{}
	}
	c.mu.Unlock()
	if !known {
		c.onViewer(true)
	}
}

func (c *Client) removeViewer(clientID string) {
	c.mu.Lock()
	_, known := c.viewers[clientID]
	if known {
		delete(c.viewers, clientID)
	}
	c.mu.Unlock()
	if known {
		c.onViewer(false)
	}
}

// dropAllViewers counts every tracked viewer out when the session
// drops, so the controller arms its cooldown instead of staying stuck
// in STREAMING.
func (c *Client) dropAllViewers() {
	c.mu.Lock()
	n := len(c.viewers)
	c.viewers = make(map[string]struct{})
	c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.onViewer(false)
	}
}

func (c *Client) send(msg signaling.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

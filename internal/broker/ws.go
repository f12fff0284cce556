package broker

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/auth"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/signaling"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/wsutil"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSServer terminates signaling websockets: one connection per client,
// one writer goroutine per connection, reads dispatched to the broker.
type WSServer struct {
	broker *Broker
	auth   *auth.Decoder
}

func NewWSServer(b *Broker, decoder *auth.Decoder) *WSServer {
	return &WSServer{broker: b, auth: decoder}
}

// wsSender is the single-writer send path for one connection: Send
// enqueues, the pump goroutine writes. A full queue or a write error
// forcibly unregisters the client.
type wsSender struct {
	conn *websocket.Conn
	send chan []byte
}

func newWSSender(conn *websocket.Conn) *wsSender {
	return &wsSender{conn: conn, send: make(chan []byte, 64)}
}

func (s *wsSender) Send(msg signaling.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case s.send <- data:
		return nil
	default:
		// a wedged peer must not block the broker mutex path
		s.conn.Close()
		return websocket.ErrCloseSent
	}
}

func (s *wsSender) Close() error { return s.conn.Close() }

func (s *wsSender) pump() {
	for data := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.conn.Close()
			return
		}
	}
}

// ServeWS handles one signaling client for its whole lifetime. On any
// read or write failure the client is unregistered and client-left is
// propagated to every room it belonged to.
func (s *WSServer) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, err := s.auth.Authenticate(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := wsutil.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[broker] upgrade failed: %v", err)
		return
	}

	connectionID := uuid.NewString()
	sender := newWSSender(conn)
	go sender.pump()

	s.broker.Register(connectionID, userID, sender)
	log.Printf("[broker] client %s connected (user %d)", connectionID, userID)

	_ = sender.Send(signaling.Message{Type: signaling.TypeRegistered, ClientID: connectionID})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg signaling.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = sender.Send(signaling.Error("malformed signaling message"))
			continue
		}
		if reply, ok := s.broker.Handle(connectionID, msg); ok {
			_ = sender.Send(reply)
		}
	}

	s.broker.LeaveAll(connectionID)
	close(sender.send)
	conn.Close()
	log.Printf("[broker] client %s disconnected", connectionID)
}

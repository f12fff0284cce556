package hub

import (
	"log"
	"net/http"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/auth"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/errs"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/protocol"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/store"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/wsutil"
	"github.com/gorilla/websocket"
)

// SessionServer terminates the device↔hub websocket: authenticate the
// bearer token on the connect URL, then read envelopes one at a time
// and dispatch them to the ingestion pipeline. Writes go through a
// single writer goroutine per connection.
type SessionServer struct {
	auth       *auth.Decoder
	ingest     *Ingestion
	store      *store.Store
	inactivity time.Duration
}

func NewSessionServer(decoder *auth.Decoder, ingest *Ingestion, s *store.Store, inactivity time.Duration) *SessionServer {
	return &SessionServer{auth: decoder, ingest: ingest, store: s, inactivity: inactivity}
}

// ServeWS upgrades and services one device session.
func (s *SessionServer) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, authErr := s.auth.Authenticate(r.URL.Query().Get("token"))
	if authErr != nil {
		// reject before the upgrade so the dialer sees a plain 401 and
		// terminates instead of reconnecting
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := wsutil.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[hub] upgrade failed: %v", err)
		return
	}

	sess := &session{
		srv:    s,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 64),
	}
	log.Printf("[hub] device session opened for user %d", userID)
	go sess.writePump()
	sess.readPump()
	close(sess.send)
	log.Printf("[hub] device session closed for user %d", userID)
}

type session struct {
	srv    *SessionServer
	conn   *websocket.Conn
	userID uint
	send   chan []byte
}

func (s *session) writePump() {
	for data := range s.send {
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("[hub] write to user %d failed: %v", s.userID, err)
			s.conn.Close()
			return
		}
	}
}

// readPump is the single reader: each frame is fully handled before the
// next one is read.
func (s *session) readPump() {
	defer s.conn.Close()
	for {
		s.conn.SetReadDeadline(time.Now().Add(s.srv.inactivity))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := protocol.Decode(data)
		if err != nil {
			s.replyError(protocol.Envelope{}, "malformed envelope")
			continue
		}

		if closeSession := s.handle(env); closeSession {
			s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "internal error"))
			return
		}
	}
}

// handle dispatches one envelope, queueing any reply. The bool result
// requests a 1011 close for unexpected errors; validation errors reply
// in-band and keep the session open.
func (s *session) handle(env protocol.Envelope) bool {
	switch env.Type {
	case protocol.Ping:
		s.reply(env, protocol.Pong, nil)

	case protocol.Auth:
		// the URL token already authenticated this session
		s.reply(env, protocol.AuthResult, map[string]string{"status": "ok"})

	case protocol.MotionDetected, protocol.FaceDetected, protocol.ButtonPressed:
		ack, err := s.srv.ingest.HandleSensorEvent(s.userID, sensorEventType(env.Type), env.ID)
		if err != nil {
			return s.fail(env, err)
		}
		s.reply(env, protocol.NotificationAck, ack)

	case protocol.Capture:
		var payload protocol.CapturePayload
		if err := env.DecodePayload(&payload); err != nil {
			s.replyError(env, "malformed capture payload")
			return false
		}
		ack, err := s.srv.ingest.HandleCapture(s.userID, payload)
		if err != nil {
			return s.fail(env, err)
		}
		s.reply(env, protocol.CaptureAck, ack)

	case protocol.SettingsRequest:
		settings, err := s.srv.store.GetSettings()
		if err != nil {
			return s.fail(env, err)
		}
		s.reply(env, protocol.SettingsAck, settingsPayload(settings))

	case protocol.NotificationSync:
		rows, err := s.srv.store.ListNotifications(s.userID, store.ListParams{PageSize: 50})
		if err != nil {
			return s.fail(env, err)
		}
		ids := make([]uint, 0, len(rows))
		for _, n := range rows {
			ids = append(ids, n.ID)
		}
		s.reply(env, protocol.NotificationSyncResponse, protocol.NotificationSyncResponsePayload{NotificationIDs: ids})

	case protocol.StreamStart, protocol.StreamStop:
		s.reply(env, protocol.StreamAck, nil)

	default:
		s.replyError(env, "unsupported message type")
	}
	return false
}

func (s *session) fail(env protocol.Envelope, err error) bool {
	switch errs.KindOf(err) {
	case errs.ValidationErrorKind, errs.NotFoundKind, errs.ResourceErrorKind:
		log.Printf("[hub] %s from user %d rejected: %v", env.Type, s.userID, err)
		s.replyError(env, err.Error())
		return false
	default:
		log.Printf("[hub] %s from user %d failed: %v", env.Type, s.userID, err)
		return true
	}
}

func (s *session) reply(to protocol.Envelope, t protocol.MsgType, payload any) {
	env, err := protocol.Reply(to, t, payload)
	if err != nil {
		log.Printf("[hub] build %s reply: %v", t, err)
		return
	}
	s.queue(env)
}

func (s *session) replyError(to protocol.Envelope, message string) {
	env, err := protocol.Reply(to, protocol.Error, protocol.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	s.queue(env)
}

func (s *session) queue(env protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		return
	}
	select {
	case s.send <- data:
	default:
		log.Printf("[hub] send queue overflow for user %d, dropping %s", s.userID, env.Type)
	}
}

func sensorEventType(t protocol.MsgType) protocol.SensorEventType {
	switch t {
	case protocol.MotionDetected:
		return protocol.EventMotion
	case protocol.FaceDetected:
		return protocol.EventFace
	default:
		return protocol.EventButton
	}
}

func settingsPayload(s *store.Settings) protocol.SettingsPayload {
	return protocol.SettingsPayload{
		ButtonDebounceMS:      s.ButtonDebounceMS,
		ButtonPollingRateHz:   float64(s.ButtonPollingRateHz),
		MotionDebounceMS:      s.MotionDebounceMS,
		MotionPollingRateHz:   float64(s.MotionPollingRateHz),
		StopMotionIntervalSec: s.StopMotionIntervalSec,
		StopMotionDurationSec: s.StopMotionDurationSec,
	}
}

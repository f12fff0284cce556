// Package protocol defines the wire envelope shared by the device and the
// hub: one discriminated message per msg_type, framed as JSON, correlated
// by msg_id/reply_to.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MsgType is the small-integer discriminator carried on the wire as
// "msg_type". Values are serialized as integers, not strings.
type MsgType int

const (
	Ping MsgType = iota
	Pong
	Auth
	AuthResult
	MotionDetected
	FaceDetected
	ButtonPressed
	StreamStart
	StreamStop
	StreamAck
	SettingsRequest
	SettingsAck
	NotificationAck
	NotificationSync
	NotificationSyncResponse
	Capture
	CaptureAck
	Error
)

func (t MsgType) String() string {
	switch t {
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	case Auth:
		return "AUTH"
	case AuthResult:
		return "AUTH_RESULT"
	case MotionDetected:
		return "MOTION_DETECTED"
	case FaceDetected:
		return "FACE_DETECTED"
	case ButtonPressed:
		return "BUTTON_PRESSED"
	case StreamStart:
		return "STREAM_START"
	case StreamStop:
		return "STREAM_STOP"
	case StreamAck:
		return "STREAM_ACK"
	case SettingsRequest:
		return "SETTINGS_REQUEST"
	case SettingsAck:
		return "SETTINGS_ACK"
	case NotificationAck:
		return "NOTIFICATION_ACK"
	case NotificationSync:
		return "NOTIFICATION_SYNC"
	case NotificationSyncResponse:
		return "NOTIFICATION_SYNC_RESPONSE"
	case Capture:
		return "CAPTURE"
	case CaptureAck:
		return "CAPTURE_ACK"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("MsgType(%d)", int(t))
	}
}

// SensorEventType distinguishes the three event kinds that drive the
// device state machine.
type SensorEventType string

const (
	EventButton SensorEventType = "button"
	EventMotion SensorEventType = "motion"
	EventFace   SensorEventType = "face"
)

// Envelope is the wire-level message shared by device and hub.
type Envelope struct {
	Type      MsgType         `json:"msg_type"`
	ID        string          `json:"msg_id"`
	Timestamp time.Time       `json:"timestamp"`
	ReplyTo   string          `json:"reply_to,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// New builds an envelope with a fresh msg_id and the current time,
// marshaling payload (one of the Payload variant types below, or nil).
func New(t MsgType, payload any) (Envelope, error) {
	env := Envelope{
		Type:      t,
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("protocol: marshal payload for %s: %w", t, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// Reply builds an envelope answering the given request's msg_id.
func Reply(to Envelope, t MsgType, payload any) (Envelope, error) {
	env, err := New(t, payload)
	if err != nil {
		return Envelope{}, err
	}
	env.ReplyTo = to.ID
	return env, nil
}

// Decode parses a single wire frame into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return env, nil
}

// Encode serializes an envelope into a single wire frame.
func Encode(env Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode envelope: %w", err)
	}
	return raw, nil
}

// DecodePayload unmarshals the envelope's payload into v.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("protocol: %s has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("protocol: decode %s payload: %w", e.Type, err)
	}
	return nil
}

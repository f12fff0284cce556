package protocol

import "time"

// SensorEventPayload is carried by MOTION_DETECTED, FACE_DETECTED and
// BUTTON_PRESSED messages. The envelope's own msg_id is the event id
// used later to correlate captures.
type SensorEventPayload struct {
	SourceDeviceID string `json:"source_device_id"`
}

// CapturePayload is the CAPTURE message payload.
type CapturePayload struct {
	AssociatedTo string    `json:"associated_to"`
	Timestamp    time.Time `json:"timestamp"`
	ImageFormat  string    `json:"image_format"`
	ImageDataB64 string    `json:"image_data_b64"`
	HasFace      bool      `json:"has_face"`
}

// NotificationAckPayload answers MOTION_DETECTED/FACE_DETECTED/BUTTON_PRESSED.
type NotificationAckPayload struct {
	Status         string `json:"status"` // "processed" | "rate_limited"
	NotificationID uint   `json:"notification_id,omitempty"`
}

// CaptureAckPayload answers CAPTURE.
type CaptureAckPayload struct {
	Status    string `json:"status"`
	CaptureID uint   `json:"capture_id"`
	Linked    bool   `json:"linked"`
}

// ErrorPayload is the generic error payload; validation failures reply
// with it and keep the connection open.
type ErrorPayload struct {
	Message string `json:"message"`
}

// SettingsPayload carries the hot-swappable device settings.
type SettingsPayload struct {
	ButtonDebounceMS      int     `json:"button_debounce_ms,omitempty"`
	ButtonPollingRateHz   float64 `json:"button_polling_rate_hz,omitempty"`
	MotionDebounceMS      int     `json:"motion_debounce_ms,omitempty"`
	MotionPollingRateHz   float64 `json:"motion_polling_rate_hz,omitempty"`
	StopMotionIntervalSec float64 `json:"stop_motion_interval_seconds,omitempty"`
	StopMotionDurationSec float64 `json:"stop_motion_duration_seconds,omitempty"`
}

// NotificationSyncResponsePayload answers NOTIFICATION_SYNC with whatever
// the hub considers the device's outstanding notification backlog.
type NotificationSyncResponsePayload struct {
	NotificationIDs []uint `json:"notification_ids"`
}

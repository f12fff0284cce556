// Package store persists notifications, captures, FCM device
// registrations and settings via gorm.
package store

import "time"

type User struct {
	ID        uint `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NotificationType names the sensor event a notification came from.
type NotificationType string

const (
	NotificationMotionDetected NotificationType = "motion_detected"
	NotificationFaceDetected   NotificationType = "face_detected"
	NotificationButtonPressed  NotificationType = "button_pressed"
)

// Notification is one alert row per qualifying device event. The
// unique index on (user_id, rpi_event_id) makes insertion idempotent
// across device reconnect resends.
type Notification struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"uniqueIndex:idx_user_event"`
	Title       string
	Type        NotificationType
	RPIEventID  string `gorm:"uniqueIndex:idx_user_event;column:rpi_event_id"`
	Captures    []Capture
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Capture is one stored frame. NotificationID is nullable: a capture
// may arrive before its notification exists. UserID records which
// session sent it, so deferred linking cannot cross user boundaries
// when two users reuse an event id.
type Capture struct {
	ID             uint  `gorm:"primaryKey"`
	NotificationID *uint `gorm:"index"`
	UserID         uint  `gorm:"index"`
	RPIEventID     string `gorm:"index;column:rpi_event_id"`
	Path           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FCMDevice is one registered push endpoint. (UserID,
// PhysicalDeviceID) is unique; FCMToken is overwritten on rotation.
type FCMDevice struct {
	ID               uint   `gorm:"primaryKey"`
	UserID           uint   `gorm:"uniqueIndex:idx_user_device"`
	FCMToken         string `gorm:"uniqueIndex"`
	PhysicalDeviceID string `gorm:"uniqueIndex:idx_user_device"`
	DeviceType       string
	AppVersion       string
	LastSeenAt       time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Settings is the singleton settings row (id=1), surfaced over HTTP
// and pushed to devices as SETTINGS_ACK.
type Settings struct {
	ID                    uint `gorm:"primaryKey"`
	MotionRateLimitMin    int
	ButtonDebounceMS      int
	ButtonPollingRateHz   int
	MotionDebounceMS      int
	MotionPollingRateHz   int
	StopMotionIntervalSec float64
	StopMotionDurationSec float64
	UpdatedAt             time.Time
}

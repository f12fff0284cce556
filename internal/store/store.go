package store

import (
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/errs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a single *gorm.DB with the repo methods ingestion and
// the CRUD surface need.
type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) AutoMigrate() error {
	return s.DB.AutoMigrate(&User{}, &Notification{}, &Capture{}, &FCMDevice{}, &Settings{})
}

// CreateNotificationIdempotent inserts n, silently doing nothing if a
// notification for the same (user_id, rpi_event_id) already exists, so
// a reconnect resend cannot double-insert. Returns the existing or
// newly created row.
func (s *Store) CreateNotificationIdempotent(n *Notification) (*Notification, bool, error) {
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "rpi_event_id"}},
		DoNothing: true,
	}).Create(n)
	if res.Error != nil {
		return nil, false, errs.Unexpectedf("create notification", res.Error)
	}
	if res.RowsAffected == 1 {
		return n, true, nil
	}

	var existing Notification
	if err := s.DB.Where("user_id = ? AND rpi_event_id = ?", n.UserID, n.RPIEventID).First(&existing).Error; err != nil {
		return nil, false, errs.Unexpectedf("load existing notification", err)
	}
	return &existing, false, nil
}

// FindNotificationByEventID looks up userID's notification by its
// rpi_event_id, used to link an arriving capture to its originating
// event. Event ids are only unique per user, so the lookup must never
// cross user boundaries.
func (s *Store) FindNotificationByEventID(userID uint, eventID string) (*Notification, error) {
	var n Notification
	err := s.DB.Where("user_id = ? AND rpi_event_id = ?", userID, eventID).First(&n).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errs.NotFound("notification not found for event", err)
	}
	if err != nil {
		return nil, errs.Unexpectedf("load notification", err)
	}
	return &n, nil
}

// CreateCapture persists a capture record, linked to a notification
// when known (nil otherwise).
func (s *Store) CreateCapture(c *Capture) error {
	if err := s.DB.Create(c).Error; err != nil {
		return errs.Unexpectedf("create capture", err)
	}
	return nil
}

// LinkUnresolvedCaptures attaches notificationID to any prior captures
// userID sent carrying eventID that arrived before the notification
// existed. Scoped per user for the same reason as
// FindNotificationByEventID.
func (s *Store) LinkUnresolvedCaptures(userID uint, eventID string, notificationID uint) (int64, error) {
	res := s.DB.Model(&Capture{}).
		Where("user_id = ? AND rpi_event_id = ? AND notification_id IS NULL", userID, eventID).
		Update("notification_id", notificationID)
	if res.Error != nil {
		return 0, errs.Unexpectedf("link unresolved captures", res.Error)
	}
	return res.RowsAffected, nil
}

// UpsertFCMDevice registers or refreshes a device's push token, keyed
// by (user_id, physical_device_id); the token is overwritten if the
// device rotated it.
func (s *Store) UpsertFCMDevice(d *FCMDevice) error {
	d.LastSeenAt = time.Now()
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "physical_device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fcm_token", "device_type", "app_version", "last_seen_at"}),
	}).Create(d)
	if res.Error != nil {
		return errs.Unexpectedf("upsert fcm device", res.Error)
	}
	return nil
}

// TokensForUser returns every live FCM token registered to userID, for
// push fan-out.
func (s *Store) TokensForUser(userID uint) ([]string, error) {
	var devices []FCMDevice
	if err := s.DB.Where("user_id = ?", userID).Find(&devices).Error; err != nil {
		return nil, errs.Unexpectedf("load fcm devices", err)
	}
	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.FCMToken)
	}
	return tokens, nil
}

// DeleteFCMToken removes a token the push provider reported as
// permanently unregistered.
func (s *Store) DeleteFCMToken(token string) error {
	if err := s.DB.Where("fcm_token = ?", token).Delete(&FCMDevice{}).Error; err != nil {
		return errs.Unexpectedf("delete fcm device", err)
	}
	return nil
}

// GetSettings loads the singleton settings row (id=1), seeding defaults
// if absent.
func (s *Store) GetSettings() (*Settings, error) {
	var settings Settings
	err := s.DB.First(&settings, 1).Error
	if err == gorm.ErrRecordNotFound {
		settings = Settings{ID: 1}
		if err := s.DB.Create(&settings).Error; err != nil {
			return nil, errs.Unexpectedf("seed settings", err)
		}
		return &settings, nil
	}
	if err != nil {
		return nil, errs.Unexpectedf("load settings", err)
	}
	return &settings, nil
}

// UpdateSettings persists changes to the singleton settings row.
func (s *Store) UpdateSettings(settings *Settings) error {
	settings.ID = 1
	if err := s.DB.Save(settings).Error; err != nil {
		return errs.Unexpectedf("update settings", err)
	}
	return nil
}

type ListParams struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// sortableColumns whitelists what sort_by may name; the value reaches
// ORDER BY as a raw expression, so anything unknown falls back to
// created_at.
var sortableColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"title":      true,
	"type":       true,
}

func (p ListParams) normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 200 {
		p.PageSize = 50
	}
	if !sortableColumns[p.SortBy] {
		p.SortBy = "created_at"
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
	return p
}

// ListNotifications is the paginated notification read.
func (s *Store) ListNotifications(userID uint, params ListParams) ([]Notification, error) {
	params = params.normalize()
	var rows []Notification
	err := s.DB.Where("user_id = ?", userID).
		Order(params.SortBy + " " + params.SortOrder).
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, errs.Unexpectedf("list notifications", err)
	}
	return rows, nil
}

// CountNotifications backs the {hits} count endpoint.
func (s *Store) CountNotifications(userID uint) (int64, error) {
	var count int64
	if err := s.DB.Model(&Notification{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, errs.Unexpectedf("count notifications", err)
	}
	return count, nil
}

// ListCaptures returns the captures linked to userID's notifications.
// Unlinked captures are not listed, even those userID sent.
func (s *Store) ListCaptures(userID uint, params ListParams) ([]Capture, error) {
	params = params.normalize()
	sortBy := params.SortBy
	if sortBy != "id" && sortBy != "created_at" {
		// captures have no title/type column
		sortBy = "created_at"
	}
	var rows []Capture
	err := s.DB.
		Joins("JOIN notifications ON notifications.id = captures.notification_id").
		Where("notifications.user_id = ?", userID).
		Order("captures." + sortBy + " " + params.SortOrder).
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, errs.Unexpectedf("list captures", err)
	}
	return rows, nil
}

// DeleteNotificationsOwned deletes only the requested notifications that
// belong to userID, so one user cannot delete another's rows.
func (s *Store) DeleteNotificationsOwned(userID uint, ids []uint) error {
	var owned []uint
	err := s.DB.Model(&Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Pluck("id", &owned).Error
	if err != nil {
		return errs.Unexpectedf("resolve owned notifications", err)
	}
	if len(owned) == 0 {
		return errs.NotFound("no matching notifications", nil)
	}
	return s.DeleteNotifications(owned)
}

// DeleteNotifications deletes notifications by id, cascading to their
// captures.
func (s *Store) DeleteNotifications(ids []uint) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("notification_id IN ?", ids).Delete(&Capture{}).Error; err != nil {
			return errs.Unexpectedf("cascade delete captures", err)
		}
		if err := tx.Where("id IN ?", ids).Delete(&Notification{}).Error; err != nil {
			return errs.Unexpectedf("delete notifications", err)
		}
		return nil
	})
}

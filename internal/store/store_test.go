package store

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	s := New(db)
	require.NoError(t, s.AutoMigrate())
	return s
}

func TestCreateNotificationIdempotent(t *testing.T) {
	s := newTestStore(t)

	n1 := &Notification{UserID: 1, Type: NotificationMotionDetected, RPIEventID: "evt-1", Title: "Motion detected"}
	created1, inserted1, err := s.CreateNotificationIdempotent(n1)
	require.NoError(t, err)
	require.True(t, inserted1)

	n2 := &Notification{UserID: 1, Type: NotificationMotionDetected, RPIEventID: "evt-1", Title: "Motion detected"}
	created2, inserted2, err := s.CreateNotificationIdempotent(n2)
	require.NoError(t, err)
	require.False(t, inserted2)
	require.Equal(t, created1.ID, created2.ID)

	count, err := s.CountNotifications(1)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestLinkUnresolvedCaptures(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateCapture(&Capture{UserID: 1, RPIEventID: "evt-2", Path: "/captures/a.jpg"}))
	require.NoError(t, s.CreateCapture(&Capture{UserID: 1, RPIEventID: "evt-2", Path: "/captures/b.jpg"}))

	n := &Notification{UserID: 1, Type: NotificationMotionDetected, RPIEventID: "evt-2", Title: "Motion detected"}
	created, _, err := s.CreateNotificationIdempotent(n)
	require.NoError(t, err)

	linked, err := s.LinkUnresolvedCaptures(1, "evt-2", created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), linked)
}

func TestEventIDLookupsAreScopedPerUser(t *testing.T) {
	s := newTestStore(t)

	n1 := &Notification{UserID: 1, Type: NotificationButtonPressed, RPIEventID: "evt-1", Title: "Doorbell Pressed"}
	created1, _, err := s.CreateNotificationIdempotent(n1)
	require.NoError(t, err)

	// same event id, different user: lookup must miss
	found, err := s.FindNotificationByEventID(1, "evt-1")
	require.NoError(t, err)
	require.Equal(t, created1.ID, found.ID)
	_, err = s.FindNotificationByEventID(2, "evt-1")
	require.Error(t, err)

	// unresolved captures from both users share the event id; linking
	// user 1's notification must leave user 2's capture untouched
	require.NoError(t, s.CreateCapture(&Capture{UserID: 1, RPIEventID: "evt-1", Path: "/captures/u1.jpg"}))
	require.NoError(t, s.CreateCapture(&Capture{UserID: 2, RPIEventID: "evt-1", Path: "/captures/u2.jpg"}))

	linked, err := s.LinkUnresolvedCaptures(1, "evt-1", created1.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), linked)

	var unlinked int64
	require.NoError(t, s.DB.Model(&Capture{}).
		Where("user_id = ? AND notification_id IS NULL", 2).Count(&unlinked).Error)
	require.Equal(t, int64(1), unlinked)
}

func TestNormalizeWhitelistsSortBy(t *testing.T) {
	p := ListParams{SortBy: "title", SortOrder: "asc"}.normalize()
	require.Equal(t, "title", p.SortBy)
	require.Equal(t, "asc", p.SortOrder)

	p = ListParams{SortBy: "created_at; DROP TABLE notifications--"}.normalize()
	require.Equal(t, "created_at", p.SortBy)

	p = ListParams{SortBy: "fcm_token"}.normalize()
	require.Equal(t, "created_at", p.SortBy)

	p = ListParams{SortOrder: "desc; DROP TABLE notifications--"}.normalize()
	require.Equal(t, "desc", p.SortOrder)
}

func TestListNotificationsWithHostileSortByStillWorks(t *testing.T) {
	s := newTestStore(t)
	n := &Notification{UserID: 1, Type: NotificationMotionDetected, RPIEventID: "evt-s", Title: "Motion Detected"}
	_, _, err := s.CreateNotificationIdempotent(n)
	require.NoError(t, err)

	rows, err := s.ListNotifications(1, ListParams{SortBy: "1); DROP TABLE notifications--"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestUpsertFCMDeviceOverwritesToken(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.UpsertFCMDevice(&FCMDevice{UserID: 1, PhysicalDeviceID: "dev-a", FCMToken: "tok-1"}))
	require.NoError(t, s.UpsertFCMDevice(&FCMDevice{UserID: 1, PhysicalDeviceID: "dev-a", FCMToken: "tok-2"}))

	tokens, err := s.TokensForUser(1)
	require.NoError(t, err)
	require.Equal(t, []string{"tok-2"}, tokens)
}

func TestDeleteNotificationsCascadesCaptures(t *testing.T) {
	s := newTestStore(t)

	n := &Notification{UserID: 1, Type: NotificationButtonPressed, RPIEventID: "evt-3", Title: "Button pressed"}
	created, _, err := s.CreateNotificationIdempotent(n)
	require.NoError(t, err)

	nid := created.ID
	require.NoError(t, s.CreateCapture(&Capture{RPIEventID: "evt-3", NotificationID: &nid, Path: "/captures/c.jpg"}))

	require.NoError(t, s.DeleteNotifications([]uint{nid}))

	var remaining int64
	require.NoError(t, s.DB.Model(&Capture{}).Where("notification_id = ?", nid).Count(&remaining).Error)
	require.Equal(t, int64(0), remaining)
}

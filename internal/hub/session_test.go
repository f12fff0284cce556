package hub

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/auth"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/protocol"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/push"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testKey = "session-test-key"

type recordingProvider struct {
	mu    sync.Mutex
	sends []string // "token:title"
}

func (p *recordingProvider) Send(_ context.Context, token, title string, _ map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sends = append(p.sends, token+":"+title)
	return nil
}

func mintToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testKey))
	require.NoError(t, err)
	return signed
}

type sessionFixture struct {
	srv      *httptest.Server
	store    *store.Store
	provider *recordingProvider
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	s := store.New(db)
	require.NoError(t, s.AutoMigrate())

	provider := &recordingProvider{}
	dispatcher := push.NewDispatcher(provider, s, time.Second, 0)
	ingest := NewIngestion(s, NewRateLimiter(time.Minute), NewCorrelationIndex(), dispatcher, memImages{}, t.TempDir())

	decoder := auth.NewDecoder([]byte(testKey), "HS256", 7)
	sessions := NewSessionServer(decoder, ingest, s, time.Minute)

	srv := httptest.NewServer(http.HandlerFunc(sessions.ServeWS))
	t.Cleanup(srv.Close)
	return &sessionFixture{srv: srv, store: s, provider: provider}
}

func (f *sessionFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, env protocol.Envelope) protocol.Envelope {
	t.Helper()
	data, err := protocol.Encode(env)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	reply, err := protocol.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, env.ID, reply.ReplyTo)
	return reply
}

func TestButtonEventCreatesNotificationAndLinksCapture(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.store.UpsertFCMDevice(&store.FCMDevice{
		UserID: 7, FCMToken: "tk", PhysicalDeviceID: "phone-1",
	}))

	conn := f.dial(t, mintToken(t, "rpi"))

	event, err := protocol.New(protocol.ButtonPressed, protocol.SensorEventPayload{SourceDeviceID: "rpi"})
	require.NoError(t, err)
	ackEnv := roundTrip(t, conn, event)
	require.Equal(t, protocol.NotificationAck, ackEnv.Type)

	var ack protocol.NotificationAckPayload
	require.NoError(t, ackEnv.DecodePayload(&ack))
	require.Equal(t, "processed", ack.Status)

	var notification store.Notification
	require.NoError(t, f.store.DB.Where("rpi_event_id = ?", event.ID).First(&notification).Error)
	require.Equal(t, uint(7), notification.UserID)
	require.Equal(t, "Doorbell Pressed", notification.Title)

	captureEnv, err := protocol.New(protocol.Capture, protocol.CapturePayload{
		AssociatedTo: event.ID,
		Timestamp:    time.Now(),
		ImageFormat:  "jpeg",
		ImageDataB64: base64.StdEncoding.EncodeToString([]byte("frame")),
	})
	require.NoError(t, err)
	captureAckEnv := roundTrip(t, conn, captureEnv)
	require.Equal(t, protocol.CaptureAck, captureAckEnv.Type)

	var captureAck protocol.CaptureAckPayload
	require.NoError(t, captureAckEnv.DecodePayload(&captureAck))
	require.True(t, captureAck.Linked)

	var capture store.Capture
	require.NoError(t, f.store.DB.First(&capture, captureAck.CaptureID).Error)
	require.NotNil(t, capture.NotificationID)
	require.Equal(t, notification.ID, *capture.NotificationID)

	require.Eventually(t, func() bool {
		f.provider.mu.Lock()
		defer f.provider.mu.Unlock()
		return len(f.provider.sends) == 1 && f.provider.sends[0] == "tk:Doorbell Pressed"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResentEventIDIsIdempotent(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.dial(t, mintToken(t, "7"))

	event, err := protocol.New(protocol.ButtonPressed, protocol.SensorEventPayload{SourceDeviceID: "rpi"})
	require.NoError(t, err)
	first := roundTrip(t, conn, event)
	require.Equal(t, protocol.NotificationAck, first.Type)

	// same envelope again, as after a reconnect with an in-flight resend
	second := roundTrip(t, conn, event)
	require.Equal(t, protocol.NotificationAck, second.Type)
	var ack protocol.NotificationAckPayload
	require.NoError(t, second.DecodePayload(&ack))
	require.Equal(t, "processed", ack.Status)

	var count int64
	require.NoError(t, f.store.DB.Model(&store.Notification{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestInvalidTokenIsRejectedBeforeUpgrade(t *testing.T) {
	f := newSessionFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPingGetsPong(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.dial(t, mintToken(t, "7"))

	ping, err := protocol.New(protocol.Ping, nil)
	require.NoError(t, err)
	reply := roundTrip(t, conn, ping)
	require.Equal(t, protocol.Pong, reply.Type)
}

func TestMalformedCapturePayloadKeepsSessionOpen(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.dial(t, mintToken(t, "7"))

	bad, err := protocol.New(protocol.Capture, protocol.CapturePayload{
		AssociatedTo: "evt-x",
		ImageDataB64: "%%% not base64 %%%",
	})
	require.NoError(t, err)
	reply := roundTrip(t, conn, bad)
	require.Equal(t, protocol.Error, reply.Type)

	// connection must still service the next message
	ping, err := protocol.New(protocol.Ping, nil)
	require.NoError(t, err)
	pong := roundTrip(t, conn, ping)
	require.Equal(t, protocol.Pong, pong.Type)
}

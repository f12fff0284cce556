package hub

import (
	"encoding/base64"
	"fmt"
	"path/filepath"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/errs"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/metrics"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/protocol"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/push"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/store"
)

// ImageWriter persists decoded capture bytes under captureDir. The
// default implementation writes the already-decoded bytes verbatim;
// an encoder-backed one could convert formats here.
type ImageWriter interface {
	Write(dir, filename string, data []byte) (path string, err error)
}

// Ingestion decodes device messages, rate-limits motion notifications,
// persists captures, and correlates the two by event id.
type Ingestion struct {
	store      *store.Store
	limiter    *RateLimiter
	correlate  *CorrelationIndex
	pusher     *push.Dispatcher
	images     ImageWriter
	captureDir string
}

func NewIngestion(s *store.Store, limiter *RateLimiter, correlate *CorrelationIndex, pusher *push.Dispatcher, images ImageWriter, captureDir string) *Ingestion {
	return &Ingestion{
		store:      s,
		limiter:    limiter,
		correlate:  correlate,
		pusher:     pusher,
		images:     images,
		captureDir: captureDir,
	}
}

func titleFor(t protocol.SensorEventType) (store.NotificationType, string) {
	switch t {
	case protocol.EventMotion:
		return store.NotificationMotionDetected, "Motion Detected"
	case protocol.EventFace:
		return store.NotificationFaceDetected, "Face Detected"
	default:
		return store.NotificationButtonPressed, "Doorbell Pressed"
	}
}

// HandleSensorEvent services motion_detected/face_detected/
// button_pressed messages. eventType selects rate limiting (motion
// only) and the notification's title/type.
func (in *Ingestion) HandleSensorEvent(userID uint, eventType protocol.SensorEventType, eventID string) (*protocol.NotificationAckPayload, error) {
	if eventType == protocol.EventMotion && !in.limiter.Allow(userID) {
		metrics.NotificationsRateLimited.Inc()
		return &protocol.NotificationAckPayload{Status: "rate_limited"}, nil
	}

	nType, title := titleFor(eventType)
	notification := &store.Notification{UserID: userID, Title: title, Type: nType, RPIEventID: eventID}
	created, inserted, err := in.store.CreateNotificationIdempotent(notification)
	if err != nil {
		return nil, err
	}

	if inserted {
		if in.correlate.IsPending(userID, eventID) {
			if _, err := in.store.LinkUnresolvedCaptures(userID, eventID, created.ID); err != nil {
				return nil, err
			}
			in.correlate.Resolve(userID, eventID)
		}
		in.pusher.NotifyAsync(userID, created.Title, map[string]string{
			"type":            string(created.Type),
			"rpi_event_id":    created.RPIEventID,
			"notification_id": fmt.Sprintf("%d", created.ID),
		})
	}

	return &protocol.NotificationAckPayload{Status: "processed", NotificationID: created.ID}, nil
}

// HandleCapture services capture messages: locate the notification by
// associated_to (scoped to userID), store the image, and persist a
// capture row, linked or not.
func (in *Ingestion) HandleCapture(userID uint, payload protocol.CapturePayload) (*protocol.CaptureAckPayload, error) {
	data, err := base64.StdEncoding.DecodeString(payload.ImageDataB64)
	if err != nil {
		return nil, errs.Validation("malformed capture image data", err)
	}

	filename := fmt.Sprintf("%s-%d.%s", payload.AssociatedTo, payload.Timestamp.UnixNano(), payload.ImageFormat)
	path, err := in.images.Write(in.captureDir, filepath.Base(filename), data)
	if err != nil {
		return nil, errs.Resource("failed to persist capture image", err)
	}

	capture := &store.Capture{UserID: userID, RPIEventID: payload.AssociatedTo, Path: path}

	var linked bool
	if n, err := in.store.FindNotificationByEventID(userID, payload.AssociatedTo); err == nil {
		nid := n.ID
		capture.NotificationID = &nid
		linked = true
	} else if errs.Is(err, errs.NotFoundKind) {
		in.correlate.MarkUnresolved(userID, payload.AssociatedTo)
	} else {
		return nil, err
	}

	if err := in.store.CreateCapture(capture); err != nil {
		return nil, err
	}

	return &protocol.CaptureAckPayload{Status: "processed", CaptureID: capture.ID, Linked: linked}, nil
}

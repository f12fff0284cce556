// Package metrics exposes prometheus counters/gauges for the bounded
// queues and the push delivery path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CaptureQueueDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doorbell_capture_queue_drops_total",
		Help: "Captures dropped because the bounded capture queue was full (drop-oldest policy).",
	})

	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doorbell_event_queue_depth",
		Help: "Current depth of the device's blocking event queue.",
	})

	PushDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doorbell_push_delivered_total",
		Help: "Push notifications delivered, labeled by outcome.",
	}, []string{"outcome"})

	NotificationsRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doorbell_notifications_rate_limited_total",
		Help: "Motion notifications suppressed by the per-user rate limiter.",
	})

	DeviceState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doorbell_device_state",
		Help: "Current device controller state: 0=idle, 1=recording, 2=streaming.",
	})

	RoomViewersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "doorbell_room_viewers_active",
		Help: "1 while a broadcasting room has at least one viewer, 0 otherwise.",
	}, []string{"room"})
)

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Package device wires the appliance together: debounced sensors feed
// the controller and the hub, the capture queue drains into CAPTURE
// messages, and settings pushed by the hub are applied to the running
// loops.
package device

import (
	"context"
	"encoding/base64"
	"log"
	"sync/atomic"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/device/capture"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/device/gpio"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/device/statemachine"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/metrics"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/protocol"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/transport"
)

// Agent owns the device-side glue between the sensor loops, the
// controller, the capture queue and the hub transport.
type Agent struct {
	ctrl  *statemachine.Controller
	hub   *transport.Client
	queue *capture.Queue

	button   *gpio.Sensor
	motion   *gpio.Sensor
	pipeline *capture.Pipeline

	deviceID     string
	replyTimeout time.Duration
	streaming    atomic.Bool
}

func NewAgent(ctrl *statemachine.Controller, hub *transport.Client, queue *capture.Queue, deviceID string, replyTimeout time.Duration) *Agent {
	a := &Agent{
		ctrl:         ctrl,
		hub:          hub,
		queue:        queue,
		deviceID:     deviceID,
		replyTimeout: replyTimeout,
	}
	hub.OnType(protocol.SettingsAck, a.handleSettingsPush)
	hub.OnType(protocol.Ping, a.handlePing)
	return a
}

// AttachSensors hands the agent the loops whose timing it hot-swaps on
// settings pushes.
func (a *Agent) AttachSensors(button, motion *gpio.Sensor, pipeline *capture.Pipeline) {
	a.button = button
	a.motion = motion
	a.pipeline = pipeline
}

// FireButton is the button sensor's debounced trigger callback.
func (a *Agent) FireButton() {
	a.publishSensorEvent(statemachine.SensorButton, protocol.ButtonPressed)
}

// FireMotion is the PIR sensor's debounced trigger callback.
func (a *Agent) FireMotion() {
	a.publishSensorEvent(statemachine.SensorMotion, protocol.MotionDetected)
}

// SynthesizeFaceEvent is the capture pipeline's onFace hook: it mints a
// FACE_DETECTED event, feeds it through the controller (resetting the
// recording timer) and the hub, and returns the event id so the face
// frame can be tagged with it.
func (a *Agent) SynthesizeFaceEvent() string {
	return a.publishSensorEvent(statemachine.SensorFace, protocol.FaceDetected)
}

func (a *Agent) publishSensorEvent(sensorType statemachine.SensorEventType, msgType protocol.MsgType) string {
	env, err := protocol.New(msgType, protocol.SensorEventPayload{SourceDeviceID: a.deviceID})
	if err != nil {
		log.Printf("[device] build %s envelope: %v", msgType, err)
		return ""
	}

	a.ctrl.PublishEvent(statemachine.Event{ID: env.ID, Type: sensorType})

	go func() {
		reply, err := a.hub.Request(context.Background(), env, a.replyTimeout)
		if err != nil {
			log.Printf("[device] %s %s not acknowledged: %v", msgType, env.ID, err)
			return
		}
		var ack protocol.NotificationAckPayload
		if err := reply.DecodePayload(&ack); err != nil {
			log.Printf("[device] malformed ack for %s: %v", env.ID, err)
			return
		}
		if ack.Status == "rate_limited" {
			log.Printf("[device] %s %s rate limited by hub", msgType, env.ID)
		}
	}()

	return env.ID
}

// RunCaptureSender drains the capture queue into CAPTURE messages until
// ctx is cancelled. The link is lossy by design: a frame whose send or
// ack fails is logged and dropped, never retried.
func (a *Agent) RunCaptureSender(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-a.queue.Out():
			a.sendCapture(ctx, item)
		}
	}
}

func (a *Agent) sendCapture(ctx context.Context, item capture.Item) {
	payload := protocol.CapturePayload{
		AssociatedTo: item.EventID,
		Timestamp:    item.Timestamp,
		ImageFormat:  item.Format,
		ImageDataB64: base64.StdEncoding.EncodeToString(item.Data),
		HasFace:      item.HasFace,
	}
	env, err := protocol.New(protocol.Capture, payload)
	if err != nil {
		log.Printf("[device] build capture envelope: %v", err)
		return
	}
	if _, err := a.hub.Request(ctx, env, a.replyTimeout); err != nil {
		log.Printf("[device] capture for event %s dropped: %v", item.EventID, err)
	}
}

// RequestSettings asks the hub for the current settings row and applies
// it. cmd/device calls it once at startup; a reconnect does not repeat
// it, and the request fails if the hub connection is not up yet.
func (a *Agent) RequestSettings(ctx context.Context) {
	env, err := protocol.New(protocol.SettingsRequest, nil)
	if err != nil {
		return
	}
	reply, err := a.hub.Request(ctx, env, a.replyTimeout)
	if err != nil {
		log.Printf("[device] settings request failed: %v", err)
		return
	}
	a.handleSettingsPush(ctx, reply)
}

func (a *Agent) handleSettingsPush(_ context.Context, env protocol.Envelope) {
	var s protocol.SettingsPayload
	if err := env.DecodePayload(&s); err != nil {
		log.Printf("[device] malformed settings push: %v", err)
		return
	}
	a.ApplySettings(s)
}

// ApplySettings hot-swaps sensor timing, the stop-motion interval and
// the recording duration on the running loops.
func (a *Agent) ApplySettings(s protocol.SettingsPayload) {
	if a.button != nil && s.ButtonDebounceMS > 0 {
		a.button.SetTiming(time.Duration(s.ButtonDebounceMS)*time.Millisecond, int(s.ButtonPollingRateHz))
	}
	if a.motion != nil && s.MotionDebounceMS > 0 {
		a.motion.SetTiming(time.Duration(s.MotionDebounceMS)*time.Millisecond, int(s.MotionPollingRateHz))
	}
	if a.pipeline != nil && s.StopMotionIntervalSec > 0 {
		a.pipeline.SetInterval(time.Duration(s.StopMotionIntervalSec * float64(time.Second)))
	}
	if s.StopMotionDurationSec > 0 {
		a.ctrl.SetRecordDuration(time.Duration(s.StopMotionDurationSec * float64(time.Second)))
	}
	log.Printf("[device] settings applied")
}

// HandleStateChange is the controller's state-change hook: it updates
// the state gauge and announces streaming transitions to the hub.
func (a *Agent) HandleStateChange(s statemachine.State) {
	metrics.DeviceState.Set(float64(s))

	streaming := s == statemachine.Streaming
	if a.streaming.Swap(streaming) == streaming {
		return
	}
	msgType := protocol.StreamStop
	if streaming {
		msgType = protocol.StreamStart
	}
	env, err := protocol.New(msgType, nil)
	if err != nil {
		return
	}
	if err := a.hub.Send(env); err != nil {
		log.Printf("[device] %s not sent: %v", msgType, err)
	}
}

func (a *Agent) handlePing(_ context.Context, env protocol.Envelope) {
	pong, err := protocol.Reply(env, protocol.Pong, nil)
	if err != nil {
		return
	}
	if err := a.hub.Send(pong); err != nil {
		log.Printf("[device] pong failed: %v", err)
	}
}

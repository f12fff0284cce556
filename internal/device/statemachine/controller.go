// Package statemachine owns the device's exclusive IDLE/RECORDING/
// STREAMING mode: a single mutex-guarded controller serializing every
// transition, with camera/RGB as side effects.
package statemachine

import (
	"log"
	"sync"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/metrics"
)

type State int

const (
	Idle State = iota
	Recording
	Streaming
)

func (s State) String() string {
	switch s {
	case Recording:
		return "RECORDING"
	case Streaming:
		return "STREAMING"
	default:
		return "IDLE"
	}
}

// Indicator drives the RGB presence light.
type Indicator interface {
	On()
	Off()
}

// CapturePipeline is the stop-motion loop's control surface, kept as a
// narrow interface here so statemachine doesn't depend on gocv.
type CapturePipeline interface {
	Begin(eventID string) error
	End() error
}

// Event is one debounced sensor trigger, identified by the envelope id
// it will be published under.
type Event struct {
	ID   string
	Type SensorEventType
}

type SensorEventType int

const (
	SensorButton SensorEventType = iota
	SensorMotion
	SensorFace
)

// Controller arbitrates the three modes: sensor events start or extend
// recording, viewer presence preempts it, timers and cooldowns drive
// the way back to idle.
type Controller struct {
	mu    sync.Mutex
	state State

	camera    CapturePipeline
	indicator Indicator

	currentEventID string
	recordingTimer *time.Timer
	recordDuration time.Duration

	cooldown      time.Duration
	suppressUntil time.Time

	viewerCount int

	events   chan Event
	viewers  chan bool
	shutdown chan struct{}
	done     chan struct{}

	onStateChange func(State)
}

func NewController(camera CapturePipeline, indicator Indicator, recordDuration, cooldown time.Duration) *Controller {
	return &Controller{
		camera:         camera,
		indicator:      indicator,
		recordDuration: recordDuration,
		cooldown:       cooldown,
		events:         make(chan Event, 32),
		viewers:        make(chan bool, 4),
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// OnStateChange registers a callback invoked (outside the state mutex)
// whenever the controller's state changes, for metrics/logging wiring.
func (c *Controller) OnStateChange(fn func(State)) { c.onStateChange = fn }

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetRecordDuration hot-swaps the stop-motion recording duration.
func (c *Controller) SetRecordDuration(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recordDuration = d
}

// PublishEvent enqueues a debounced sensor event. Events are
// correlation-critical, so a full buffer backpressures the sensor poll
// loop rather than drop them.
func (c *Controller) PublishEvent(ev Event) {
	c.events <- ev
}

// SetViewerPresent reports one viewer arriving (true) or leaving
// (false) the device's signaling room.
func (c *Controller) SetViewerPresent(present bool) {
	c.viewers <- present
}

// Shutdown requests the terminal transition and waits for the run loop
// to drain.
func (c *Controller) Shutdown() {
	close(c.shutdown)
	<-c.done
}

// Run is the single cooperative scheduler loop consuming events and
// viewer-presence signals; it owns all state transitions.
func (c *Controller) Run() {
	defer close(c.done)
	for {
		metrics.EventQueueDepth.Set(float64(len(c.events)))

		var timerC <-chan time.Time
		c.mu.Lock()
		if c.recordingTimer != nil {
			timerC = c.recordingTimer.C
		}
		c.mu.Unlock()

		select {
		case ev := <-c.events:
			c.handleEvent(ev)
		case present := <-c.viewers:
			c.handleViewerPresence(present)
		case <-timerC:
			c.handleRecordingTimerFired()
		case <-c.shutdown:
			c.handleShutdown()
			return
		}
	}
}

func (c *Controller) setState(s State) {
	c.state = s
	if c.onStateChange != nil {
		go c.onStateChange(s)
	}
}

func (c *Controller) handleEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if ev.Type == SensorMotion && now.Before(c.suppressUntil) {
		return // motion suppressed during streaming cooldown
	}

	switch c.state {
	case Idle:
		if err := c.camera.Begin(ev.ID); err != nil {
			log.Printf("statemachine: begin_stop_motion failed, staying IDLE: %v", err)
			return
		}
		c.currentEventID = ev.ID
		c.armRecordingTimerLocked()
		c.indicator.On()
		c.setState(Recording)

	case Recording:
		c.armRecordingTimerLocked()

	case Streaming:
		// ignore: no recording while streaming
	}
}

func (c *Controller) handleViewerPresence(present bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if present {
		c.viewerCount++
	} else {
		c.viewerCount--
		if c.viewerCount < 0 {
			c.viewerCount = 0
		}
	}

	switch c.state {
	case Recording:
		if present {
			c.stopRecordingTimerLocked()
			if err := c.camera.End(); err != nil {
				log.Printf("statemachine: end_stop_motion failed during preemption: %v", err)
			}
			c.setState(Streaming)
		}
	case Idle:
		if present {
			c.indicator.On()
			c.setState(Streaming)
		}
	case Streaming:
		if c.viewerCount == 0 {
			c.suppressUntil = time.Now().Add(c.cooldown)
			time.AfterFunc(c.cooldown, func() {
				c.mu.Lock()
				defer c.mu.Unlock()
				if c.state == Streaming && c.viewerCount == 0 {
					c.indicator.Off()
					c.setState(Idle)
				}
			})
		}
	}
}

func (c *Controller) handleRecordingTimerFired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Recording {
		return
	}
	c.recordingTimer = nil
	if err := c.camera.End(); err != nil {
		log.Printf("statemachine: end_stop_motion failed, forcing IDLE: %v", err)
	}
	c.indicator.Off()
	c.setState(Idle)
}

func (c *Controller) handleShutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopRecordingTimerLocked()
	if c.state == Recording {
		if err := c.camera.End(); err != nil {
			log.Printf("statemachine: end_stop_motion failed during shutdown: %v", err)
		}
	}
	c.indicator.Off()
}

func (c *Controller) armRecordingTimerLocked() {
	c.stopRecordingTimerLocked()
	c.recordingTimer = time.NewTimer(c.recordDuration)
}

func (c *Controller) stopRecordingTimerLocked() {
	if c.recordingTimer == nil {
		return
	}
	if !c.recordingTimer.Stop() {
		select {
		case <-c.recordingTimer.C:
		default:
		}
	}
	c.recordingTimer = nil
}

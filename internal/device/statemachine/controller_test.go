package statemachine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndicator struct {
	mu  sync.Mutex
	on  bool
	log []bool
}

func (f *fakeIndicator) On() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = true
	f.log = append(f.log, true)
}
func (f *fakeIndicator) Off() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on = false
	f.log = append(f.log, false)
}
func (f *fakeIndicator) isOn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on
}

type fakeCapture struct {
	begins int32
	ends   int32
}

func (f *fakeCapture) Begin(eventID string) error {
	atomic.AddInt32(&f.begins, 1)
	return nil
}
func (f *fakeCapture) End() error {
	atomic.AddInt32(&f.ends, 1)
	return nil
}

func newTestController(recordDuration, cooldown time.Duration) (*Controller, *fakeIndicator, *fakeCapture) {
	ind := &fakeIndicator{}
	cap := &fakeCapture{}
	c := NewController(cap, ind, recordDuration, cooldown)
	go c.Run()
	return c, ind, cap
}

func waitForState(t *testing.T, c *Controller, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state did not reach %s, was %s", want, c.State())
}

func TestSensorEventTransitionsIdleToRecording(t *testing.T) {
	c, ind, cap := newTestController(50*time.Millisecond, 10*time.Millisecond)
	defer c.Shutdown()

	c.PublishEvent(Event{ID: "evt-1", Type: SensorMotion})
	waitForState(t, c, Recording, time.Second)

	assert.True(t, ind.isOn())
	assert.Equal(t, int32(1), cap.begins)
}

func TestRecordingTimerFiresOnceAndReturnsToIdle(t *testing.T) {
	c, ind, cap := newTestController(30*time.Millisecond, 10*time.Millisecond)
	defer c.Shutdown()

	c.PublishEvent(Event{ID: "evt-1", Type: SensorMotion})
	waitForState(t, c, Recording, time.Second)

	waitForState(t, c, Idle, time.Second)
	assert.False(t, ind.isOn())
	assert.Equal(t, int32(1), cap.ends)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), cap.ends, "timer must not fire a second time")
}

func TestViewerPreemptsRecording(t *testing.T) {
	c, ind, cap := newTestController(time.Second, 10*time.Millisecond)
	defer c.Shutdown()

	c.PublishEvent(Event{ID: "evt-1", Type: SensorMotion})
	waitForState(t, c, Recording, time.Second)

	c.SetViewerPresent(true)
	waitForState(t, c, Streaming, time.Second)

	assert.True(t, ind.isOn(), "RGB stays on through preemption")
	assert.Equal(t, int32(1), cap.ends)
}

func TestStreamingReturnsToIdleAfterCooldown(t *testing.T) {
	c, ind, _ := newTestController(time.Second, 30*time.Millisecond)
	defer c.Shutdown()

	c.SetViewerPresent(true)
	waitForState(t, c, Streaming, time.Second)
	require.True(t, ind.isOn())

	c.SetViewerPresent(false)
	waitForState(t, c, Idle, time.Second)
	assert.False(t, ind.isOn())
}

func TestMotionSuppressedDuringStreamingCooldown(t *testing.T) {
	c, _, cap := newTestController(time.Second, 150*time.Millisecond)
	defer c.Shutdown()

	c.SetViewerPresent(true)
	waitForState(t, c, Streaming, time.Second)
	c.SetViewerPresent(false)

	// Still within the cooldown window: motion must be suppressed and
	// must not start a new recording even though state reads STREAMING.
	time.Sleep(30 * time.Millisecond)
	c.PublishEvent(Event{ID: "evt-suppressed", Type: SensorMotion})
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), cap.begins, "motion during cooldown must be suppressed")

	waitForState(t, c, Idle, time.Second)
}

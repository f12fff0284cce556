package capture

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Pipeline runs one stop-motion loop at a time: each tick grabs a
// frame, runs the face check, enqueues the capture, and sleeps the
// remainder of the interval. Begin/End are the control surface the
// device controller drives on RECORDING transitions.
type Pipeline struct {
	camera Camera
	faces  FaceChecker
	queue  *Queue

	// onFace synthesizes a FACE_DETECTED event and returns its id;
	// feeding it back through the sensor queue resets the recording
	// timer. May be nil.
	onFace func() string

	mu       sync.Mutex
	interval time.Duration
	running  bool
	eventID  string
	stop     chan struct{}
	done     chan struct{}
}

func NewPipeline(camera Camera, faces FaceChecker, queue *Queue, interval time.Duration, onFace func() string) *Pipeline {
	return &Pipeline{
		camera:   camera,
		faces:    faces,
		queue:    queue,
		interval: interval,
		onFace:   onFace,
	}
}

// SetInterval hot-swaps the per-frame interval.
func (p *Pipeline) SetInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interval = d
}

// Begin starts the stop-motion loop for one recording window. A camera
// failure on the probe frame aborts the start so the controller can
// stay in its current state. The probe frame is handed to the loop as
// its first tick.
func (p *Pipeline) Begin(eventID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("capture: stop-motion already running")
	}

	probe, err := p.camera.CaptureFrame()
	if err != nil {
		return fmt.Errorf("capture: begin stop-motion: %w", err)
	}

	p.running = true
	p.eventID = eventID
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.loop(eventID, probe, p.stop, p.done)
	return nil
}

// End stops the loop and waits for it to drain. Safe to call when no
// loop is running.
func (p *Pipeline) End() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stop, done := p.stop, p.done
	p.running = false
	p.mu.Unlock()

	close(stop)
	<-done
	return nil
}

// Running reports whether a stop-motion loop is active.
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Pipeline) loop(eventID string, first Frame, stop, done chan struct{}) {
	defer close(done)
	log.Printf("[capture] stop-motion started for event %s", eventID)

	frame := first
	haveFrame := true
	for {
		start := time.Now()

		if !haveFrame {
			var err error
			frame, err = p.camera.CaptureFrame()
			if err != nil {
				log.Printf("[capture] frame grab failed: %v", err)
				frame = Frame{}
			}
		}
		haveFrame = false

		if len(frame.Data) > 0 {
			p.processFrame(eventID, frame, start)
		}

		p.mu.Lock()
		interval := p.interval
		p.mu.Unlock()
		wait := interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-stop:
			log.Printf("[capture] stop-motion ended for event %s", eventID)
			return
		case <-time.After(wait):
		}
	}
}

func (p *Pipeline) processFrame(eventID string, frame Frame, ts time.Time) {
	hasFace := p.faces != nil && p.faces.HasFace(frame)

	if hasFace && p.onFace != nil {
		faceEventID := p.onFace()
		if faceEventID != "" {
			p.queue.Push(Item{
				EventID:   faceEventID,
				Timestamp: ts,
				Data:      frame.Data,
				Format:    frame.Format,
				HasFace:   true,
			})
		}
	}

	p.queue.Push(Item{
		EventID:   eventID,
		Timestamp: ts,
		Data:      frame.Data,
		Format:    frame.Format,
		HasFace:   hasFace,
	})
}

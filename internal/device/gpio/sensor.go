// Package gpio drives the appliance's button, PIR motion sensor and RGB
// indicator over go-rpio.
package gpio

import (
	"log"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// Open maps the GPIO memory range. Must be called once before any pin
// is constructed; the matching Close releases the mapping.
func Open() error  { return rpio.Open() }
func Close() error { return rpio.Close() }

// debouncer enforces the minimum inter-trigger gap: a reading exactly
// at the gap boundary is accepted, anything earlier is dropped.
type debouncer struct {
	gap  time.Duration
	last time.Time
}

func (d *debouncer) allow(now time.Time) bool {
	if !d.last.IsZero() && now.Sub(d.last) < d.gap {
		return false
	}
	d.last = now
	return true
}

// Sensor polls one input at a configurable rate and fires a callback on
// each debounced active reading. Poll interval and debounce gap are
// hot-swappable while the loop runs.
type Sensor struct {
	name string
	read func() bool
	fire func()

	mu       sync.Mutex
	interval time.Duration
	deb      debouncer

	quit chan struct{}
	done chan struct{}
}

// NewPinSensor builds a sensor over a raw BCM pin configured as input.
func NewPinSensor(name string, pin int, debounce time.Duration, pollHz int, fire func()) *Sensor {
	p := rpio.Pin(pin)
	p.Input()
	return NewSensor(name, func() bool { return p.Read() == rpio.High }, debounce, pollHz, fire)
}

// NewSensor builds a sensor over an arbitrary read function, which keeps
// the debounce loop testable without hardware.
func NewSensor(name string, read func() bool, debounce time.Duration, pollHz int, fire func()) *Sensor {
	if pollHz <= 0 {
		pollHz = 10
	}
	return &Sensor{
		name:     name,
		read:     read,
		fire:     fire,
		interval: time.Second / time.Duration(pollHz),
		deb:      debouncer{gap: debounce},
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetTiming hot-swaps the debounce gap and poll rate.
func (s *Sensor) SetTiming(debounce time.Duration, pollHz int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deb.gap = debounce
	if pollHz > 0 {
		s.interval = time.Second / time.Duration(pollHz)
	}
}

// Run polls until Stop is called.
func (s *Sensor) Run() {
	defer close(s.done)
	log.Printf("[gpio] %s sensor polling started", s.name)
	for {
		s.mu.Lock()
		interval := s.interval
		s.mu.Unlock()

		select {
		case <-s.quit:
			return
		case <-time.After(interval):
		}

		if !s.read() {
			continue
		}
		s.mu.Lock()
		ok := s.deb.allow(time.Now())
		s.mu.Unlock()
		if ok {
			s.fire()
		}
	}
}

// Stop ends the poll loop and waits for it to drain.
func (s *Sensor) Stop() {
	close(s.quit)
	<-s.done
	log.Printf("[gpio] %s sensor polling stopped", s.name)
}
